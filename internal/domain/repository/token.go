package repository

import (
	"context"
	"time"
)

// AuthorizationCode es un código de autorización persistido por hash.
type AuthorizationCode struct {
	CodeHash            string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	Resource            string
	IssuedAt            time.Time
	ExpiresAt           time.Time
}

// RefreshToken representa un token de refresco (rotado en cada uso).
type RefreshToken struct {
	TokenHash string
	ClientID  string
	UserID    string
	Scope     string
	Resource  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ServiceToken es un token opaco de primera parte, verificado por lookup.
type ServiceToken struct {
	TokenHash string
	UserID    string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired indica si el artefacto venció en el instante now (exp <= now).
func Expired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// AuthCodeRepository guarda códigos de un solo uso.
type AuthCodeRepository interface {
	Save(ctx context.Context, c *AuthorizationCode) error

	// Take lee y borra atómicamente. Dos Take concurrentes sobre el mismo hash:
	// exactamente uno recibe el código, el otro ErrNotFound.
	// No filtra por expiración: el caller decide (y el registro ya no existe).
	Take(ctx context.Context, codeHash string) (*AuthorizationCode, error)
}

// RefreshTokenRepository guarda refresh tokens rotativos.
type RefreshTokenRepository interface {
	Save(ctx context.Context, t *RefreshToken) error

	// Get lee sin consumir (ErrNotFound si no existe). El grant valida el
	// pedido con Get y sólo después rota con Take.
	Get(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Take lee y borra atómicamente (misma semántica que AuthCodeRepository.Take).
	Take(ctx context.Context, tokenHash string) (*RefreshToken, error)
}

// ServiceTokenRepository guarda service tokens.
type ServiceTokenRepository interface {
	Save(ctx context.Context, t *ServiceToken) error

	// Get retorna ErrNotFound si no existe.
	Get(ctx context.Context, tokenHash string) (*ServiceToken, error)

	// Delete es idempotente.
	Delete(ctx context.Context, tokenHash string) error
}
