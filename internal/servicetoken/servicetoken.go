// Package servicetoken emite tokens opacos de primera parte para servicios
// internos. Se guardan por hash, se verifican por lookup y se revocan borrando.
package servicetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
)

const (
	DefaultTTL = time.Hour
	tokenBytes = 32
)

var (
	ErrInvalidToken = errors.New("servicetoken: invalid token")
	ErrInvalidScope = errors.New("servicetoken: invalid scope")
)

// Principal es lo que resuelve Verify.
type Principal struct {
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

type Issuer struct {
	repo repository.ServiceTokenRepository
	ttl  time.Duration

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

func New(repo repository.ServiceTokenRepository, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{repo: repo, ttl: ttl, Now: time.Now}
}

// Issue genera el token, guarda su hash con exp=+ttl y devuelve el valor en claro (una sola vez).
// Cada scope debe pertenecer al vocabulario (wildcards de familia incluidos).
func (i *Issuer) Issue(ctx context.Context, userID string, scopeList []string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id required", ErrInvalidScope)
	}
	if len(scopeList) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: empty", ErrInvalidScope)
	}
	for _, s := range scopeList {
		if !scopes.IsSupported(s) {
			return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidScope, s)
		}
	}

	raw, err := tokens.GenerateOpaqueToken(tokenBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	now := i.Now().UTC()
	exp := now.Add(i.ttl)
	if err := i.repo.Save(ctx, &repository.ServiceToken{
		TokenHash: tokens.SHA256Base64URL(raw),
		UserID:    userID,
		Scopes:    scopes.New(scopeList...).List(),
		IssuedAt:  now,
		ExpiresAt: exp,
	}); err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

// IssuePreset emite con el preset "user" o "admin".
func (i *Issuer) IssuePreset(ctx context.Context, userID, preset string) (string, time.Time, error) {
	list, ok := scopes.Preset(preset)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidScope, preset)
	}
	return i.Issue(ctx, userID, list)
}

// Verify busca por hash. Ausente => ErrInvalidToken; vencido => se borra y ErrInvalidToken.
func (i *Issuer) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	h := tokens.SHA256Base64URL(token)
	st, err := i.repo.Get(ctx, h)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("servicetoken: lookup: %w", err)
	}
	if repository.Expired(st.ExpiresAt, i.Now()) {
		_ = i.repo.Delete(ctx, h)
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: st.UserID, Scopes: st.Scopes, ExpiresAt: st.ExpiresAt}, nil
}

// Revoke es idempotente.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return i.repo.Delete(ctx, tokens.SHA256Base64URL(token))
}
