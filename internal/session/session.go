// Package session firma tokens de sesión (HS256) y cookies efímeras de un
// solo uso para state, code_verifier y request_id pendiente.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/toolgate/internal/cache"
	"github.com/dropDatabas3/toolgate/internal/identity"
)

const (
	DefaultTTL          = 7 * 24 * time.Hour
	EphemeralTTL        = 10 * time.Minute
	DefaultCookieName   = "tg_session"
	typSession          = "session"
	typEphemeral        = "ephemeral"
	replayKeyPrefix     = "eph:jti:"
	minSecretLen        = 32
	ephemeralCookieBase = "tg_"
)

// Propósitos de cookies efímeras. El propósito va firmado: una cookie de
// state no sirve como verifier.
const (
	PurposeState    = "state"
	PurposeVerifier = "verifier"
	PurposeRequest  = "request"
)

var (
	ErrEphemeralMissing  = errors.New("session: ephemeral cookie missing")
	ErrEphemeralInvalid  = errors.New("session: ephemeral cookie invalid")
	ErrEphemeralReplayed = errors.New("session: ephemeral cookie replayed")
	ErrWeakSecret        = errors.New("session: secret must be at least 32 bytes")
)

// Session es la identidad federada dentro del navegador.
type Session struct {
	UserID    string
	Email     string
	Name      string
	Picture   string
	Provider  string
	ExpiresAt time.Time
}

type Config struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Cookie     CookieOptions
}

// Manager crea/valida sesiones y maneja cookies efímeras.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	cookie     CookieOptions
	replay     cache.Client

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// NewManager exige un secreto de al menos 32 bytes. replay guarda los jti ya consumidos.
func NewManager(cfg Config, replay cache.Client) (*Manager, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Manager{
		secret:     cfg.Secret,
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		cookie:     cfg.Cookie,
		replay:     replay,
		Now:        time.Now,
	}, nil
}

func (m *Manager) sign(claims jwtv5.MapClaims) (string, error) {
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string) (jwtv5.MapClaims, error) {
	claims := jwtv5.MapClaims{}
	_, err := jwtv5.ParseWithClaims(token, claims,
		func(*jwtv5.Token) (any, error) { return m.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(m.Now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// CreateSessionToken firma {sub,email,name,picture,provider,typ,exp=+ttl}.
func (m *Manager) CreateSessionToken(u identity.UserInfo) (string, time.Time, error) {
	now := m.Now()
	exp := now.Add(m.ttl)
	tok, err := m.sign(jwtv5.MapClaims{
		"sub":      u.ID,
		"email":    u.Email,
		"name":     u.Name,
		"picture":  u.Picture,
		"provider": u.Provider,
		"typ":      typSession,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// ValidateSessionToken devuelve la sesión o nil (nunca error).
func (m *Manager) ValidateSessionToken(token string) *Session {
	if token == "" {
		return nil
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	if typ, _ := claims["typ"].(string); typ != typSession {
		return nil
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	s := &Session{UserID: sub}
	s.Email, _ = claims["email"].(string)
	s.Name, _ = claims["name"].(string)
	s.Picture, _ = claims["picture"].(string)
	s.Provider, _ = claims["provider"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s
}

// FromRequest lee la cookie de sesión (nil si no hay o no valida).
func (m *Manager) FromRequest(r *http.Request) *Session {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil
	}
	return m.ValidateSessionToken(c.Value)
}

func (m *Manager) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, BuildCookie(m.cookieName, token, m.cookie, m.ttl))
}

func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, BuildDeletionCookie(m.cookieName, m.cookie))
}

// ─── Cookies efímeras (read-once) ───

func ephemeralCookieName(purpose string) string { return ephemeralCookieBase + purpose }

// SetEphemeral firma value con propósito, jti y exp=+10m y lo deja en una cookie.
func (m *Manager) SetEphemeral(w http.ResponseWriter, purpose, value string) error {
	now := m.Now()
	tok, err := m.sign(jwtv5.MapClaims{
		"typ": typEphemeral,
		"pur": purpose,
		"val": value,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(EphemeralTTL).Unix(),
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, BuildCookie(ephemeralCookieName(purpose), tok, m.cookie, EphemeralTTL))
	return nil
}

// TakeEphemeral lee la cookie del propósito y la borra (siempre). La firma,
// el propósito y la expiración se validan; el jti se marca en el cache con
// SetNX, así una cookie reenviada falla con ErrEphemeralReplayed.
func (m *Manager) TakeEphemeral(ctx context.Context, w http.ResponseWriter, r *http.Request, purpose string) (string, error) {
	name := ephemeralCookieName(purpose)
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", ErrEphemeralMissing
	}
	http.SetCookie(w, BuildDeletionCookie(name, m.cookie))

	claims, err := m.parse(c.Value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEphemeralInvalid, err)
	}
	if typ, _ := claims["typ"].(string); typ != typEphemeral {
		return "", ErrEphemeralInvalid
	}
	if pur, _ := claims["pur"].(string); pur != purpose {
		return "", ErrEphemeralInvalid
	}
	jti, _ := claims["jti"].(string)
	val, _ := claims["val"].(string)
	if jti == "" {
		return "", ErrEphemeralInvalid
	}

	if m.replay != nil {
		ok, err := m.replay.SetNX(ctx, replayKeyPrefix+jti, "1", EphemeralTTL)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrEphemeralReplayed
		}
	}
	return val, nil
}
