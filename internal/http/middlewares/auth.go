package middlewares

import (
	"context"
	"errors"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	"github.com/dropDatabas3/toolgate/internal/servicetoken"
)

// ErrUnverifiable se devuelve cuando ningún verificador de la cadena acepta el token.
var ErrUnverifiable = errors.New("middlewares: token not verifiable")

// TokenVerifier resuelve un bearer token en un Principal.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Principal, error)
}

// ServiceTokenVerifier es la parte de servicetoken.Issuer que usa la cadena.
type ServiceTokenVerifier interface {
	Verify(ctx context.Context, token string) (*servicetoken.Principal, error)
}

// ChainVerifier enruta por forma del token: JWT compacto al verificador de
// access tokens (firma, issuer, exp y audience si hay Audiences), opaco al
// lookup de service tokens.
type ChainVerifier struct {
	Access    *jwtx.Issuer
	Audiences []string
	Service   ServiceTokenVerifier
}

func (c *ChainVerifier) VerifyToken(ctx context.Context, raw string) (*Principal, error) {
	if jwtx.IsCompact(raw) {
		if c.Access == nil {
			return nil, ErrUnverifiable
		}
		claims, err := c.Access.Verify(raw, c.Audiences...)
		if err != nil {
			return nil, err
		}
		return principalFromClaims(raw, claims), nil
	}
	if c.Service == nil {
		return nil, ErrUnverifiable
	}
	sp, err := c.Service.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:    sp.UserID,
		Scopes:    scopes.New(sp.Scopes...),
		RawToken:  raw,
		Kind:      KindService,
		ExpiresAt: sp.ExpiresAt,
	}, nil
}

// principalFromClaims normaliza scope (string), scp y scopes (string o lista) a un set.
func principalFromClaims(raw string, claims map[string]any) *Principal {
	set := scopes.New()
	for _, k := range []string{"scope", "scp", "scopes"} {
		if v, ok := claims[k]; ok {
			for s := range scopes.FromClaim(v) {
				set[s] = struct{}{}
			}
		}
	}
	p := &Principal{
		Scopes:   set,
		RawToken: raw,
		Kind:     KindAccess,
	}
	p.UserID, _ = claims["sub"].(string)
	p.ClientID, _ = claims["client_id"].(string)
	if exp, ok := claims["exp"].(float64); ok {
		p.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return p
}

// rejectedCredential separa los rechazos del token (401) de las fallas de
// verificación (500).
func rejectedCredential(err error) bool {
	return errors.Is(err, ErrUnverifiable) ||
		errors.Is(err, servicetoken.ErrInvalidToken) ||
		jwtx.IsTokenError(err)
}

// AuthOptions configura RequireAuth.
type AuthOptions struct {
	// Optional deja pasar requests SIN header Authorization (sin principal).
	// Un header presente pero inválido sigue respondiendo 401.
	Optional bool
	// ResourceMetadataURL se anuncia en WWW-Authenticate (RFC 9728).
	ResourceMetadataURL string
}

// RequireAuth valida "Authorization: Bearer <token>" y guarda el Principal en el contexto.
func RequireAuth(v TokenVerifier, opts AuthOptions) Middleware {
	challenge := func(errCode string) string {
		h := `Bearer realm="toolgate"`
		if errCode != "" {
			h += `, error="` + errCode + `"`
		}
		if opts.ResourceMetadataURL != "" {
			h += `, resource_metadata="` + opts.ResourceMetadataURL + `"`
		}
		return h
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, present, ok := helpers.BearerToken(r)
			if !present {
				if opts.Optional {
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("WWW-Authenticate", challenge(""))
				httperrors.WriteError(w, httperrors.ErrMissingAuthorizationHeader)
				return
			}
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge("invalid_request"))
				httperrors.WriteError(w, httperrors.ErrInvalidAuthorizationHeader)
				return
			}

			p, err := v.VerifyToken(r.Context(), raw)
			if err != nil && !rejectedCredential(err) {
				// store o backend caído: no es culpa del token
				logger.From(r.Context()).Error("bearer token verification failed",
					logger.Component("auth"),
					logger.Err(err),
				)
				httperrors.WriteError(w, httperrors.ErrServerError.WithCause(err))
				return
			}
			if err != nil {
				logger.From(r.Context()).Debug("bearer token rejected",
					logger.Component("auth"),
					logger.Err(err),
				)
				w.Header().Set("WWW-Authenticate", challenge("invalid_token"))
				httperrors.WriteError(w, httperrors.ErrInvalidToken.WithCause(err))
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			if p.UserID != "" {
				ctx = logger.With(ctx, logger.UserID(p.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
