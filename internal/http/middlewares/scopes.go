package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

// RequireScopes exige que el principal tenga TODOS los scopes, cada uno
// textual o vía "<familia>:*". Debe ir después de RequireAuth.
func RequireScopes(required ...string) Middleware {
	return RequireScopesMetered(nil, required...)
}

// RequireScopesMetered es RequireScopes contando las denegaciones en m.
func RequireScopesMetered(m *metrics.Metrics, required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="toolgate"`)
				httperrors.WriteError(w, httperrors.ErrMissingAuthorizationHeader)
				return
			}

			if missing, ok := p.Scopes.Missing(required); ok {
				m.RecordScopeDenied(missing)
				logger.From(r.Context()).Info("scope denied",
					logger.Component("scopes"),
					logger.Scope(missing),
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+missing+`"`)
				httperrors.WriteError(w, httperrors.ErrInsufficientScope.WithDetail("missing required scope: "+missing))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
