package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
)

// AdminKeyHeader es el header alternativo a "Authorization: Bearer <key>".
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey protege rutas internas con una API key estática.
// Con apiKey vacía las rutas quedan cerradas (403).
func RequireAdminKey(apiKey string) Middleware {
	apiKey = strings.TrimSpace(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				errors.WriteError(w, errors.ErrForbidden.WithDetail("internal routes disabled"))
				return
			}
			got := strings.TrimSpace(r.Header.Get(AdminKeyHeader))
			if got == "" {
				got, _, _ = helpers.BearerToken(r)
			}
			if got == "" {
				errors.WriteError(w, errors.ErrMissingAuthorizationHeader)
				return
			}
			if !tokens.ConstantTimeEqual(got, apiKey) {
				errors.WriteError(w, errors.ErrInvalidToken.WithDetail("invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
