package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/toolgate/internal/http/helpers"
)

// WithClientIP resuelve la IP del cliente una sola vez, según los proxies de
// confianza, para que logging y rate limit usen la misma.
func WithClientIP(trusted helpers.TrustedProxies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := trusted.Resolve(r)
			next.ServeHTTP(w, r.WithContext(helpers.WithClientIP(r.Context(), ip)))
		})
	}
}
