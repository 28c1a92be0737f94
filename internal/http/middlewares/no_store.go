package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/toolgate/internal/http/helpers"
)

// WithNoStore marca como no cacheables las rutas que devuelven codes,
// tokens, credenciales de cliente o cookies de sesión.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			helpers.NoStore(w)
			next.ServeHTTP(w, r)
		})
	}
}

// WithPublicCache permite que proxies y clientes cacheen documentos públicos
// (metadata RFC 8414/9728 y JWKS) durante maxAge.
func WithPublicCache(maxAge time.Duration) Middleware {
	directive := "public, max-age=" + strconv.Itoa(int(maxAge/time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", directive)
			next.ServeHTTP(w, r)
		})
	}
}
