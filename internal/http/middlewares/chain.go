// Package middlewares reúne los decoradores http.Handler de toolgate. Los de
// infraestructura (request id, logging, recover, headers, CORS, no-store,
// rate limit) van globales o por ruta en router.New; RequireAuth,
// RequireScopes y RequireAdminKey protegen /api e /internal.
package middlewares

import "net/http"

// Middleware tiene la misma forma que los de chi, así que router los pasa
// directo a r.Use / r.With.
type Middleware = func(http.Handler) http.Handler

// Chain envuelve h de modo que mws[0] sea el más externo.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}
	return h
}
