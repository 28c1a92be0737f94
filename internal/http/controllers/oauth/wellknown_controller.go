package oauth

import (
	"net/http"

	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
)

// JWKSSource publishes the verification key set.
type JWKSSource interface {
	JWKSJSON() []byte
}

// WellKnownController serves the discovery documents and /jwks.
type WellKnownController struct {
	meta svc.Metadata
	keys JWKSSource
}

func NewWellKnownController(meta svc.Metadata, keys JWKSSource) *WellKnownController {
	return &WellKnownController{meta: meta, keys: keys}
}

// AuthorizationServer handles GET /.well-known/oauth-authorization-server.
func (c *WellKnownController) AuthorizationServer(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.meta.AuthorizationServer())
}

// ProtectedResource handles GET /.well-known/oauth-protected-resource.
func (c *WellKnownController) ProtectedResource(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.meta.ProtectedResource())
}

// JWKS handles GET /jwks. HS256 deployments publish an empty set.
func (c *WellKnownController) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.keys.JWKSJSON())
}
