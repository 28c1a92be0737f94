// Package api holds the demo protected resources behind RequireAuth.
package api

import (
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/toolgate/internal/http/middlewares"
)

// MeResponse describes the caller as the middleware resolved it.
type MeResponse struct {
	Sub       string   `json:"sub"`
	ClientID  string   `json:"client_id,omitempty"`
	Kind      string   `json:"token_kind"`
	Scopes    []string `json:"scopes"`
	ExpiresAt int64    `json:"expires_at,omitempty"`
}

type DiscoveryResponse struct {
	Products []Product `json:"products"`
}

type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Catalog supplies the discovery listing.
type Catalog func() []Product

type Controller struct {
	catalog Catalog
}

func NewController(c Catalog) *Controller {
	if c == nil {
		c = func() []Product { return []Product{} }
	}
	return &Controller{catalog: c}
}

// Me handles GET /api/me.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	p := mw.GetPrincipal(r.Context())
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrInvalidToken)
		return
	}
	resp := MeResponse{
		Sub:      p.UserID,
		ClientID: p.ClientID,
		Kind:     p.Kind,
		Scopes:   p.Scopes.List(),
	}
	if !p.ExpiresAt.IsZero() {
		resp.ExpiresAt = p.ExpiresAt.Truncate(time.Second).Unix()
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Discovery handles GET /api/discovery; the router guards it with product:read.
func (c *Controller) Discovery(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, DiscoveryResponse{Products: c.catalog()})
}
