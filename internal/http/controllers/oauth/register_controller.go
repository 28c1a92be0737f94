package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
)

// RegisterController handles POST /register (RFC 7591).
type RegisterController struct {
	clients svc.ClientRegistry
}

func NewRegisterController(c svc.ClientRegistry) *RegisterController {
	return &RegisterController{clients: c}
}

func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) {
	helpers.NoStore(w)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	var req dto.RegisterRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidClientMetadata.WithDetail("body must be a JSON client metadata document"))
		return
	}
	resp, err := c.clients.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, "RegisterController.Register", err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, resp)
}
