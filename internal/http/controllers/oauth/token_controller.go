package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

// TokenController handles POST /token.
type TokenController struct {
	service svc.TokenService
}

func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	const op = "TokenController.Token"
	helpers.NoStore(w)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	if err := helpers.ParseForm(w, r); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	f := r.PostForm
	id, secret, basic := helpers.ClientCredentials(r)
	if formID := strings.TrimSpace(f.Get("client_id")); basic && formID != "" && formID != id {
		httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDetail("client_id does not match the authenticated client"))
		return
	}

	req := dto.TokenRequest{
		GrantType:       strings.TrimSpace(f.Get("grant_type")),
		Code:            strings.TrimSpace(f.Get("code")),
		RedirectURI:     strings.TrimSpace(f.Get("redirect_uri")),
		CodeVerifier:    strings.TrimSpace(f.Get("code_verifier")),
		RefreshToken:    strings.TrimSpace(f.Get("refresh_token")),
		Scope:           strings.TrimSpace(f.Get("scope")),
		Resource:        strings.TrimSpace(f.Get("resource")),
		ClientID:        id,
		ClientSecret:    secret,
		ClientAuthBasic: basic,
	}
	ctx := logger.With(r.Context(), logger.GrantType(req.GrantType))

	resp, err := c.service.Exchange(ctx, req)
	if err != nil {
		app := toAppError(err)
		if app.Code == httperrors.ErrInvalidClient.Code && basic {
			w.Header().Set("WWW-Authenticate", `Basic realm="toolgate"`)
		}
		writeError(w, r.WithContext(ctx), op, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
