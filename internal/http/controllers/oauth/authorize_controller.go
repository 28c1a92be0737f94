package oauth

import (
	"net/http"
	"net/url"
	"strings"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/session"
)

// SessionReader resolves the browser session, nil when absent or invalid.
type SessionReader interface {
	FromRequest(r *http.Request) *session.Session
}

// AuthorizeController handles GET /authorize.
type AuthorizeController struct {
	service  svc.AuthorizeService
	sessions SessionReader
}

func NewAuthorizeController(s svc.AuthorizeService, sessions SessionReader) *AuthorizeController {
	return &AuthorizeController{service: s, sessions: sessions}
}

// Authorize validates the request and either redirects to login (parking the
// request) or auto-approves and redirects back with ?code=&state=.
// GET /authorize?request_id=… resumes a parked request.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	const op = "AuthorizeController.Authorize"
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op(op))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	w.Header().Add("Vary", "Cookie")

	q := r.URL.Query()
	var req dto.AuthorizeRequest
	if rid := strings.TrimSpace(q.Get("request_id")); rid != "" {
		resumed, err := c.service.Resume(ctx, rid)
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		req = resumed
	} else {
		req = dto.AuthorizeRequest{
			ResponseType:        strings.TrimSpace(q.Get("response_type")),
			ClientID:            strings.TrimSpace(q.Get("client_id")),
			RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
			Scope:               strings.TrimSpace(q.Get("scope")),
			State:               q.Get("state"),
			CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
			CodeChallengeMethod: strings.TrimSpace(q.Get("code_challenge_method")),
			Resource:            strings.TrimSpace(q.Get("resource")),
			Provider:            strings.TrimSpace(q.Get("idp")),
		}
	}

	log.Debug("authorize request", logger.ClientID(req.ClientID), logger.Scope(req.Scope))

	result, err := c.service.Authorize(ctx, req, c.sessions.FromRequest(r))
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	switch result.Type {
	case dto.AuthResultNeedLogin:
		http.Redirect(w, r, result.LoginURL, http.StatusFound)
	default:
		loc := addQueryParam(result.RedirectURI, "code", result.Code)
		if result.State != "" {
			loc = addQueryParam(loc, "state", result.State)
		}
		http.Redirect(w, r, loc, http.StatusFound)
	}
}

func addQueryParam(raw, k, v string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(k, v)
	u.RawQuery = q.Encode()
	return u.String()
}
