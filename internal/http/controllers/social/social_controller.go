// Package social exposes /login/{provider}, /callback/{provider} and /logout.
package social

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/social"
	"github.com/dropDatabas3/toolgate/internal/identity"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
	"github.com/dropDatabas3/toolgate/internal/session"
)

// Sessions is the part of session.Manager the controller drives.
type Sessions interface {
	CreateSessionToken(u identity.UserInfo) (string, time.Time, error)
	SetSessionCookie(w http.ResponseWriter, token string)
	ClearSessionCookie(w http.ResponseWriter)
	SetEphemeral(w http.ResponseWriter, purpose, value string) error
	TakeEphemeral(ctx context.Context, w http.ResponseWriter, r *http.Request, purpose string) (string, error)
}

type Deps struct {
	Service  svc.Service
	Sessions Sessions
	// PostLoginURL is where the browser lands when no authorization is pending.
	PostLoginURL string
}

type Controller struct {
	service      svc.Service
	sessions     Sessions
	postLoginURL string
}

func NewController(d Deps) *Controller {
	post := d.PostLoginURL
	if post == "" {
		post = "/"
	}
	return &Controller{service: d.Service, sessions: d.Sessions, postLoginURL: post}
}

// Login starts the provider dance. GET /login/{provider}?request_id=…
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Login"), logger.Provider(provider))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	begin, err := c.service.Begin(ctx, provider)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownProvider) {
			httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("unknown identity provider"))
			return
		}
		log.Error("begin login failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	if err := c.sessions.SetEphemeral(w, session.PurposeState, begin.State); err != nil {
		log.Error("set state cookie failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}
	if err := c.sessions.SetEphemeral(w, session.PurposeVerifier, begin.Verifier); err != nil {
		log.Error("set verifier cookie failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}
	if rid := strings.TrimSpace(r.URL.Query().Get("request_id")); rid != "" {
		if err := c.sessions.SetEphemeral(w, session.PurposeRequest, rid); err != nil {
			log.Error("set request cookie failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrServerError)
			return
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, begin.AuthURL, http.StatusFound)
}

// Callback finishes the dance. GET /callback/{provider}?code=&state=
// The ephemeral cookies are consumed on every path so a failed callback cannot
// be replayed.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialController.Callback"), logger.Provider(provider))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-store")

	wantState, stateErr := c.sessions.TakeEphemeral(ctx, w, r, session.PurposeState)
	verifier, verifierErr := c.sessions.TakeEphemeral(ctx, w, r, session.PurposeVerifier)
	requestID, _ := c.sessions.TakeEphemeral(ctx, w, r, session.PurposeRequest)

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Warn("provider returned error", logger.String("provider_error", e))
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("identity provider denied the login"))
		return
	}
	if stateErr != nil || verifierErr != nil {
		log.Warn("login cookies unusable", logger.Err(errors.Join(stateErr, verifierErr)))
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("login session expired or already used"))
		return
	}
	if got := q.Get("state"); got == "" || !tokens.ConstantTimeEqual(got, wantState) {
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("state mismatch"))
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("code is required"))
		return
	}

	user, err := c.service.Complete(ctx, provider, code, verifier)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownProvider) {
			httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("unknown identity provider"))
			return
		}
		httperrors.WriteError(w, httperrors.ErrServerError.WithDetail("identity verification failed"))
		return
	}

	tok, _, err := c.sessions.CreateSessionToken(*user)
	if err != nil {
		log.Error("create session failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}
	c.sessions.SetSessionCookie(w, tok)

	dest := c.postLoginURL
	if requestID != "" {
		dest = "/authorize?request_id=" + url.QueryEscape(requestID)
	}
	log.Info("login completed", logger.UserID(user.ID))
	http.Redirect(w, r, dest, http.StatusFound)
}

// Logout clears the session cookie. POST /logout
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	c.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
