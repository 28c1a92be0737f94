// Package admin exposes the internal service-token routes behind the admin key.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/servicetoken"
)

// ServiceTokens is the part of servicetoken.Issuer the controller uses.
type ServiceTokens interface {
	Issue(ctx context.Context, userID string, scopeList []string) (string, time.Time, error)
	IssuePreset(ctx context.Context, userID, preset string) (string, time.Time, error)
	Verify(ctx context.Context, token string) (*servicetoken.Principal, error)
	Revoke(ctx context.Context, token string) error
}

type ServiceTokensController struct {
	tokens ServiceTokens
	now    func() time.Time
}

func NewServiceTokensController(t ServiceTokens) *ServiceTokensController {
	return &ServiceTokensController{tokens: t, now: time.Now}
}

// Issue handles POST /internal/service-tokens.
func (c *ServiceTokensController) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ServiceTokensController.Issue"))
	helpers.NoStore(w)

	var req dto.IssueServiceTokenRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("user_id is required"))
		return
	}

	var (
		tok string
		exp time.Time
		err error
	)
	switch {
	case len(req.Scopes) > 0:
		tok, exp, err = c.tokens.Issue(ctx, req.UserID, req.Scopes)
	case req.Preset != "":
		tok, exp, err = c.tokens.IssuePreset(ctx, req.UserID, req.Preset)
	default:
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("scopes or preset is required"))
		return
	}
	if err != nil {
		if errors.Is(err, servicetoken.ErrInvalidScope) {
			httperrors.WriteError(w, httperrors.ErrInvalidScope.WithDetail("unsupported scope or preset"))
			return
		}
		log.Error("issue service token failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	p, err := c.tokens.Verify(ctx, tok)
	if err != nil {
		log.Error("read back service token failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	log.Info("service token issued", logger.UserID(req.UserID))
	helpers.WriteJSON(w, http.StatusCreated, dto.IssueServiceTokenResponse{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(exp.Sub(c.now()).Round(time.Second) / time.Second),
		ExpiresAt: exp.Unix(),
		Scopes:    p.Scopes,
	})
}

// Revoke handles DELETE /internal/service-tokens. Idempotent.
func (c *ServiceTokensController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.RevokeServiceTokenRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("token is required"))
		return
	}
	if err := c.tokens.Revoke(ctx, req.Token); err != nil {
		logger.From(ctx).Error("revoke service token failed", logger.Layer("controller"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
