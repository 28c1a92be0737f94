// Package oauth contains the controllers for /authorize, /token, /register
// and the discovery documents.
package oauth

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

var errorTable = []struct {
	kind error
	app  *httperrors.AppError
}{
	{svc.ErrInvalidRequest, httperrors.ErrInvalidRequest},
	{svc.ErrInvalidClient, httperrors.ErrInvalidClient},
	{svc.ErrInvalidGrant, httperrors.ErrInvalidGrant},
	{svc.ErrUnauthorizedClient, httperrors.ErrUnauthorizedClient},
	{svc.ErrUnsupportedGrantType, httperrors.ErrUnsupportedGrantType},
	{svc.ErrUnsupportedResponseType, httperrors.ErrUnsupportedResponseType},
	{svc.ErrInvalidScope, httperrors.ErrInvalidScope},
	{svc.ErrInvalidRedirectURI, httperrors.ErrInvalidRedirectURI},
	{svc.ErrInvalidClientMetadata, httperrors.ErrInvalidClientMetadata},
}

// toAppError maps service errors to the wire format. Anything unknown is a
// server_error whose cause is only logged.
func toAppError(err error) *httperrors.AppError {
	var app *httperrors.AppError
	if errors.As(err, &app) {
		return app
	}
	for _, e := range errorTable {
		if errors.Is(err, e.kind) {
			if d := svc.Detail(err); d != "" {
				return e.app.WithDetail(d)
			}
			return e.app
		}
	}
	return httperrors.ErrServerError.WithCause(err)
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	app := toAppError(err)
	if app.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed", logger.Layer("controller"), logger.Op(op), logger.Err(err))
	}
	httperrors.WriteError(w, app)
}
