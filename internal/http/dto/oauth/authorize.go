// Package oauth contiene los DTOs de los endpoints OAuth (authorize, token, register, metadata).
package oauth

import "time"

// AuthorizeRequest son los parámetros de GET /authorize.
type AuthorizeRequest struct {
	ResponseType        string `json:"response_type"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope,omitempty"`
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	Resource            string `json:"resource,omitempty"`
	Provider            string `json:"idp,omitempty"`
}

// PendingAuthorization es un AuthorizeRequest guardado mientras el usuario hace login.
type PendingAuthorization struct {
	ID string `json:"id"`
	AuthorizeRequest
	CreatedAt time.Time `json:"created_at"`
}

// AuthResultType indica qué debe hacer el controller.
type AuthResultType int

const (
	// AuthResultSuccess redirige al cliente con code (+state).
	AuthResultSuccess AuthResultType = iota
	// AuthResultNeedLogin redirige a /login/{provider}?request_id=…
	AuthResultNeedLogin
)

// AuthResult es el resultado de AuthorizeService.Authorize.
type AuthResult struct {
	Type        AuthResultType
	RedirectURI string
	Code        string
	State       string
	LoginURL    string
	RequestID   string
}
