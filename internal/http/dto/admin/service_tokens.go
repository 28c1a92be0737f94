// Package admin contiene los DTOs de las rutas internas.
package admin

// IssueServiceTokenRequest emite un service token. Preset ("user"|"admin")
// y Scopes son excluyentes; si vienen ambos gana Scopes.
type IssueServiceTokenRequest struct {
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes,omitempty"`
	Preset string   `json:"preset,omitempty"`
}

type IssueServiceTokenResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int64    `json:"expires_in"`
	ExpiresAt int64    `json:"expires_at"`
	Scopes    []string `json:"scopes"`
}

type RevokeServiceTokenRequest struct {
	Token string `json:"token"`
}
