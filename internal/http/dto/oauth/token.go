package oauth

// TokenRequest es el body form-encoded de POST /token.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Resource     string
	ClientID     string
	ClientSecret string
	// ClientAuthBasic es true si las credenciales vinieron en Authorization: Basic.
	ClientAuthBasic bool
}

// TokenResponse es la respuesta estándar de /token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
