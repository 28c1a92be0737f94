// Package google implements the Google identity provider: OAuth2 code + PKCE
// exchange followed by one call to the userinfo endpoint, which returns the
// email directly.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/toolgate/internal/identity"
)

const ProviderName = "google"

const (
	defaultAuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL   = "https://oauth2.googleapis.com/token"
	defaultProfileURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Provider implements identity.Provider for Google.
type Provider struct {
	oauth      *oauth2.Config
	profileURL string
	client     *http.Client
}

// New validates cfg and builds the provider.
func New(cfg identity.Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: client_id required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   identity.Or(cfg.AuthURL, defaultAuthURL),
				TokenURL:  identity.Or(cfg.TokenURL, defaultTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: identity.Or(cfg.ProfileURL, defaultProfileURL),
		client:     cfg.Client(),
	}, nil
}

// Factory adapts New to identity.Factory.
func Factory(_ context.Context, cfg identity.Config) (identity.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) AuthorizationURL(state, codeVerifier string, scopes []string) string {
	return identity.AuthCodeURL(p.oauth, state, codeVerifier, scopes)
}

type userinfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*identity.UserInfo, error) {
	tok, err := identity.Exchange(ctx, p.oauth, p.client, code, codeVerifier)
	if err != nil {
		return nil, err
	}

	var ui userinfo
	if err := identity.FetchJSON(ctx, p.client, p.profileURL, tok.AccessToken, &ui); err != nil {
		return nil, err
	}
	if ui.Sub == "" || ui.Email == "" {
		return nil, fmt.Errorf("%w: google profile without sub/email", identity.ErrProfileFetchFailed)
	}
	if !ui.EmailVerified {
		return nil, fmt.Errorf("%w: google email not verified", identity.ErrProfileFetchFailed)
	}
	return &identity.UserInfo{
		ID:       ui.Sub,
		Email:    ui.Email,
		Name:     ui.Name,
		Picture:  ui.Picture,
		Provider: ProviderName,
	}, nil
}
