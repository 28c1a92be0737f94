// Package line implements the LINE Login provider. The email only travels in
// the ID token, so the token is verified (signature, issuer, audience, expiry)
// before the claim is trusted. The profile endpoint supplies id, name and picture.
package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/toolgate/internal/identity"
)

const ProviderName = "line"

const (
	defaultIssuer     = "https://access.line.me"
	defaultAuthURL    = "https://access.line.me/oauth2/v2.1/authorize"
	defaultTokenURL   = "https://api.line.me/oauth2/v2.1/token"
	defaultProfileURL = "https://api.line.me/v2/profile"
	defaultJWKSURL    = "https://api.line.me/oauth2/v2.1/certs"
)

// Provider implements identity.Provider for LINE.
type Provider struct {
	oauth      *oauth2.Config
	profileURL string
	client     *http.Client
	issuer     string

	// verifier checks asymmetric (ES256) ID tokens against the published JWKS.
	verifier   *oidc.IDTokenVerifier
	skipVerify bool
}

type Option func(*options)

type options struct {
	keySet oidc.KeySet
}

// WithKeySet replaces the remote JWKS (tests, pinned keys).
func WithKeySet(ks oidc.KeySet) Option {
	return func(o *options) { o.keySet = ks }
}

func New(ctx context.Context, cfg identity.Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("line: client_id required")
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	client := cfg.Client()
	issuer := identity.Or(cfg.Issuer, defaultIssuer)

	ks := o.keySet
	if ks == nil {
		// La key set remota se cachea y refresca por kid.
		ks = oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), client), identity.Or(cfg.JWKSURL, defaultJWKSURL))
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
		client:     client,
		issuer:     issuer,
		verifier: oidc.NewVerifier(issuer, ks, &oidc.Config{
			ClientID:             cfg.ClientID,
			SupportedSigningAlgs: []string{oidc.ES256, oidc.RS256},
		}),
		skipVerify: cfg.InsecureSkipIDTokenVerify,
	}, nil
}

func Factory(ctx context.Context, cfg identity.Config) (identity.Provider, error) {
	return New(ctx, cfg)
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) AuthorizationURL(state, codeVerifier string, scopes []string) string {
	return identity.AuthCodeURL(p.oauth, state, codeVerifier, scopes)
}

type idClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*identity.UserInfo, error) {
	tok, err := identity.Exchange(ctx, p.oauth, p.client, code, codeVerifier)
	if err != nil {
		return nil, err
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("%w: line response without id_token", identity.ErrProfileFetchFailed)
	}
	claims, err := p.verifyIDToken(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrProfileFetchFailed, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: id_token without email (scope email not granted?)", identity.ErrProfileFetchFailed)
	}

	var prof profile
	if err := identity.FetchJSON(ctx, p.client, p.profileURL, tok.AccessToken, &prof); err != nil {
		return nil, err
	}
	if prof.UserID == "" {
		return nil, fmt.Errorf("%w: line profile without userId", identity.ErrProfileFetchFailed)
	}
	if prof.UserID != claims.Sub {
		return nil, fmt.Errorf("%w: profile/id_token subject mismatch", identity.ErrProfileFetchFailed)
	}

	return &identity.UserInfo{
		ID:       prof.UserID,
		Email:    claims.Email,
		Name:     identity.Or(prof.DisplayName, claims.Name),
		Picture:  identity.Or(prof.PictureURL, claims.Picture),
		Provider: ProviderName,
	}, nil
}

// verifyIDToken: ES256/RS256 via go-oidc (JWKS); HS256 (web channels) with the
// channel secret. Dev mode with skipVerify only decodes.
func (p *Provider) verifyIDToken(ctx context.Context, raw string) (*idClaims, error) {
	if p.skipVerify {
		return decodeUnverified(raw)
	}

	alg, err := headerAlg(raw)
	if err != nil {
		return nil, err
	}
	if alg == "HS256" {
		return p.verifyHS256(raw)
	}

	tok, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("id_token verify: %w", err)
	}
	var c idClaims
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("id_token claims: %w", err)
	}
	c.Sub = tok.Subject
	return &c, nil
}

func (p *Provider) verifyHS256(raw string) (*idClaims, error) {
	if p.oauth.ClientSecret == "" {
		return nil, errors.New("id_token HS256 without channel secret")
	}
	claims := jwtv5.MapClaims{}
	_, err := jwtv5.ParseWithClaims(raw, claims,
		func(*jwtv5.Token) (any, error) { return []byte(p.oauth.ClientSecret), nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(p.issuer),
		jwtv5.WithAudience(p.oauth.ClientID),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("id_token verify: %w", err)
	}
	return mapClaims(claims), nil
}

func headerAlg(raw string) (string, error) {
	tok, _, err := jwtv5.NewParser().ParseUnverified(raw, jwtv5.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("id_token malformed: %w", err)
	}
	alg, _ := tok.Header["alg"].(string)
	return strings.TrimSpace(alg), nil
}

func decodeUnverified(raw string) (*idClaims, error) {
	claims := jwtv5.MapClaims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("id_token malformed: %w", err)
	}
	return mapClaims(claims), nil
}

func mapClaims(m jwtv5.MapClaims) *idClaims {
	c := &idClaims{}
	c.Sub, _ = m["sub"].(string)
	c.Email, _ = m["email"].(string)
	c.Name, _ = m["name"].(string)
	c.Picture, _ = m["picture"].(string)
	return c
}
