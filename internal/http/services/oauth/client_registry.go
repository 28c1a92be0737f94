package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
)

const clientSecretBytes = 32

var (
	supportedGrantTypes    = []string{repository.GrantAuthorizationCode, repository.GrantRefreshToken, repository.GrantClientCredentials}
	supportedResponseTypes = []string{"code"}
	supportedAuthMethods   = []string{repository.AuthMethodNone, repository.AuthMethodClientSecretPost, repository.AuthMethodClientSecretBasic}
)

// ClientRegistry registers and resolves OAuth clients.
type ClientRegistry interface {
	// Register validates the metadata and persists a new client. The raw
	// secret (confidential clients only) is returned once in the response.
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)

	// FindByID returns ErrInvalidClient for unknown clients.
	FindByID(ctx context.Context, clientID string) (*repository.Client, error)

	// Authenticate resolves the client and, for confidential clients, checks
	// the secret against the stored bcrypt hash.
	Authenticate(ctx context.Context, clientID, secret string) (*repository.Client, error)
}

type ClientRegistryDeps struct {
	Clients repository.ClientRepository
	Now     func() time.Time
}

type clientRegistry struct {
	clients repository.ClientRepository
	now     func() time.Time
}

func NewClientRegistry(d ClientRegistryDeps) ClientRegistry {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &clientRegistry{clients: d.Clients, now: now}
}

func (s *clientRegistry) Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("ClientRegistry.Register"))

	if len(req.RedirectURIs) == 0 {
		return nil, errDetail(ErrInvalidRedirectURI, "redirect_uris is required")
	}
	for _, u := range req.RedirectURIs {
		if err := validateRedirectURI(u); err != nil {
			return nil, err
		}
	}

	grants := defaultList(req.GrantTypes, repository.GrantAuthorizationCode, repository.GrantRefreshToken)
	for _, g := range grants {
		if !slices.Contains(supportedGrantTypes, g) {
			return nil, errDetail(ErrInvalidClientMetadata, "unsupported grant_type: "+g)
		}
	}

	responses := req.ResponseTypes
	if len(responses) == 0 && slices.Contains(grants, repository.GrantAuthorizationCode) {
		responses = []string{"code"}
	}
	for _, rt := range responses {
		if !slices.Contains(supportedResponseTypes, rt) {
			return nil, errDetail(ErrInvalidClientMetadata, "unsupported response_type: "+rt)
		}
	}
	if slices.Contains(grants, repository.GrantAuthorizationCode) && !slices.Contains(responses, "code") {
		return nil, errDetail(ErrInvalidClientMetadata, "authorization_code requires response_type code")
	}

	method := strings.TrimSpace(req.TokenEndpointAuthMethod)
	if method == "" {
		method = repository.AuthMethodNone
	}
	if !slices.Contains(supportedAuthMethods, method) {
		return nil, errDetail(ErrInvalidClientMetadata, "unsupported token_endpoint_auth_method: "+method)
	}
	public := method == repository.AuthMethodNone
	if public && slices.Contains(grants, repository.GrantClientCredentials) {
		return nil, errDetail(ErrInvalidClientMetadata, "client_credentials requires a confidential client")
	}

	requested := scopes.Parse(req.Scope)
	if len(requested) == 0 {
		requested = scopes.New(scopes.UserPreset()...)
	}
	for s := range requested {
		if !scopes.IsSupported(s) {
			return nil, errDetail(ErrInvalidClientMetadata, "unsupported scope: "+s)
		}
	}

	now := s.now().UTC()
	c := &repository.Client{
		ClientID:                uuid.NewString(),
		Name:                    strings.TrimSpace(req.ClientName),
		RedirectURIs:            slices.Clone(req.RedirectURIs),
		GrantTypes:              grants,
		ResponseTypes:           responses,
		Scopes:                  requested.List(),
		IsPublic:                public,
		TokenEndpointAuthMethod: method,
		CreatedAt:               now,
	}

	var secret string
	if !public {
		var err error
		if secret, err = tokens.GenerateOpaqueToken(clientSecretBytes); err != nil {
			return nil, fmt.Errorf("generate client secret: %w", err)
		}
		if c.SecretHash, err = tokens.HashSecret(secret); err != nil {
			return nil, fmt.Errorf("hash client secret: %w", err)
		}
	}

	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	log.Info("client registered", logger.ClientID(c.ClientID), logger.Bool("public", public))

	resp := &dto.RegisterResponse{
		ClientID:                c.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        now.Unix(),
		ClientName:              c.Name,
		RedirectURIs:            c.RedirectURIs,
		GrantTypes:              c.GrantTypes,
		ResponseTypes:           c.ResponseTypes,
		Scope:                   strings.Join(c.Scopes, " "),
		TokenEndpointAuthMethod: c.TokenEndpointAuthMethod,
	}
	if !public {
		never := int64(0)
		resp.ClientSecretExpiresAt = &never
	}
	return resp, nil
}

func (s *clientRegistry) FindByID(ctx context.Context, clientID string) (*repository.Client, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrInvalidClient
	}
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *clientRegistry) Authenticate(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	c, err := s.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.IsPublic {
		if secret != "" {
			return nil, errDetail(ErrInvalidClient, "public clients must not send a secret")
		}
		return c, nil
	}
	if err := tokens.CompareSecret(c.SecretHash, secret); err != nil {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// validateRedirectURI: absoluta, sin fragmento; https, http sólo en loopback,
// o un esquema propio (apps nativas, RFC 8252).
func validateRedirectURI(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return errDetail(ErrInvalidRedirectURI, "redirect_uri must be an absolute URI")
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return errDetail(ErrInvalidRedirectURI, "redirect_uri must not contain a fragment")
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		if u.Host == "" {
			return errDetail(ErrInvalidRedirectURI, "redirect_uri must include a host")
		}
	case "http":
		if !isLoopback(u.Hostname()) {
			return errDetail(ErrInvalidRedirectURI, "http redirect_uri is only allowed on loopback")
		}
	case "javascript", "data", "file":
		return errDetail(ErrInvalidRedirectURI, "redirect_uri scheme not allowed")
	default:
		// esquema propio de app nativa: com.example.app:/cb
	}
	return nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultList(v []string, def ...string) []string {
	if len(v) == 0 {
		return def
	}
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
