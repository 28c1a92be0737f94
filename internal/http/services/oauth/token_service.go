package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	"github.com/dropDatabas3/toolgate/internal/security/pkce"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
)

const (
	DefaultRefreshTTL = 30 * 24 * time.Hour
	refreshTokenBytes = 32
	tokenTypeBearer   = "Bearer"
)

// TokenService handles the /token grants.
type TokenService interface {
	// Exchange dispatches on req.GrantType.
	Exchange(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)

	ExchangeAuthorizationCode(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
	ExchangeClientCredentials(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
}

type TokenDeps struct {
	Clients    ClientRegistry
	Codes      repository.AuthCodeRepository
	Refresh    repository.RefreshTokenRepository
	Issuer     *jwtx.Issuer
	RefreshTTL time.Duration
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type tokenService struct {
	clients    ClientRegistry
	codes      repository.AuthCodeRepository
	refresh    repository.RefreshTokenRepository
	issuer     *jwtx.Issuer
	refreshTTL time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewTokenService(d TokenDeps) TokenService {
	s := &tokenService{
		clients:    d.Clients,
		codes:      d.Codes,
		refresh:    d.Refresh,
		issuer:     d.Issuer,
		refreshTTL: d.RefreshTTL,
		metrics:    d.Metrics,
		now:        d.Now,
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *tokenService) Exchange(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	switch req.GrantType {
	case "":
		return nil, errDetail(ErrInvalidRequest, "grant_type is required")
	case repository.GrantAuthorizationCode:
		return s.ExchangeAuthorizationCode(ctx, req)
	case repository.GrantRefreshToken:
		return s.ExchangeRefreshToken(ctx, req)
	case repository.GrantClientCredentials:
		return s.ExchangeClientCredentials(ctx, req)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

// ExchangeAuthorizationCode redeems a code under PKCE. The code is taken
// atomically before any comparison, so a failed attempt still consumes it.
func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("TokenService.ExchangeAuthorizationCode"))

	if req.Code == "" || req.RedirectURI == "" || req.ClientID == "" || req.CodeVerifier == "" {
		return nil, errDetail(ErrInvalidRequest, "code, redirect_uri, client_id and code_verifier are required")
	}

	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(repository.GrantAuthorizationCode) {
		return nil, ErrUnauthorizedClient
	}
	if !pkce.ValidVerifier(req.CodeVerifier) {
		return nil, ErrInvalidGrant
	}

	code, err := s.codes.Take(ctx, tokens.SHA256Base64URL(req.Code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug("code not found or already used", logger.ClientID(req.ClientID))
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("take code: %w", err)
	}

	if repository.Expired(code.ExpiresAt, s.now()) {
		log.Debug("code expired", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}
	if code.ClientID != client.ClientID || code.RedirectURI != req.RedirectURI {
		log.Warn("code binding mismatch", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}
	if req.Resource != "" && req.Resource != code.Resource {
		return nil, ErrInvalidGrant
	}
	ok, err := pkce.VerifyChallenge(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod)
	if err != nil || !ok {
		log.Warn("pkce verification failed", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}

	granted := scopes.Parse(code.Scope)
	resp, err := s.mint(ctx, code.UserID, client.ClientID, code.Resource, granted)
	if err != nil {
		return nil, err
	}
	if client.AllowsGrant(repository.GrantRefreshToken) {
		if resp.RefreshToken, err = s.newRefreshToken(ctx, client.ClientID, code.UserID, code.Scope, code.Resource); err != nil {
			return nil, err
		}
	}

	s.metrics.RecordTokenIssued(repository.GrantAuthorizationCode)
	log.Info("tokens issued", logger.GrantType(repository.GrantAuthorizationCode), logger.ClientID(client.ClientID), logger.UserID(code.UserID))
	return resp, nil
}

// ExchangeRefreshToken rotates the refresh token. The presented token is
// only consumed once the client and the requested scope have been accepted,
// so a rejected request leaves the grant usable. Take still decides which of
// two concurrent rotations wins.
func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("TokenService.ExchangeRefreshToken"))

	if req.RefreshToken == "" {
		return nil, errDetail(ErrInvalidRequest, "refresh_token is required")
	}
	hash := tokens.SHA256Base64URL(req.RefreshToken)

	rt, err := s.refresh.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if repository.Expired(rt.ExpiresAt, s.now()) {
		log.Debug("refresh token expired", logger.ClientID(rt.ClientID))
		return nil, ErrInvalidGrant
	}
	if req.ClientID != "" && req.ClientID != rt.ClientID {
		log.Warn("refresh token presented by another client", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}

	client, err := s.clients.FindByID(ctx, rt.ClientID)
	if err != nil {
		if errors.Is(err, ErrInvalidClient) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if !client.IsPublic {
		if req.ClientID == "" {
			return nil, ErrInvalidClient
		}
		if _, err := s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret); err != nil {
			return nil, err
		}
	}
	if !client.AllowsGrant(repository.GrantRefreshToken) {
		return nil, ErrUnauthorizedClient
	}

	stored := scopes.Parse(rt.Scope)
	granted := stored
	if req.Scope != "" {
		narrowed := scopes.Parse(req.Scope)
		if !narrowed.SubsetOf(stored) {
			return nil, errDetail(ErrInvalidScope, "requested scope exceeds the original grant")
		}
		granted = narrowed
	}

	if _, err := s.refresh.Take(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("refresh token already rotated", logger.ClientID(rt.ClientID))
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("take refresh token: %w", err)
	}

	resp, err := s.mint(ctx, rt.UserID, rt.ClientID, rt.Resource, granted)
	if err != nil {
		return nil, err
	}
	if resp.RefreshToken, err = s.newRefreshToken(ctx, rt.ClientID, rt.UserID, rt.Scope, rt.Resource); err != nil {
		return nil, err
	}

	s.metrics.RecordTokenIssued(repository.GrantRefreshToken)
	log.Info("refresh token rotated", logger.ClientID(rt.ClientID), logger.UserID(rt.UserID))
	return resp, nil
}

// ExchangeClientCredentials issues a token for the client itself (sub = client_id).
// Without scope it defaults to the discovery read-only set the client holds.
func (s *tokenService) ExchangeClientCredentials(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("TokenService.ExchangeClientCredentials"))

	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, ErrInvalidClient
	}
	client, err := s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		log.Debug("client authentication failed", logger.ClientID(req.ClientID))
		return nil, ErrInvalidClient
	}
	if client.IsPublic || !client.AllowsGrant(repository.GrantClientCredentials) {
		return nil, ErrInvalidClient
	}

	allowed := scopes.New(client.Scopes...)
	var granted scopes.Set
	if req.Scope == "" {
		granted = scopes.New(scopes.DiscoveryReadOnly()...).Intersect(allowed)
	} else {
		granted = scopes.Parse(req.Scope)
		if !granted.SubsetOf(allowed) {
			return nil, errDetail(ErrInvalidScope, "requested scope exceeds the client's registered scope")
		}
	}

	resp, err := s.mint(ctx, client.ClientID, client.ClientID, req.Resource, granted)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(repository.GrantClientCredentials)
	log.Info("tokens issued", logger.GrantType(repository.GrantClientCredentials), logger.ClientID(client.ClientID))
	return resp, nil
}

// authenticateClient: los públicos sólo se identifican; los confidenciales
// deben presentar secret (post o basic).
func (s *tokenService) authenticateClient(ctx context.Context, req dto.TokenRequest) (*repository.Client, error) {
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client.IsPublic {
		return client, nil
	}
	return s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
}

func (s *tokenService) mint(_ context.Context, sub, clientID, resource string, granted scopes.Set) (*dto.TokenResponse, error) {
	scp := granted.List()
	at, _, err := s.issuer.IssueAccess(sub, resource, map[string]any{
		"scope":     granted.String(),
		"scp":       scp,
		"client_id": clientID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &dto.TokenResponse{
		AccessToken: at,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.issuer.AccessTTL / time.Second),
		Scope:       granted.String(),
	}, nil
}

func (s *tokenService) newRefreshToken(ctx context.Context, clientID, userID, scope, resource string) (string, error) {
	raw, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now().UTC()
	if err := s.refresh.Save(ctx, &repository.RefreshToken{
		TokenHash: tokens.SHA256Base64URL(raw),
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		Resource:  resource,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}); err != nil {
		return "", fmt.Errorf("save refresh token: %w", err)
	}
	return raw, nil
}
