package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/dropDatabas3/toolgate/internal/cache"
	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	"github.com/dropDatabas3/toolgate/internal/security/pkce"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
	"github.com/dropDatabas3/toolgate/internal/session"
)

const (
	cacheKeyPrefixPending = "authz:req:"

	DefaultCodeTTL = 10 * time.Minute
	PendingTTL     = 10 * time.Minute

	codeBytes      = 32
	requestIDBytes = 24
	challengeLen   = 43 // base64url(SHA-256) sin padding
)

// AuthorizeService validates authorization requests and issues single-use codes.
type AuthorizeService interface {
	// Authorize runs the request against sess. A nil sess parks the request
	// and returns AuthResultNeedLogin.
	Authorize(ctx context.Context, req dto.AuthorizeRequest, sess *session.Session) (dto.AuthResult, error)

	// Resume takes a parked request (read-once).
	Resume(ctx context.Context, requestID string) (dto.AuthorizeRequest, error)
}

// ProviderSet is the slice of the identity registry the service needs.
type ProviderSet interface {
	Has(name string) bool
}

type AuthorizeDeps struct {
	Clients         ClientRegistry
	Codes           repository.AuthCodeRepository
	Cache           cache.Client
	Providers       ProviderSet
	DefaultProvider string
	CodeTTL         time.Duration
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

type authorizeService struct {
	clients         ClientRegistry
	codes           repository.AuthCodeRepository
	cache           cache.Client
	providers       ProviderSet
	defaultProvider string
	codeTTL         time.Duration
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewAuthorizeService(d AuthorizeDeps) AuthorizeService {
	s := &authorizeService{
		clients:         d.Clients,
		codes:           d.Codes,
		cache:           d.Cache,
		providers:       d.Providers,
		defaultProvider: d.DefaultProvider,
		codeTTL:         d.CodeTTL,
		metrics:         d.Metrics,
		now:             d.Now,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultCodeTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *authorizeService) Authorize(ctx context.Context, req dto.AuthorizeRequest, sess *session.Session) (dto.AuthResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("AuthorizeService.Authorize"))

	// 1. Forma del request
	if err := validateAuthorizeRequest(req); err != nil {
		return dto.AuthResult{}, err
	}

	// 2. Cliente, redirect, scopes, grant
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		log.Debug("client resolution failed", logger.ClientID(req.ClientID), logger.Err(err))
		return dto.AuthResult{}, err
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return dto.AuthResult{}, errDetail(ErrInvalidRequest, "redirect_uri is not registered for this client")
	}
	scope, err := grantedScope(req.Scope, client)
	if err != nil {
		return dto.AuthResult{}, err
	}
	if !client.AllowsGrant(repository.GrantAuthorizationCode) {
		return dto.AuthResult{}, errDetail(ErrUnauthorizedClient, "client is not allowed to use authorization_code")
	}

	// 3. Sin sesión: estacionar el request y mandar a login
	if sess == nil {
		provider := req.Provider
		if provider == "" {
			provider = s.defaultProvider
		}
		if s.providers != nil && !s.providers.Has(provider) {
			return dto.AuthResult{}, errDetail(ErrInvalidRequest, "unknown identity provider")
		}
		id, err := s.park(ctx, req)
		if err != nil {
			return dto.AuthResult{}, err
		}
		log.Debug("authorization parked for login", logger.ClientID(client.ClientID), logger.Provider(provider))
		return dto.AuthResult{
			Type:      dto.AuthResultNeedLogin,
			RequestID: id,
			LoginURL:  "/login/" + url.PathEscape(provider) + "?request_id=" + url.QueryEscape(id),
		}, nil
	}

	// 4. Sesión válida: auto-aprobar y emitir code
	code, err := tokens.GenerateOpaqueToken(codeBytes)
	if err != nil {
		return dto.AuthResult{}, fmt.Errorf("generate code: %w", err)
	}
	now := s.now().UTC()
	rec := &repository.AuthorizationCode{
		CodeHash:            tokens.SHA256Base64URL(code),
		ClientID:            client.ClientID,
		UserID:              sess.UserID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope.String(),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Resource:            req.Resource,
		IssuedAt:            now,
		ExpiresAt:           now.Add(s.codeTTL),
	}
	if err := s.codes.Save(ctx, rec); err != nil {
		return dto.AuthResult{}, fmt.Errorf("save code: %w", err)
	}
	s.metrics.RecordCodeIssued()
	log.Info("authorization code issued", logger.ClientID(client.ClientID), logger.UserID(sess.UserID), logger.Scope(rec.Scope))

	return dto.AuthResult{
		Type:        dto.AuthResultSuccess,
		RedirectURI: req.RedirectURI,
		Code:        code,
		State:       req.State,
	}, nil
}

func (s *authorizeService) Resume(ctx context.Context, requestID string) (dto.AuthorizeRequest, error) {
	if requestID == "" {
		return dto.AuthorizeRequest{}, errDetail(ErrInvalidRequest, "request_id is required")
	}
	raw, err := s.cache.Take(ctx, cacheKeyPrefixPending+requestID)
	if err != nil {
		if cache.IsNotFound(err) {
			return dto.AuthorizeRequest{}, errDetail(ErrInvalidRequest, "unknown or expired request_id")
		}
		return dto.AuthorizeRequest{}, fmt.Errorf("take pending authorization: %w", err)
	}
	var p dto.PendingAuthorization
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return dto.AuthorizeRequest{}, fmt.Errorf("decode pending authorization: %w", err)
	}
	return p.AuthorizeRequest, nil
}

func (s *authorizeService) park(ctx context.Context, req dto.AuthorizeRequest) (string, error) {
	id, err := tokens.GenerateOpaqueToken(requestIDBytes)
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	b, err := json.Marshal(dto.PendingAuthorization{ID: id, AuthorizeRequest: req, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, cacheKeyPrefixPending+id, string(b), PendingTTL); err != nil {
		return "", fmt.Errorf("park authorization: %w", err)
	}
	return id, nil
}

func validateAuthorizeRequest(req dto.AuthorizeRequest) error {
	switch {
	case req.ResponseType == "":
		return errDetail(ErrInvalidRequest, "response_type is required")
	case req.ResponseType != "code":
		return ErrUnsupportedResponseType
	case req.ClientID == "":
		return errDetail(ErrInvalidRequest, "client_id is required")
	case req.RedirectURI == "":
		return errDetail(ErrInvalidRequest, "redirect_uri is required")
	case req.CodeChallenge == "":
		return errDetail(ErrInvalidRequest, "code_challenge is required")
	case req.CodeChallengeMethod != pkce.MethodS256:
		return errDetail(ErrInvalidRequest, "code_challenge_method must be S256")
	case len(req.CodeChallenge) != challengeLen:
		return errDetail(ErrInvalidRequest, "code_challenge is malformed")
	}
	if req.Resource != "" {
		u, err := url.Parse(req.Resource)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return errDetail(ErrInvalidRequest, "resource must be an absolute URI without fragment")
		}
	}
	return nil
}

// grantedScope: vacío => scopes del cliente; si no, debe ser subconjunto.
func grantedScope(requested string, c *repository.Client) (scopes.Set, error) {
	allowed := scopes.New(c.Scopes...)
	req := scopes.Parse(requested)
	if len(req) == 0 {
		return allowed, nil
	}
	if !req.SubsetOf(allowed) {
		return nil, errDetail(ErrInvalidScope, "requested scope exceeds the client's registered scope")
	}
	return req, nil
}
