// Package social drives the external-identity login dance: it prepares the
// provider redirect (state + PKCE verifier) and turns a callback code into a
// verified identity.
package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/toolgate/internal/identity"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/security/pkce"
)

// Result labels for the identity exchange counter.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Begin is what the login controller needs to redirect the browser.
type Begin struct {
	AuthURL  string
	State    string
	Verifier string
}

// Service is the login/callback logic, independent of cookies.
type Service interface {
	Begin(ctx context.Context, provider string) (*Begin, error)
	// Complete exchanges the provider code. The returned identity carries an
	// ID namespaced by provider ("google:<sub>").
	Complete(ctx context.Context, provider, code, verifier string) (*identity.UserInfo, error)
}

// ProviderSource is the part of identity.Registry the service uses.
type ProviderSource interface {
	Get(ctx context.Context, name string) (identity.Provider, error)
}

type Deps struct {
	Providers ProviderSource
	Metrics   *metrics.Metrics
}

type service struct {
	providers ProviderSource
	metrics   *metrics.Metrics
}

func NewService(d Deps) Service {
	return &service{providers: d.Providers, metrics: d.Metrics}
}

func (s *service) Begin(ctx context.Context, name string) (*Begin, error) {
	p, err := s.providers.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate verifier: %w", err)
	}
	return &Begin{
		AuthURL:  p.AuthorizationURL(state, verifier, nil),
		State:    state,
		Verifier: verifier,
	}, nil
}

func (s *service) Complete(ctx context.Context, name, code, verifier string) (*identity.UserInfo, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("social.Complete"), logger.Provider(name))

	p, err := s.providers.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	u, err := p.ExchangeCode(ctx, code, verifier)
	if err != nil {
		s.metrics.RecordIdentityExchange(name, resultError)
		if errors.Is(err, identity.ErrProviderExchangeFailed) || errors.Is(err, identity.ErrProfileFetchFailed) {
			log.Warn("identity exchange failed", logger.Err(err))
		} else {
			log.Error("identity exchange failed", logger.Err(err))
		}
		return nil, err
	}
	if u == nil || u.ID == "" {
		s.metrics.RecordIdentityExchange(name, resultError)
		return nil, fmt.Errorf("%w: empty identity", identity.ErrProfileFetchFailed)
	}

	s.metrics.RecordIdentityExchange(name, resultOK)
	out := *u
	out.Provider = p.Name()
	out.ID = p.Name() + ":" + u.ID
	log.Info("identity verified", logger.UserID(out.ID), logger.Email(out.Email))
	return &out, nil
}
