// Package server arma todas las dependencias a partir de la config y expone
// el http.Handler listo para servir.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/toolgate/internal/cache"
	"github.com/dropDatabas3/toolgate/internal/config"
	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	adminctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/admin"
	apictrl "github.com/dropDatabas3/toolgate/internal/http/controllers/api"
	healthctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/oauth"
	socialctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/social"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/toolgate/internal/http/middlewares"
	"github.com/dropDatabas3/toolgate/internal/http/router"
	healthsvc "github.com/dropDatabas3/toolgate/internal/http/services/health"
	oauthsvc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	socialsvc "github.com/dropDatabas3/toolgate/internal/http/services/social"
	"github.com/dropDatabas3/toolgate/internal/identity"
	"github.com/dropDatabas3/toolgate/internal/identity/google"
	"github.com/dropDatabas3/toolgate/internal/identity/line"
	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/rate"
	"github.com/dropDatabas3/toolgate/internal/servicetoken"
	"github.com/dropDatabas3/toolgate/internal/session"
	"github.com/dropDatabas3/toolgate/internal/store"
)

// Options permite inyectar piezas ya construidas (tests, CLI).
type Options struct {
	Store     repository.Store
	Cache     cache.Client
	Providers []identity.Provider
	Now       func() time.Time
}

// App es el resultado del wiring.
type App struct {
	Handler       http.Handler
	Store         repository.Store
	Cache         cache.Client
	Issuer        *jwtx.Issuer
	ServiceTokens *servicetoken.Issuer
	Clients       oauthsvc.ClientRegistry
	Metrics       *metrics.Metrics

	closers []func() error
}

// Close libera store, cache y clientes redis en orden inverso.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build construye el grafo completo de dependencias.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.From(ctx).With(logger.Component("wiring"))
	app := &App{}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	// 1. Persistencia
	st := opts.Store
	if st == nil {
		var err error
		st, err = store.Open(ctx, store.Config{
			Driver:          cfg.Storage.Driver,
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
			RedisAddr:       cfg.Storage.Redis.Addr,
			RedisDB:         cfg.Storage.Redis.DB,
			RedisPrefix:     cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("open store: %w", err))
		}
		app.closers = append(app.closers, st.Close)
	}
	app.Store = st

	// 2. Cache (solicitudes pendientes + replay de cookies)
	cc := opts.Cache
	if cc == nil {
		var err error
		cc, err = cache.New(ctx, cache.Config{
			Driver:     cfg.Cache.Kind,
			Addr:       cfg.Cache.Redis.Addr,
			DB:         cfg.Cache.Redis.DB,
			Prefix:     cfg.Cache.Redis.Prefix,
			DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL, 10*time.Minute),
		})
		if err != nil {
			return fail(fmt.Errorf("open cache: %w", err))
		}
		app.closers = append(app.closers, cc.Close)
	}
	app.Cache = cc

	// 3. Métricas
	m := metrics.New()
	app.Metrics = m

	// 4. Firma de tokens
	keys, err := buildKeys(cfg, log)
	if err != nil {
		return fail(err)
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, keys)
	issuer.AccessTTL = config.Dur(cfg.JWT.AccessTTL, time.Hour)
	issuer.Now = now
	app.Issuer = issuer

	// 5. Identity providers
	providers := buildProviders(cfg)
	for _, p := range opts.Providers {
		providers.Add(p)
	}

	// 6. Sesión del navegador
	sessionSecret := []byte(cfg.Auth.Session.Secret)
	if len(sessionSecret) == 0 && !cfg.IsProd() {
		log.Warn("auth.session.secret vacío: usando secreto efímero (sólo dev)")
		sessionSecret = randomSecret()
	}
	sessions, err := session.NewManager(session.Config{
		Secret:     sessionSecret,
		TTL:        config.Dur(cfg.Auth.Session.TTL, session.DefaultTTL),
		CookieName: cfg.Auth.Session.CookieName,
		Cookie: session.CookieOptions{
			Domain:   cfg.Auth.Session.Domain,
			SameSite: cfg.Auth.Session.SameSite,
			Secure:   cfg.Auth.Session.Secure,
		},
	}, cc)
	if err != nil {
		return fail(fmt.Errorf("session manager: %w", err))
	}
	sessions.Now = now

	// 7. Service tokens
	svcTokens := servicetoken.New(st.ServiceTokens(), config.Dur(cfg.Auth.ServiceTokenTTL, servicetoken.DefaultTTL))
	svcTokens.Now = now
	app.ServiceTokens = svcTokens

	// 8. Services
	clients := oauthsvc.NewClientRegistry(oauthsvc.ClientRegistryDeps{Clients: st.Clients(), Now: now})
	app.Clients = clients
	meta := oauthsvc.Metadata{Issuer: cfg.JWT.Issuer, Resource: resourceOf(cfg)}
	services := oauthsvc.Services{
		Clients: clients,
		Authorize: oauthsvc.NewAuthorizeService(oauthsvc.AuthorizeDeps{
			Clients:         clients,
			Codes:           st.AuthCodes(),
			Cache:           cc,
			Providers:       providers,
			DefaultProvider: cfg.Identity.DefaultProvider,
			CodeTTL:         config.Dur(cfg.JWT.CodeTTL, oauthsvc.DefaultCodeTTL),
			Metrics:         m,
			Now:             now,
		}),
		Token: oauthsvc.NewTokenService(oauthsvc.TokenDeps{
			Clients:    clients,
			Codes:      st.AuthCodes(),
			Refresh:    st.RefreshTokens(),
			Issuer:     issuer,
			RefreshTTL: config.Dur(cfg.JWT.RefreshTTL, oauthsvc.DefaultRefreshTTL),
			Metrics:    m,
			Now:        now,
		}),
		Metadata: meta,
	}
	social := socialsvc.NewService(socialsvc.Deps{Providers: providers, Metrics: m})
	health := healthsvc.NewHealthService(healthsvc.Deps{Store: st, Cache: cc, Now: now})

	// 9. Rate limiting
	limiters, closeLimiters := buildLimiters(cfg)
	if closeLimiters != nil {
		app.closers = append(app.closers, closeLimiters)
	}
	trusted, err := helpers.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fail(fmt.Errorf("server.trusted_proxies: %w", err))
	}

	// 10. Router
	app.Handler = router.New(router.Deps{
		OAuth: oauthctrl.NewControllers(services, sessions, keys),
		Social: socialctrl.NewController(socialctrl.Deps{
			Service:      social,
			Sessions:     sessions,
			PostLoginURL: cfg.Server.PostLoginURL,
		}),
		API:    apictrl.NewController(nil),
		Admin:  adminctrl.NewServiceTokensController(svcTokens),
		Health: healthctrl.NewHealthController(health),
		Verifier: &mw.ChainVerifier{
			Access:    issuer,
			Audiences: cfg.JWT.Audiences,
			Service:   svcTokens,
		},
		ResourceMetadataURL: meta.ResourceMetadataURL(),
		AdminAPIKey:         cfg.Admin.APIKey,
		CORSAllowedOrigins:  cfg.Server.CORSAllowedOrigins,
		TrustedProxies:      trusted,
		Limiters:            limiters,
		Metrics:             m,
	})

	log.Info("wiring completed",
		logger.String("store", st.Driver()),
		logger.String("alg", keys.Alg),
		logger.Any("providers", providers.Names()),
	)
	return app, nil
}

func resourceOf(cfg *config.Config) string {
	if r := strings.TrimSpace(cfg.JWT.Resource); r != "" {
		return r
	}
	return cfg.JWT.Issuer
}

func randomSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}

func buildKeys(cfg *config.Config, log *zap.Logger) (*jwtx.KeySet, error) {
	switch cfg.JWT.Alg {
	case jwtx.AlgEdDSA:
		if cfg.JWT.KeyFile != "" {
			ks, err := jwtx.LoadEd25519PEM(cfg.JWT.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load jwt key: %w", err)
			}
			return ks, nil
		}
		log.Warn("jwt.key_file vacío: usando clave Ed25519 efímera (sólo dev)")
		return jwtx.NewDevEd25519("")
	default:
		secret := []byte(cfg.JWT.Secret)
		if len(secret) == 0 {
			if cfg.IsProd() {
				return nil, errors.New("jwt.secret requerido")
			}
			log.Warn("jwt.secret vacío: usando secreto efímero (sólo dev)")
			secret = randomSecret()
		}
		return jwtx.NewHS256(secret)
	}
}

func providerConfig(p config.ProviderConfig, timeout time.Duration) identity.Config {
	return identity.Config{
		ClientID:                  p.ClientID,
		ClientSecret:              p.ClientSecret,
		RedirectURL:               p.RedirectURL,
		Scopes:                    p.Scopes,
		AuthURL:                   p.AuthURL,
		TokenURL:                  p.TokenURL,
		ProfileURL:                p.ProfileURL,
		JWKSURL:                   p.JWKSURL,
		Issuer:                    p.Issuer,
		InsecureSkipIDTokenVerify: p.InsecureSkipIDTokenVerify,
		Timeout:                   timeout,
	}
}

// buildProviders registra factories; cada provider se construye recién en el primer uso.
func buildProviders(cfg *config.Config) *identity.Registry {
	reg := identity.NewRegistry()
	timeout := config.Dur(cfg.Identity.HTTPTimeout, identity.DefaultTimeout)
	if p := cfg.Identity.Providers.Google; p.Enabled {
		reg.Register(google.ProviderName, google.Factory, providerConfig(p, timeout))
	}
	if p := cfg.Identity.Providers.Line; p.Enabled {
		reg.Register(line.ProviderName, line.Factory, providerConfig(p, timeout))
	}
	return reg
}

func buildLimiters(cfg *config.Config) (router.Limiters, func() error) {
	if !cfg.Rate.Enabled {
		return router.Limiters{}, nil
	}
	tokenWin := config.Dur(cfg.Rate.Token.Window, time.Minute)
	registerWin := config.Dur(cfg.Rate.Register.Window, 10*time.Minute)
	loginWin := config.Dur(cfg.Rate.Login.Window, time.Minute)

	if cfg.Rate.Backend == "redis" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		prefix := cfg.Cache.Redis.Prefix + "rl:"
		return router.Limiters{
			Token:    rate.NewRedisLimiter(client, prefix, cfg.Rate.Token.Limit, tokenWin),
			Register: rate.NewRedisLimiter(client, prefix, cfg.Rate.Register.Limit, registerWin),
			Login:    rate.NewRedisLimiter(client, prefix, cfg.Rate.Login.Limit, loginWin),
		}, client.Close
	}
	return router.Limiters{
		Token:    rate.NewMemoryLimiter(cfg.Rate.Token.Limit, tokenWin),
		Register: rate.NewMemoryLimiter(cfg.Rate.Register.Limit, registerWin),
		Login:    rate.NewMemoryLimiter(cfg.Rate.Login.Limit, loginWin),
	}, nil
}
