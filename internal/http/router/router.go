// Package router arma el chi.Router con todas las rutas y su cadena de middlewares.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	adminctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/admin"
	apictrl "github.com/dropDatabas3/toolgate/internal/http/controllers/api"
	healthctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/oauth"
	socialctrl "github.com/dropDatabas3/toolgate/internal/http/controllers/social"
	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	mw "github.com/dropDatabas3/toolgate/internal/http/middlewares"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/rate"
)

// discoveryScope protege /api/discovery.
const discoveryScope = "product:read"

// publicDocMaxAge acota cuánto tarda un cliente en ver una rotación de JWKS.
const publicDocMaxAge = 10 * time.Minute

// Limiters por bucket. Cualquiera puede ser nil (sin límite).
type Limiters struct {
	Token    rate.Limiter
	Register rate.Limiter
	Login    rate.Limiter
}

// Deps contiene las dependencias del router.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	Social *socialctrl.Controller
	API    *apictrl.Controller
	Admin  *adminctrl.ServiceTokensController
	Health *healthctrl.HealthController

	Verifier            mw.TokenVerifier
	ResourceMetadataURL string
	AdminAPIKey         string
	CORSAllowedOrigins  []string
	TrustedProxies      helpers.TrustedProxies
	Limiters            Limiters
	Metrics             *metrics.Metrics
}

// New registra las rutas. El orden de middlewares globales es:
// recover → request id → client ip → logging → security headers → CORS → métricas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustedProxies),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSAllowedOrigins),
	)
	if d.Metrics != nil {
		r.Use(d.Metrics.WithMetrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerOAuthRoutes(r, d)
	registerSocialRoutes(r, d)
	registerAPIRoutes(r, d)
	registerAdminRoutes(r, d)
	registerHealthRoutes(r, d)

	return r
}

func limit(d Deps, bucket string, l rate.Limiter) mw.Middleware {
	return mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: l,
		Bucket:  bucket,
		KeyFunc: mw.IPRateKey,
		Metrics: d.Metrics,
	})
}

func registerOAuthRoutes(r chi.Router, d Deps) {
	c := d.OAuth
	if c == nil {
		return
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithPublicCache(publicDocMaxAge))
		r.Get("/.well-known/oauth-authorization-server", c.WellKnown.AuthorizationServer)
		r.Get("/.well-known/oauth-protected-resource", c.WellKnown.ProtectedResource)
		r.Get("/jwks", c.WellKnown.JWKS)
	})

	r.With(mw.WithNoStore()).Get("/authorize", c.Authorize.Authorize)
	r.With(mw.WithNoStore(), limit(d, "token", d.Limiters.Token)).Post("/token", c.Token.Token)
	r.With(mw.WithNoStore(), limit(d, "register", d.Limiters.Register)).Post("/register", c.Register.Register)
}

func registerSocialRoutes(r chi.Router, d Deps) {
	c := d.Social
	if c == nil {
		return
	}
	r.With(mw.WithNoStore(), limit(d, "login", d.Limiters.Login)).Get("/login/{provider}", c.Login)
	r.With(mw.WithNoStore()).Get("/callback/{provider}", c.Callback)
	r.Post("/logout", c.Logout)
}

func registerAPIRoutes(r chi.Router, d Deps) {
	if d.API == nil || d.Verifier == nil {
		return
	}
	auth := mw.RequireAuth(d.Verifier, mw.AuthOptions{ResourceMetadataURL: d.ResourceMetadataURL})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth)
		r.Get("/me", d.API.Me)
		r.With(mw.RequireScopesMetered(d.Metrics, discoveryScope)).Get("/discovery", d.API.Discovery)
	})
}

func registerAdminRoutes(r chi.Router, d Deps) {
	if d.Admin == nil {
		return
	}
	r.Route("/internal/service-tokens", func(r chi.Router) {
		r.Use(mw.RequireAdminKey(d.AdminAPIKey), mw.WithNoStore())
		r.Post("/", d.Admin.Issue)
		r.Delete("/", d.Admin.Revoke)
	})
}

func registerHealthRoutes(r chi.Router, d Deps) {
	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
}
