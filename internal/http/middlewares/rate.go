package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/toolgate/internal/http/errors"
	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey usa sólo la IP del cliente.
func IPRateKey(r *http.Request) string {
	return helpers.ClientIP(r)
}

// RateLimitConfig configura WithRateLimit. Bucket separa contadores por
// endpoint (token, register, login) y etiqueta la métrica.
type RateLimitConfig struct {
	Limiter rate.Limiter
	Bucket  string
	KeyFunc RateKeyFunc
	Metrics *metrics.Metrics
}

// WithRateLimit aplica ventana fija por clave. Si el limiter falla se deja
// pasar el request.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Bucket + "|" + cfg.KeyFunc(r)
			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error, allowing request",
					logger.Component("rate"),
					logger.String("bucket", cfg.Bucket),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				if res.RetryAfter > 0 {
					secs := int(res.RetryAfter.Round(time.Second) / time.Second)
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				cfg.Metrics.RecordRateLimited(cfg.Bucket)
				errors.WriteError(w, errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
