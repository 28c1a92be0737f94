package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/toolgate/internal/http/helpers"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

type responseMeter struct {
	http.ResponseWriter
	code    int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.code != 0 {
		return
	}
	m.code = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.code == 0 {
		m.WriteHeader(http.StatusOK)
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

func (m *responseMeter) status() int {
	if m.code == 0 {
		return http.StatusOK
	}
	return m.code
}

// WithLogging deja en el contexto un logger con request_id, method y path,
// y al terminar escribe una línea por request:
//
//	{"level":"info","msg":"http request","request_id":"…","method":"POST","path":"/token","route":"/token","status":200,"bytes":256,"duration_ms":4}
//
// 5xx van a error y 4xx a warn. Los health checks de /healthz y /readyz sólo se
// registran en debug para no inundar los logs.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r.WithContext(logger.ToContext(r.Context(), log)))

			status := meter.status()
			fields := []logger.Field{
				logger.Status(status),
				logger.Bytes(meter.written),
				logger.DurationMs(time.Since(start).Milliseconds()),
				logger.ClientIP(helpers.ClientIP(r)),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					fields = append(fields, logger.String("route", p))
				}
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("http request", fields...)
			case status >= http.StatusBadRequest:
				log.Warn("http request", fields...)
			case isHealthCheck(r.URL.Path):
				log.Debug("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
		})
	}
}

func isHealthCheck(path string) bool {
	return strings.HasSuffix(path, "/healthz") || strings.HasSuffix(path, "/readyz")
}
