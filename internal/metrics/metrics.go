// Package metrics expone las métricas Prometheus del servidor y el middleware HTTP.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors. Se registra en su propio registry para
// que los tests puedan crear instancias independientes.
type Metrics struct {
	reg *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	tokensIssued      *prometheus.CounterVec
	codesIssued       prometheus.Counter
	scopeDenials      *prometheus.CounterVec
	identityExchanges *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	m.httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo",
	})
	m.tokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Access tokens emitidos por grant_type",
	}, []string{"grant_type"})
	m.codesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_authorization_codes_issued_total",
		Help: "Códigos de autorización emitidos",
	})
	m.scopeDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_scope_denials_total",
		Help: "Requests rechazadas por scope insuficiente",
	}, []string{"scope"})
	m.identityExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_exchanges_total",
		Help: "Intercambios con providers externos por resultado",
	}, []string{"provider", "result"}) // result: ok|exchange_failed|profile_failed
	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests rechazadas por rate limit",
	}, []string{"bucket"})

	m.reg.MustRegister(
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.tokensIssued, m.codesIssued, m.scopeDenials, m.identityExchanges, m.rateLimited,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry expone el registry (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Los Record* toleran receptor nil para que los servicios funcionen sin métricas.

func (m *Metrics) RecordTokenIssued(grantType string) {
	if m != nil {
		m.tokensIssued.WithLabelValues(grantType).Inc()
	}
}

func (m *Metrics) RecordCodeIssued() {
	if m != nil {
		m.codesIssued.Inc()
	}
}

func (m *Metrics) RecordScopeDenied(scope string) {
	if m != nil {
		m.scopeDenials.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) RecordIdentityExchange(provider, result string) {
	if m != nil {
		m.identityExchanges.WithLabelValues(provider, result).Inc()
	}
}

func (m *Metrics) RecordRateLimited(bucket string) {
	if m != nil {
		m.rateLimited.WithLabelValues(bucket).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
// La etiqueta path usa el patrón de ruta de chi cuando existe.
func (m *Metrics) WithMetrics(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		m.httpInflight.Inc()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			m.httpInflight.Dec()
			pathLabel := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				pathLabel = rctx.RoutePattern()
			}
			if pathLabel == "" {
				pathLabel = normalizePath(r.URL.Path)
			}
			m.httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

func normalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 || uuidSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}
