// Package health contiene el service de readiness.
package health

import (
	"context"
	"os"
	"time"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/health"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

const (
	componentHealth = "health"
	DefaultTimeout  = 2 * time.Second
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Pinger es cualquier dependencia con un ping barato (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps: Store y Cache son críticos; si alguno falla el servicio no está listo.
type Deps struct {
	Store   Pinger
	Cache   Pinger
	Timeout time.Duration
	Now     func() time.Time
}

type healthService struct {
	deps Deps
}

func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus, 2),
		Timestamp:  s.deps.Now().UTC(),
		Version:    os.Getenv("SERVICE_VERSION"),
	}

	check := func(name string, p Pinger) {
		if p == nil {
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: "not initialized"}
			resp.Status = "unavailable"
			return
		}
		cctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
		defer cancel()
		if err := p.Ping(cctx); err != nil {
			// el detalle queda en el log, no en la respuesta
			log.Error(name+" unavailable", logger.Err(err))
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: "unavailable"}
			resp.Status = "unavailable"
			return
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}

	check("store", s.deps.Store)
	check("cache", s.deps.Cache)
	return resp
}
