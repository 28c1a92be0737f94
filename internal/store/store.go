// Package store abre el driver de persistencia configurado y corre el sweeper.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/store/memory"
	"github.com/dropDatabas3/toolgate/internal/store/pg"
	"github.com/dropDatabas3/toolgate/internal/store/redis"
)

type Config struct {
	Driver          string // memory | postgres | redis
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	RedisAddr       string
	RedisDB         int
	RedisPrefix     string
}

// Open devuelve el Store del driver pedido.
func Open(ctx context.Context, cfg Config) (repository.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return memory.New(), nil
	case "postgres", "pg", "postgresql":
		return pg.New(ctx, cfg.DSN, pg.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "redis":
		return redis.New(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// RunSweeper borra vencidos cada interval hasta que ctx se cancele.
// Si el store no implementa Sweeper (redis) retorna enseguida.
func RunSweeper(ctx context.Context, s repository.Store, interval time.Duration) error {
	sw, ok := s.(repository.Sweeper)
	if !ok || interval <= 0 {
		return nil
	}
	log := logger.From(ctx).With(logger.Component("sweeper"), zap.String("driver", s.Driver()))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			n, err := sw.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn("sweep failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Debug("expired rows deleted", logger.Count(n))
			}
		}
	}
}
