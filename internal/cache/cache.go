// Package cache guarda estado efímero de corta vida: las pending
// authorizations que esperan un login (Set + Take) y el guard anti-replay de
// las cookies de callback (SetNX sobre el jti).
//
// El driver "memory" (go-cache) sirve para un solo proceso; con varias
// réplicas detrás de un balanceador hay que usar "redis".
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound: la key no existe, expiró o ya fue tomada.
var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Client es la superficie común de ambos drivers. ttl <= 0 significa sin
// expiración; las keys llevan el Prefix configurado.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX escribe sólo si la key no existe e informa si ganó.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Take lee y borra en un paso; de N llamadas concurrentes sólo una
	// obtiene el valor.
	Take(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config refleja cache.* de config.yaml.
type Config struct {
	Driver     string // memory | redis
	Addr       string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration // sólo memory
}

func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "redis":
		return NewRedis(ctx, cfg)
	}
	return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
}
