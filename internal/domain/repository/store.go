package repository

import (
	"context"
	"time"
)

// Store agrupa los repositorios de un driver.
type Store interface {
	Clients() ClientRepository
	AuthCodes() AuthCodeRepository
	RefreshTokens() RefreshTokenRepository
	ServiceTokens() ServiceTokenRepository

	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

// Sweeper lo implementan los drivers que necesitan borrar vencidos activamente
// (redis expira por TTL y no lo implementa).
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
