// Package redis implementa repository.Store sobre Redis (go-redis/v9).
//
// Cada registro es un JSON bajo "<prefix><kind>:<hash>" con TTL igual a su
// expiración, así que no hace falta sweeper. Take usa GETDEL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
)

const (
	kindClient  = "client:"
	kindCode    = "code:"
	kindRefresh = "refresh:"
	kindService = "svc:"
)

type Store struct {
	rdb    *goredis.Client
	prefix string
	owned  bool
	now    func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New conecta y hace ping.
func New(ctx context.Context, addr string, db int, prefix string) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping failed: %w", err)
	}
	return &Store{rdb: rdb, prefix: prefix, owned: true, now: time.Now}, nil
}

// NewFromClient reutiliza un cliente existente (no lo cierra en Close).
func NewFromClient(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) Clients() repository.ClientRepository             { return clientRepo{s} }
func (s *Store) AuthCodes() repository.AuthCodeRepository         { return codeRepo{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return refreshRepo{s} }
func (s *Store) ServiceTokens() repository.ServiceTokenRepository { return serviceRepo{s} }

func (s *Store) Driver() string                 { return "redis" }
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) key(kind, id string) string { return s.prefix + kind + id }

// ttl hasta expiresAt; ya vencido => 1ms (se guarda igual y Take lo devuelve
// para que el caller lo trate como expirado).
func (s *Store) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(s.now())
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

func (s *Store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, key, b, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

func decode[T any](raw string, err error) (*T, error) {
	if errors.Is(err, goredis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("store: decode: %w", err)
	}
	return &out, nil
}

// ─── Clients ───

type clientRepo struct{ s *Store }

func (r clientRepo) Create(ctx context.Context, c *repository.Client) error {
	return r.s.put(ctx, r.s.key(kindClient, c.ClientID), c, 0)
}

func (r clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	return decode[repository.Client](r.s.rdb.Get(ctx, r.s.key(kindClient, clientID)).Result())
}

// ─── Authorization codes ───

type codeRepo struct{ s *Store }

func (r codeRepo) Save(ctx context.Context, c *repository.AuthorizationCode) error {
	return r.s.put(ctx, r.s.key(kindCode, c.CodeHash), c, r.s.ttl(c.ExpiresAt))
}

func (r codeRepo) Take(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	return decode[repository.AuthorizationCode](r.s.rdb.GetDel(ctx, r.s.key(kindCode, codeHash)).Result())
}

// ─── Refresh tokens ───

type refreshRepo struct{ s *Store }

func (r refreshRepo) Save(ctx context.Context, t *repository.RefreshToken) error {
	return r.s.put(ctx, r.s.key(kindRefresh, t.TokenHash), t, r.s.ttl(t.ExpiresAt))
}

func (r refreshRepo) Get(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	return decode[repository.RefreshToken](r.s.rdb.Get(ctx, r.s.key(kindRefresh, tokenHash)).Result())
}

func (r refreshRepo) Take(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	return decode[repository.RefreshToken](r.s.rdb.GetDel(ctx, r.s.key(kindRefresh, tokenHash)).Result())
}

// ─── Service tokens ───

type serviceRepo struct{ s *Store }

func (r serviceRepo) Save(ctx context.Context, t *repository.ServiceToken) error {
	return r.s.put(ctx, r.s.key(kindService, t.TokenHash), t, r.s.ttl(t.ExpiresAt))
}

func (r serviceRepo) Get(ctx context.Context, tokenHash string) (*repository.ServiceToken, error) {
	return decode[repository.ServiceToken](r.s.rdb.Get(ctx, r.s.key(kindService, tokenHash)).Result())
}

func (r serviceRepo) Delete(ctx context.Context, tokenHash string) error {
	return r.s.rdb.Del(ctx, r.s.key(kindService, tokenHash)).Err()
}
