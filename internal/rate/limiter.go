// Package rate limita /token, /register y /login/{provider} con ventanas
// fijas por key (normalmente bucket + IP del cliente). El backend redis
// comparte los contadores entre réplicas; memory vale para un proceso.
package rate

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

// Result describe la decisión para un hit. RetryAfter sólo se completa
// cuando Allowed es false.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// window agrupa límite y duración; ambos backends cuentan igual.
type window struct {
	max  int64
	size time.Duration
}

// slot devuelve la key del contador para la ventana que contiene now y el
// tiempo que le queda a esa ventana.
func (w window) slot(prefix, key string, now time.Time) (string, time.Duration) {
	start := now.Truncate(w.size)
	k := prefix + strings.ReplaceAll(key, " ", "_") + ":" + strconv.FormatInt(start.Unix(), 10)
	return k, start.Add(w.size).Sub(now)
}

func (w window) decide(hits int64, left time.Duration) Result {
	if hits <= w.max {
		return Result{Allowed: true, Remaining: w.max - hits}
	}
	if left <= 0 {
		left = w.size
	}
	// Retry-After va en segundos enteros; nunca 0.
	retry := left.Round(time.Second)
	if retry < time.Second {
		retry = time.Second
	}
	return Result{RetryAfter: retry}
}

// RedisLimiter cuenta con INCR y fija el EXPIRE en el primer hit de la ventana.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	window
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, size time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, window: window{max: int64(max), size: size}}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k, left := l.slot(l.prefix, key, time.Now())
	hits, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		// left + margen para que la key no muera antes que su ventana
		if err := l.client.Expire(ctx, k, left+time.Second).Err(); err != nil {
			return Result{}, err
		}
	}
	return l.decide(hits, left), nil
}

// MemoryLimiter guarda los contadores en go-cache; cada key expira con su ventana.
type MemoryLimiter struct {
	mu sync.Mutex
	c  *gocache.Cache
	window
}

func NewMemoryLimiter(max int, size time.Duration) *MemoryLimiter {
	return &MemoryLimiter{c: gocache.New(size, size), window: window{max: int64(max), size: size}}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	k, left := l.slot("", key, time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.c.Get(k); !ok {
		l.c.Set(k, int64(0), left)
	}
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return l.decide(hits, left), nil
}
