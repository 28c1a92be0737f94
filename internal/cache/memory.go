package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Útil para desarrollo y testing.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	// takeMu serializa Take para que Get+Delete sea atómico.
	takeMu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	return c.prefix + k
}

// go-cache interpreta 0 como DefaultExpiration; acá 0 significa "no expira".
func memTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (c *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.c.Set(c.key(key), value, memTTL(ttl))
	return nil
}

func (c *memoryClient) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	// Add falla si la key existe y no expiró.
	if err := c.c.Add(c.key(key), value, memTTL(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *memoryClient) Take(_ context.Context, key string) (string, error) {
	c.takeMu.Lock()
	defer c.takeMu.Unlock()
	k := c.key(key)
	v, ok := c.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	c.c.Delete(k)
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Ping(ctx context.Context) error { return ctx.Err() }

func (c *memoryClient) Close() error {
	c.c.Flush()
	return nil
}
