package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiters(t *testing.T, max int) map[string]Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Limiter{
		"redis":  NewRedisLimiter(client, "", max, time.Hour),
		"memory": NewMemoryLimiter(max, time.Hour),
	}
}

func TestLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	for name, l := range limiters(t, 2) {
		t.Run(name, func(t *testing.T) {
			r, err := l.Allow(ctx, "ip:1.2.3.4")
			require.NoError(t, err)
			assert.True(t, r.Allowed)
			assert.EqualValues(t, 1, r.Remaining)

			r, err = l.Allow(ctx, "ip:1.2.3.4")
			require.NoError(t, err)
			assert.True(t, r.Allowed)

			r, err = l.Allow(ctx, "ip:1.2.3.4")
			require.NoError(t, err)
			assert.False(t, r.Allowed)
			assert.EqualValues(t, 0, r.Remaining)
			assert.Positive(t, r.RetryAfter)

			// Otra key tiene su propio contador.
			r, err = l.Allow(ctx, "ip:5.6.7.8")
			require.NoError(t, err)
			assert.True(t, r.Allowed)
		})
	}
}
