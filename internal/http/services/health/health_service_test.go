package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func TestCheck_Ready(t *testing.T) {
	s := NewHealthService(Deps{Store: pingFunc(ok), Cache: pingFunc(ok)})
	resp := s.Check(context.Background())
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Components["store"].Status)
	assert.Equal(t, "ok", resp.Components["cache"].Status)
}

func TestCheck_FailingDependency(t *testing.T) {
	boom := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })
	s := NewHealthService(Deps{Store: pingFunc(ok), Cache: boom})
	resp := s.Check(context.Background())
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "error", resp.Components["cache"].Status)
	assert.NotContains(t, resp.Components["cache"].Message, "refused")
}

func TestCheck_Timeout(t *testing.T) {
	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s := NewHealthService(Deps{Store: slow, Cache: pingFunc(ok), Timeout: 10 * time.Millisecond})
	resp := s.Check(context.Background())
	assert.Equal(t, "unavailable", resp.Status)
}

func TestCheck_MissingDependency(t *testing.T) {
	s := NewHealthService(Deps{Cache: pingFunc(ok)})
	assert.Equal(t, "unavailable", s.Check(context.Background()).Status)
}
