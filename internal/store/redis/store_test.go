package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	"github.com/dropDatabas3/toolgate/internal/store/storetest"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), mr.Addr(), 0, "tg:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newStore(t)
	storetest.Run(t, s)
}

func TestRedisStore_TTLFollowsExpiry(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	code := &repository.AuthorizationCode{
		CodeHash:  "h1",
		ClientID:  "c",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.AuthCodes().Save(ctx, code))
	assert.True(t, mr.Exists("tg:code:h1"))
	assert.InDelta(t, (10 * time.Minute).Seconds(), mr.TTL("tg:code:h1").Seconds(), 2)

	mr.FastForward(11 * time.Minute)
	_, err := s.AuthCodes().Take(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRedisStore_ClientsDoNotExpire(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Clients().Create(ctx, &repository.Client{ClientID: "c1"}))
	assert.Zero(t, mr.TTL("tg:client:c1"))
}
