// Package storetest contiene la batería de conformidad que todo driver de
// repository.Store debe pasar.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
)

// Run ejecuta todos los subtests contra s. El store debe estar vacío.
func Run(t *testing.T, s repository.Store) {
	t.Helper()
	t.Run("clients", func(t *testing.T) { testClients(t, s) })
	t.Run("auth_code_take_once", func(t *testing.T) { testCodeTakeOnce(t, s) })
	t.Run("auth_code_concurrent_take", func(t *testing.T) { testCodeConcurrentTake(t, s) })
	t.Run("refresh_take", func(t *testing.T) { testRefresh(t, s) })
	t.Run("service_tokens", func(t *testing.T) { testServiceTokens(t, s) })
	if sw, ok := s.(repository.Sweeper); ok {
		t.Run("sweeper", func(t *testing.T) { testSweeper(t, s, sw) })
	}
}

func testClients(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := &repository.Client{
		ClientID:                uuid.NewString(),
		Name:                    "demo",
		RedirectURIs:            []string{"https://app.example.com/cb"},
		GrantTypes:              []string{repository.GrantAuthorizationCode, repository.GrantRefreshToken},
		ResponseTypes:           []string{"code"},
		Scopes:                  []string{"booking:read"},
		IsPublic:                true,
		TokenEndpointAuthMethod: repository.AuthMethodNone,
		CreatedAt:               time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Clients().Create(ctx, c))
	assert.ErrorIs(t, s.Clients().Create(ctx, c), repository.ErrConflict)

	got, err := s.Clients().Get(ctx, c.ClientID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.RedirectURIs, got.RedirectURIs)
	assert.Equal(t, c.GrantTypes, got.GrantTypes)
	assert.True(t, got.IsPublic)
	assert.True(t, got.CreatedAt.Equal(c.CreatedAt))

	_, err = s.Clients().Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func newCode(exp time.Time) *repository.AuthorizationCode {
	return &repository.AuthorizationCode{
		CodeHash:            uuid.NewString(),
		ClientID:            "client-1",
		UserID:              "user-1",
		RedirectURI:         "https://app.example.com/cb",
		Scope:               "booking:read",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		Resource:            "https://api.example.com",
		IssuedAt:            time.Now().UTC().Truncate(time.Second),
		ExpiresAt:           exp.UTC().Truncate(time.Second),
	}
}

func testCodeTakeOnce(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := newCode(time.Now().Add(10 * time.Minute))
	require.NoError(t, s.AuthCodes().Save(ctx, c))

	got, err := s.AuthCodes().Take(ctx, c.CodeHash)
	require.NoError(t, err)
	assert.Equal(t, c.ClientID, got.ClientID)
	assert.Equal(t, c.Resource, got.Resource)
	assert.Equal(t, c.CodeChallenge, got.CodeChallenge)
	assert.True(t, got.ExpiresAt.Equal(c.ExpiresAt))

	_, err = s.AuthCodes().Take(ctx, c.CodeHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testCodeConcurrentTake(t *testing.T, s repository.Store) {
	ctx := context.Background()
	c := newCode(time.Now().Add(10 * time.Minute))
	require.NoError(t, s.AuthCodes().Save(ctx, c))

	const n = 16
	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.AuthCodes().Take(ctx, c.CodeHash); err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, repository.ErrNotFound) {
				misses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, misses.Load())
}

func testRefresh(t *testing.T, s repository.Store) {
	ctx := context.Background()
	rt := &repository.RefreshToken{
		TokenHash: uuid.NewString(),
		ClientID:  "client-1",
		UserID:    "user-1",
		Scope:     "booking:read order:read",
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, s.RefreshTokens().Save(ctx, rt))

	peek, err := s.RefreshTokens().Get(ctx, rt.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, rt.ClientID, peek.ClientID)

	got, err := s.RefreshTokens().Take(ctx, rt.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, rt.Scope, got.Scope)
	assert.Empty(t, got.Resource)

	_, err = s.RefreshTokens().Take(ctx, rt.TokenHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.RefreshTokens().Get(ctx, rt.TokenHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testServiceTokens(t *testing.T, s repository.Store) {
	ctx := context.Background()
	st := &repository.ServiceToken{
		TokenHash: uuid.NewString(),
		UserID:    "svc-user",
		Scopes:    []string{"booking:*", "order:read"},
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, s.ServiceTokens().Save(ctx, st))

	got, err := s.ServiceTokens().Get(ctx, st.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, st.Scopes, got.Scopes)

	// Get no consume.
	_, err = s.ServiceTokens().Get(ctx, st.TokenHash)
	require.NoError(t, err)

	require.NoError(t, s.ServiceTokens().Delete(ctx, st.TokenHash))
	require.NoError(t, s.ServiceTokens().Delete(ctx, st.TokenHash))
	_, err = s.ServiceTokens().Get(ctx, st.TokenHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testSweeper(t *testing.T, s repository.Store, sw repository.Sweeper) {
	ctx := context.Background()
	now := time.Now()
	expired := newCode(now.Add(-time.Minute))
	live := newCode(now.Add(time.Hour))
	require.NoError(t, s.AuthCodes().Save(ctx, expired))
	require.NoError(t, s.AuthCodes().Save(ctx, live))

	n, err := sw.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = s.AuthCodes().Take(ctx, expired.CodeHash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.AuthCodes().Take(ctx, live.CodeHash)
	assert.NoError(t, err)
}
