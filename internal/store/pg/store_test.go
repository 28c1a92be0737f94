package pg

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/toolgate/internal/store/storetest"
	migrations "github.com/dropDatabas3/toolgate/migrations/postgres"
)

// TOOLGATE_TEST_PG_DSN apunta a una base descartable; sin ella el test se salta.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TOOLGATE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TOOLGATE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, Options{MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Migrate(ctx, migrations.FS, migrations.Dir)
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, `TRUNCATE oauth_clients, authorization_codes, refresh_tokens, service_tokens`)
	require.NoError(t, err)

	storetest.Run(t, s)
}
