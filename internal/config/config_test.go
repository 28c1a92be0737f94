package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "HS256", c.JWT.Alg)
	assert.Equal(t, time.Hour, Dur(c.JWT.AccessTTL, 0))
	assert.Equal(t, 30*24*time.Hour, Dur(c.JWT.RefreshTTL, 0))
	assert.Equal(t, 10*time.Minute, Dur(c.JWT.CodeTTL, 0))
	assert.Equal(t, 7*24*time.Hour, Dur(c.Auth.Session.TTL, 0))
	assert.Equal(t, 10*time.Second, Dur(c.Identity.HTTPTimeout, 0))
	assert.Equal(t, "Lax", c.Auth.Session.SameSite)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	p := writeYAML(t, `
jwt:
  issuer: https://auth.example.com
  access_ttl: 30m
identity:
  providers:
    line:
      enabled: true
      client_id: line-client
`)
	t.Setenv("JWT_ACCESS_TTL", "45m")
	t.Setenv("SERVER_ADDR", ":9090")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "45m", c.JWT.AccessTTL)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "https://auth.example.com/callback/line", c.Identity.Providers.Line.RedirectURL)
	assert.Empty(t, c.Identity.Providers.Google.RedirectURL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	p := writeYAML(t, "jwt:\n  code_ttl: ten-minutes\n")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.code_ttl")
}

func TestValidate_ProdGuards(t *testing.T) {
	c := Default()
	c.App.Env = "prod"
	c.Identity.Providers.Line.InsecureSkipIDTokenVerify = true

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
	assert.Contains(t, err.Error(), "auth.session.secret")
	assert.Contains(t, err.Error(), "insecure_skip_id_token_verify")
}

func TestValidate_UnknownDriver(t *testing.T) {
	c := Default()
	c.Storage.Driver = "mongo"
	require.Error(t, c.Validate())

	c = Default()
	c.Storage.Driver = "postgres"
	require.Error(t, c.Validate(), "postgres sin dsn")
}

func TestValidate_TrustedProxies(t *testing.T) {
	c := Default()
	c.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10"}
	require.NoError(t, c.Validate())

	c.Server.TrustedProxies = []string{"10.0.0.0/8", "proxy.internal"}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.trusted_proxies")
}

func TestDur_Fallback(t *testing.T) {
	assert.Equal(t, time.Minute, Dur("", time.Minute))
	assert.Equal(t, time.Minute, Dur("nope", time.Minute))
	assert.Equal(t, 2*time.Second, Dur("2s", time.Minute))
}
