package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/servicetoken"
	"github.com/dropDatabas3/toolgate/internal/store/memory"
)

const testIssuer = "https://auth.example.test"

type fixture struct {
	issuer   *jwtx.Issuer
	services *servicetoken.Issuer
	verifier *ChainVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ks, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	iss := jwtx.NewIssuer(testIssuer, ks)
	svc := servicetoken.New(memory.New().ServiceTokens(), time.Hour)
	return &fixture{
		issuer:   iss,
		services: svc,
		verifier: &ChainVerifier{Access: iss, Audiences: []string{"https://api.example.test"}, Service: svc},
	}
}

func (f *fixture) access(t *testing.T, aud string, claims map[string]any) string {
	t.Helper()
	tok, _, err := f.issuer.IssueAccess("user-1", aud, claims)
	require.NoError(t, err)
	return tok
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipal(r.Context())
		if p == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": p.UserID, "kind": p.Kind, "client_id": p.ClientID, "scopes": p.Scopes.List(),
		})
	})
}

func do(h http.Handler, authz string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/discovery", nil)
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestRequireAuth_HeaderErrors(t *testing.T) {
	f := newFixture(t)
	h := RequireAuth(f.verifier, AuthOptions{})(echoPrincipal())

	rr := do(h, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing_authorization_header", errorCode(t, rr))

	rr = do(h, "Basic Zm9vOmJhcg==")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_authorization_header", errorCode(t, rr))

	rr = do(h, "Bearer not-a-known-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rr))
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestRequireAuth_Optional(t *testing.T) {
	f := newFixture(t)
	h := RequireAuth(f.verifier, AuthOptions{Optional: true})(echoPrincipal())

	assert.Equal(t, http.StatusNoContent, do(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, "Bearer garbage.garbage.garbage").Code)
}

func TestRequireAuth_AccessToken(t *testing.T) {
	f := newFixture(t)
	h := RequireAuth(f.verifier, AuthOptions{})(echoPrincipal())

	tok := f.access(t, "https://api.example.test", map[string]any{
		"scope":     "product:read",
		"scp":       []string{"order:*"},
		"client_id": "client-9",
	})
	rr := do(h, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Sub      string   `json:"sub"`
		Kind     string   `json:"kind"`
		ClientID string   `json:"client_id"`
		Scopes   []string `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body.Sub)
	assert.Equal(t, KindAccess, body.Kind)
	assert.Equal(t, "client-9", body.ClientID)
	assert.Equal(t, []string{"order:*", "product:read"}, body.Scopes)
}

func TestRequireAuth_AudienceEnforced(t *testing.T) {
	f := newFixture(t)
	h := RequireAuth(f.verifier, AuthOptions{})(echoPrincipal())

	tok := f.access(t, "https://other.example.test", map[string]any{"scope": "product:read"})
	assert.Equal(t, http.StatusUnauthorized, do(h, "Bearer "+tok).Code)
}

func TestRequireAuth_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-2 * time.Hour)
	f.issuer.Now = func() time.Time { return past }
	tok := f.access(t, "https://api.example.test", nil)
	f.issuer.Now = time.Now

	h := RequireAuth(f.verifier, AuthOptions{})(echoPrincipal())
	rr := do(h, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rr))
}

func TestRequireAuth_ServiceToken(t *testing.T) {
	f := newFixture(t)
	tok, _, err := f.services.Issue(context.Background(), "svc-agent", []string{"booking:*"})
	require.NoError(t, err)

	h := Chain(echoPrincipal(), RequireAuth(f.verifier, AuthOptions{}), RequireScopes("booking:cancel"))
	rr := do(h, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"service"`)

	require.NoError(t, f.services.Revoke(context.Background(), tok))
	assert.Equal(t, http.StatusUnauthorized, do(h, "Bearer "+tok).Code)
}

type failingServiceTokens struct{ err error }

func (f failingServiceTokens) Verify(context.Context, string) (*servicetoken.Principal, error) {
	return nil, f.err
}

func TestRequireAuth_VerifierBackendFailure(t *testing.T) {
	down := &ChainVerifier{Service: failingServiceTokens{err: errors.New("dial tcp 127.0.0.1:6379: connection refused")}}
	h := RequireAuth(down, AuthOptions{})(echoPrincipal())

	rr := do(h, "Bearer opaque-service-token")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "server_error", errorCode(t, rr))
	assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
	assert.NotContains(t, rr.Body.String(), "6379")

	rejected := &ChainVerifier{Service: failingServiceTokens{err: servicetoken.ErrInvalidToken}}
	rr = do(RequireAuth(rejected, AuthOptions{})(echoPrincipal()), "Bearer opaque-service-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rr))

	// sin verificador de access tokens el JWT sigue siendo un 401
	rr = do(RequireAuth(down, AuthOptions{})(echoPrincipal()), "Bearer a.b.c")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireScopes(t *testing.T) {
	f := newFixture(t)
	m := metrics.New()
	h := Chain(echoPrincipal(),
		RequireAuth(f.verifier, AuthOptions{}),
		RequireScopesMetered(m, "product:read", "order:create"),
	)

	ok := f.access(t, "https://api.example.test", map[string]any{"scope": "product:read order:*"})
	assert.Equal(t, http.StatusOK, do(h, "Bearer "+ok).Code)

	partial := f.access(t, "https://api.example.test", map[string]any{"scope": "product:* order:read"})
	rr := do(h, "Bearer "+partial)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "insufficient_scope", errorCode(t, rr))
	assert.Contains(t, rr.Body.String(), "order:create")
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), `scope="order:create"`)

	other := f.access(t, "https://api.example.test", map[string]any{"scope": "booking:*"})
	rr = do(h, "Bearer "+other)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "product:read")
}

func TestRequireScopes_WithoutPrincipal(t *testing.T) {
	h := RequireScopes("product:read")(echoPrincipal())
	assert.Equal(t, http.StatusUnauthorized, do(h, "").Code)
}
