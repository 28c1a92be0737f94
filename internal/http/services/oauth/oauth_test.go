package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/toolgate/internal/cache"
	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/metrics"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	"github.com/dropDatabas3/toolgate/internal/security/pkce"
	tokens "github.com/dropDatabas3/toolgate/internal/security/token"
	"github.com/dropDatabas3/toolgate/internal/session"
	"github.com/dropDatabas3/toolgate/internal/store/memory"
)

const (
	testIssuer   = "https://auth.example.test"
	testRedirect = "https://app.example/cb"
)

type countingCodes struct {
	repository.AuthCodeRepository
	saves atomic.Int32
}

func (c *countingCodes) Save(ctx context.Context, code *repository.AuthorizationCode) error {
	c.saves.Add(1)
	return c.AuthCodeRepository.Save(ctx, code)
}

type providerSet map[string]bool

func (p providerSet) Has(name string) bool { return p[name] }

type env struct {
	store   *memory.Store
	codes   *countingCodes
	cache   cache.Client
	clients ClientRegistry
	authz   AuthorizeService
	tokens  TokenService
	issuer  *jwtx.Issuer
	meta    Metadata

	mu  sync.Mutex
	now time.Time
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{store: memory.New(), now: time.Now().UTC()}
	e.codes = &countingCodes{AuthCodeRepository: e.store.AuthCodes()}
	e.cache = cache.NewMemory("test:", time.Minute)

	ks, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	e.issuer = jwtx.NewIssuer(testIssuer, ks)
	e.issuer.Now = e.clock

	m := metrics.New()
	e.clients = NewClientRegistry(ClientRegistryDeps{Clients: e.store.Clients(), Now: e.clock})
	e.authz = NewAuthorizeService(AuthorizeDeps{
		Clients:         e.clients,
		Codes:           e.codes,
		Cache:           e.cache,
		Providers:       providerSet{"google": true, "line": true},
		DefaultProvider: "google",
		Metrics:         m,
		Now:             e.clock,
	})
	e.tokens = NewTokenService(TokenDeps{
		Clients: e.clients,
		Codes:   e.codes,
		Refresh: e.store.RefreshTokens(),
		Issuer:  e.issuer,
		Metrics: m,
		Now:     e.clock,
	})
	e.meta = Metadata{Issuer: testIssuer}
	return e
}

func (e *env) registerPublic(t *testing.T) *dto.RegisterResponse {
	t.Helper()
	resp, err := e.clients.Register(context.Background(), dto.RegisterRequest{
		ClientName:   "agent",
		RedirectURIs: []string{testRedirect},
	})
	require.NoError(t, err)
	return resp
}

func (e *env) registerConfidential(t *testing.T, grants ...string) *dto.RegisterResponse {
	t.Helper()
	resp, err := e.clients.Register(context.Background(), dto.RegisterRequest{
		ClientName:              "backend",
		RedirectURIs:            []string{testRedirect},
		GrantTypes:              grants,
		TokenEndpointAuthMethod: repository.AuthMethodClientSecretBasic,
	})
	require.NoError(t, err)
	return resp
}

func newPKCE(t *testing.T) (verifier, challenge string) {
	t.Helper()
	v, err := pkce.GenerateCodeVerifier()
	require.NoError(t, err)
	return v, pkce.GenerateCodeChallenge(v)
}

func authorizeReq(clientID, challenge string) dto.AuthorizeRequest {
	return dto.AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         testRedirect,
		State:               "xyz",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}
}

var alice = &session.Session{UserID: "user-alice", Email: "alice@example.test", Provider: "google"}

// issueCode runs /authorize with a session and returns the code and verifier.
func (e *env) issueCode(t *testing.T, clientID string, mutate ...func(*dto.AuthorizeRequest)) (code, verifier string) {
	t.Helper()
	verifier, challenge := newPKCE(t)
	req := authorizeReq(clientID, challenge)
	for _, m := range mutate {
		m(&req)
	}
	res, err := e.authz.Authorize(context.Background(), req, alice)
	require.NoError(t, err)
	require.Equal(t, dto.AuthResultSuccess, res.Type)
	return res.Code, verifier
}

func codeGrant(clientID, code, verifier string) dto.TokenRequest {
	return dto.TokenRequest{
		GrantType:    repository.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirect,
		ClientID:     clientID,
		CodeVerifier: verifier,
	}
}

// ----------------------------------------------------------------------------
// Client registry
// ----------------------------------------------------------------------------

func TestRegister_PublicDefaults(t *testing.T) {
	e := newEnv(t)
	resp := e.registerPublic(t)

	assert.NotEmpty(t, resp.ClientID)
	assert.Empty(t, resp.ClientSecret)
	assert.Equal(t, repository.AuthMethodNone, resp.TokenEndpointAuthMethod)
	assert.Equal(t, []string{"authorization_code", "refresh_token"}, resp.GrantTypes)
	assert.Equal(t, []string{"code"}, resp.ResponseTypes)
	assert.Equal(t, scopes.New(scopes.UserPreset()...).String(), resp.Scope)

	c, err := e.clients.FindByID(context.Background(), resp.ClientID)
	require.NoError(t, err)
	assert.True(t, c.IsPublic)
}

func TestRegister_ConfidentialSecretHashed(t *testing.T) {
	e := newEnv(t)
	resp := e.registerConfidential(t, "client_credentials")
	require.NotEmpty(t, resp.ClientSecret)

	c, err := e.clients.FindByID(context.Background(), resp.ClientID)
	require.NoError(t, err)
	assert.False(t, c.IsPublic)
	assert.NotEqual(t, resp.ClientSecret, c.SecretHash)
	require.NoError(t, tokens.CompareSecret(c.SecretHash, resp.ClientSecret))

	_, err = e.clients.Authenticate(context.Background(), resp.ClientID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.RegisterRequest
		want error
	}{
		{"no redirect", dto.RegisterRequest{}, ErrInvalidRedirectURI},
		{"relative", dto.RegisterRequest{RedirectURIs: []string{"/cb"}}, ErrInvalidRedirectURI},
		{"fragment", dto.RegisterRequest{RedirectURIs: []string{"https://app.example/cb#x"}}, ErrInvalidRedirectURI},
		{"plain http", dto.RegisterRequest{RedirectURIs: []string{"http://app.example/cb"}}, ErrInvalidRedirectURI},
		{"bad grant", dto.RegisterRequest{RedirectURIs: []string{testRedirect}, GrantTypes: []string{"password"}}, ErrInvalidClientMetadata},
		{"bad response type", dto.RegisterRequest{RedirectURIs: []string{testRedirect}, ResponseTypes: []string{"token"}}, ErrInvalidClientMetadata},
		{"public client_credentials", dto.RegisterRequest{RedirectURIs: []string{testRedirect}, GrantTypes: []string{"client_credentials"}}, ErrInvalidClientMetadata},
		{"unknown scope", dto.RegisterRequest{RedirectURIs: []string{testRedirect}, Scope: "payments:read"}, ErrInvalidClientMetadata},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.clients.Register(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	for _, ok := range []string{"http://127.0.0.1:8765/cb", "http://localhost/cb", "com.example.app:/oauth"} {
		_, err := e.clients.Register(ctx, dto.RegisterRequest{RedirectURIs: []string{ok}})
		assert.NoError(t, err, ok)
	}
}

// ----------------------------------------------------------------------------
// Authorize
// ----------------------------------------------------------------------------

func TestAuthorize_RequestValidation(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	_, challenge := newPKCE(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*dto.AuthorizeRequest)
		want   error
	}{
		{"missing response_type", func(r *dto.AuthorizeRequest) { r.ResponseType = "" }, ErrInvalidRequest},
		{"token response_type", func(r *dto.AuthorizeRequest) { r.ResponseType = "token" }, ErrUnsupportedResponseType},
		{"missing client", func(r *dto.AuthorizeRequest) { r.ClientID = "" }, ErrInvalidRequest},
		{"missing challenge", func(r *dto.AuthorizeRequest) { r.CodeChallenge = "" }, ErrInvalidRequest},
		{"plain method", func(r *dto.AuthorizeRequest) { r.CodeChallengeMethod = "plain" }, ErrInvalidRequest},
		{"unknown client", func(r *dto.AuthorizeRequest) { r.ClientID = "nope" }, ErrInvalidClient},
		{"evil redirect", func(r *dto.AuthorizeRequest) { r.RedirectURI = "https://evil.example/cb" }, ErrInvalidRequest},
		{"scope beyond client", func(r *dto.AuthorizeRequest) { r.Scope = "booking:admin" }, ErrInvalidScope},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authorizeReq(client.ClientID, challenge)
			tc.mutate(&req)
			_, err := e.authz.Authorize(ctx, req, alice)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, e.codes.saves.Load(), "no code may be created for a rejected request")
}

func TestAuthorize_UnauthorizedClient(t *testing.T) {
	e := newEnv(t)
	client := e.registerConfidential(t, "client_credentials")
	_, challenge := newPKCE(t)

	_, err := e.authz.Authorize(context.Background(), authorizeReq(client.ClientID, challenge), alice)
	assert.ErrorIs(t, err, ErrUnauthorizedClient)
}

func TestAuthorize_ParkAndResume(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	_, challenge := newPKCE(t)
	ctx := context.Background()

	req := authorizeReq(client.ClientID, challenge)
	req.Provider = "line"
	req.Resource = "https://api.example.test"
	res, err := e.authz.Authorize(ctx, req, nil)
	require.NoError(t, err)
	require.Equal(t, dto.AuthResultNeedLogin, res.Type)
	assert.True(t, strings.HasPrefix(res.LoginURL, "/login/line?request_id="))
	assert.Zero(t, e.codes.saves.Load())

	resumed, err := e.authz.Resume(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, req, resumed)

	_, err = e.authz.Resume(ctx, res.RequestID)
	assert.ErrorIs(t, err, ErrInvalidRequest, "pending requests are read-once")

	req.Provider = "github"
	_, err = e.authz.Authorize(ctx, req, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuthorize_IssuesCodeWithState(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	_, challenge := newPKCE(t)

	res, err := e.authz.Authorize(context.Background(), authorizeReq(client.ClientID, challenge), alice)
	require.NoError(t, err)
	assert.Equal(t, dto.AuthResultSuccess, res.Type)
	assert.Equal(t, "xyz", res.State)
	assert.Equal(t, testRedirect, res.RedirectURI)
	assert.Len(t, res.Code, 43)
	assert.EqualValues(t, 1, e.codes.saves.Load())
}

// ----------------------------------------------------------------------------
// Token: authorization_code
// ----------------------------------------------------------------------------

func TestAuthorizationCode_RedeemsOnce(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID, func(r *dto.AuthorizeRequest) { r.Scope = "product:read booking:create" })
	ctx := context.Background()

	resp, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "booking:create product:read", resp.Scope)

	claims, err := e.issuer.Verify(resp.AccessToken, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "user-alice", claims["sub"])
	assert.Equal(t, client.ClientID, claims["client_id"])
	assert.Equal(t, "booking:create product:read", claims["scope"])

	_, err = e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCode_ResourceBecomesAudience(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID, func(r *dto.AuthorizeRequest) { r.Resource = "https://api.example.test" })

	resp, err := e.tokens.Exchange(context.Background(), codeGrant(client.ClientID, code, verifier))
	require.NoError(t, err)

	_, err = e.issuer.Verify(resp.AccessToken, "https://api.example.test")
	require.NoError(t, err)
	_, err = e.issuer.Verify(resp.AccessToken, testIssuer)
	assert.ErrorIs(t, err, jwtx.ErrInvalidAudience)
}

func TestAuthorizationCode_ConcurrentRedemption(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID)

	const n = 16
	var wins, grantErrs atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.tokens.Exchange(context.Background(), codeGrant(client.ClientID, code, verifier))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidGrant):
				grantErrs.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, grantErrs.Load())
}

func TestAuthorizationCode_Mismatches(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	other := e.registerPublic(t)
	ctx := context.Background()

	t.Run("pkce mismatch consumes the code", func(t *testing.T) {
		code, verifier := e.issueCode(t, client.ClientID)
		wrong := []byte(verifier)
		if wrong[0] == 'A' {
			wrong[0] = 'B'
		} else {
			wrong[0] = 'A'
		}
		_, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, string(wrong)))
		assert.ErrorIs(t, err, ErrInvalidGrant)
		assert.Empty(t, Detail(err), "invalid_grant must not name the failing field")

		_, err = e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		code, verifier := e.issueCode(t, client.ClientID)
		req := codeGrant(client.ClientID, code, verifier)
		req.RedirectURI = "https://app.example/other"
		_, err := e.tokens.Exchange(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("client mismatch", func(t *testing.T) {
		code, verifier := e.issueCode(t, client.ClientID)
		_, err := e.tokens.Exchange(ctx, codeGrant(other.ClientID, code, verifier))
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("missing params", func(t *testing.T) {
		_, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "authorization_code", ClientID: client.ClientID})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestAuthorizationCode_ExpiresAfter600s(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID)

	e.advance(601 * time.Second)
	_, err := e.tokens.Exchange(context.Background(), codeGrant(client.ClientID, code, verifier))
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = e.store.AuthCodes().Take(context.Background(), tokens.SHA256Base64URL(code))
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired code row must be gone")
}

func TestAuthorizationCode_ConfidentialMustAuthenticate(t *testing.T) {
	e := newEnv(t)
	client := e.registerConfidential(t, "authorization_code", "refresh_token")
	code, verifier := e.issueCode(t, client.ClientID)
	ctx := context.Background()

	_, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
	assert.ErrorIs(t, err, ErrInvalidClient)

	req := codeGrant(client.ClientID, code, verifier)
	req.ClientSecret = client.ClientSecret
	_, err = e.tokens.Exchange(ctx, req)
	assert.NoError(t, err)
}

// ----------------------------------------------------------------------------
// Token: refresh_token
// ----------------------------------------------------------------------------

func TestRefreshToken_Rotation(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID, func(r *dto.AuthorizeRequest) { r.Scope = "order:read order:create" })
	ctx := context.Background()

	first, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
	require.NoError(t, err)
	r1 := first.RefreshToken

	second, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: r1, ClientID: client.ClientID})
	require.NoError(t, err)
	r2 := second.RefreshToken
	assert.NotEqual(t, r1, r2)
	assert.Equal(t, "order:create order:read", second.Scope)

	_, err = e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: r1})
	assert.ErrorIs(t, err, ErrInvalidGrant)

	narrowed, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: r2, Scope: "order:read"})
	require.NoError(t, err)
	assert.Equal(t, "order:read", narrowed.Scope)

	// la rotación conserva el scope original, no el reducido
	widened, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: narrowed.RefreshToken, Scope: "order:create"})
	require.NoError(t, err)

	_, err = e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: widened.RefreshToken, Scope: "order:cancel"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestRefreshToken_Expired(t *testing.T) {
	e := newEnv(t)
	client := e.registerPublic(t)
	code, verifier := e.issueCode(t, client.ClientID)
	ctx := context.Background()

	resp, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
	require.NoError(t, err)

	e.advance(DefaultRefreshTTL + time.Second)
	_, err = e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefreshToken_RejectedRequestKeepsGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("scope beyond grant", func(t *testing.T) {
		e := newEnv(t)
		client := e.registerPublic(t)
		code, verifier := e.issueCode(t, client.ClientID, func(r *dto.AuthorizeRequest) { r.Scope = "order:read" })
		first, err := e.tokens.Exchange(ctx, codeGrant(client.ClientID, code, verifier))
		require.NoError(t, err)

		_, err = e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: first.RefreshToken, Scope: "order:create"})
		assert.ErrorIs(t, err, ErrInvalidScope)

		next, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: first.RefreshToken})
		require.NoError(t, err)
		assert.Equal(t, "order:read", next.Scope)
	})

	t.Run("confidential client with bad secret", func(t *testing.T) {
		e := newEnv(t)
		client := e.registerConfidential(t, "authorization_code", "refresh_token")
		code, verifier := e.issueCode(t, client.ClientID)
		req := codeGrant(client.ClientID, code, verifier)
		req.ClientSecret = client.ClientSecret
		first, err := e.tokens.Exchange(ctx, req)
		require.NoError(t, err)

		refresh := func(id, secret string) error {
			_, err := e.tokens.Exchange(ctx, dto.TokenRequest{
				GrantType:    "refresh_token",
				RefreshToken: first.RefreshToken,
				ClientID:     id,
				ClientSecret: secret,
			})
			return err
		}
		assert.ErrorIs(t, refresh(client.ClientID, "wrong"), ErrInvalidClient)
		assert.ErrorIs(t, refresh("", ""), ErrInvalidClient)
		assert.ErrorIs(t, refresh("someone-else", client.ClientSecret), ErrInvalidGrant)

		require.NoError(t, refresh(client.ClientID, client.ClientSecret))
		assert.ErrorIs(t, refresh(client.ClientID, client.ClientSecret), ErrInvalidGrant)
	})
}

// ----------------------------------------------------------------------------
// Token: client_credentials
// ----------------------------------------------------------------------------

func TestClientCredentials_DefaultScopeMatchesMetadata(t *testing.T) {
	e := newEnv(t)
	client := e.registerConfidential(t, "client_credentials")

	resp, err := e.tokens.Exchange(context.Background(), dto.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken)
	readSubset := func(advertised []string) []string {
		var out []string
		for _, s := range advertised {
			if strings.HasSuffix(s, ":"+scopes.ActionRead) {
				out = append(out, s)
			}
		}
		return out
	}
	assert.ElementsMatch(t, readSubset(e.meta.AuthorizationServer().ScopesSupported), strings.Fields(resp.Scope))
	assert.ElementsMatch(t, readSubset(e.meta.ProtectedResource().ScopesSupported), strings.Fields(resp.Scope))
	assert.Contains(t, e.meta.AuthorizationServer().ScopesSupported, "booking:cancel")
	assert.Len(t, e.meta.AuthorizationServer().ScopesSupported, len(scopes.Supported()))

	claims, err := e.issuer.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, claims["sub"])
}

func TestClientCredentials_Failures(t *testing.T) {
	e := newEnv(t)
	conf := e.registerConfidential(t, "client_credentials")
	noGrant := e.registerConfidential(t, "authorization_code")
	public := e.registerPublic(t)
	ctx := context.Background()

	cc := func(id, secret, scope string) error {
		_, err := e.tokens.Exchange(ctx, dto.TokenRequest{GrantType: "client_credentials", ClientID: id, ClientSecret: secret, Scope: scope})
		return err
	}
	assert.ErrorIs(t, cc(conf.ClientID, "wrong", ""), ErrInvalidClient)
	assert.ErrorIs(t, cc(conf.ClientID, "", ""), ErrInvalidClient)
	assert.ErrorIs(t, cc("unknown", "x", ""), ErrInvalidClient)
	assert.ErrorIs(t, cc(public.ClientID, "x", ""), ErrInvalidClient)
	assert.ErrorIs(t, cc(noGrant.ClientID, noGrant.ClientSecret, ""), ErrInvalidClient)
	assert.ErrorIs(t, cc(conf.ClientID, conf.ClientSecret, "booking:admin"), ErrInvalidScope)
	assert.NoError(t, cc(conf.ClientID, conf.ClientSecret, "booking:create"))
}

func TestExchange_GrantDispatch(t *testing.T) {
	e := newEnv(t)
	_, err := e.tokens.Exchange(context.Background(), dto.TokenRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = e.tokens.Exchange(context.Background(), dto.TokenRequest{GrantType: "password"})
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)
}

func TestMetadata(t *testing.T) {
	m := Metadata{Issuer: testIssuer + "/", Resource: "https://api.example.test"}
	as := m.AuthorizationServer()
	assert.Equal(t, testIssuer+"/token", as.TokenEndpoint)
	assert.Equal(t, []string{"S256"}, as.CodeChallengeMethodsSupported)
	assert.Equal(t, []string{"code"}, as.ResponseTypesSupported)

	pr := m.ProtectedResource()
	assert.Equal(t, "https://api.example.test", pr.Resource)
	assert.Equal(t, []string{"header"}, pr.BearerMethodsSupported)

	u, err := url.Parse(m.ResourceMetadataURL())
	require.NoError(t, err)
	assert.Equal(t, "/.well-known/oauth-protected-resource", u.Path)
}
