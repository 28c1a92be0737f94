package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	"github.com/dropDatabas3/toolgate/internal/session"
)

type fakeTokens struct {
	got  dto.TokenRequest
	resp *dto.TokenResponse
	err  error
}

func (f *fakeTokens) Exchange(_ context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	f.got = req
	return f.resp, f.err
}
func (f *fakeTokens) ExchangeAuthorizationCode(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	return f.Exchange(ctx, req)
}
func (f *fakeTokens) ExchangeRefreshToken(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	return f.Exchange(ctx, req)
}
func (f *fakeTokens) ExchangeClientCredentials(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	return f.Exchange(ctx, req)
}

type fakeAuthorize struct {
	result  dto.AuthResult
	err     error
	resumed dto.AuthorizeRequest
	got     dto.AuthorizeRequest
	sess    *session.Session
}

func (f *fakeAuthorize) Authorize(_ context.Context, req dto.AuthorizeRequest, sess *session.Session) (dto.AuthResult, error) {
	f.got, f.sess = req, sess
	return f.result, f.err
}
func (f *fakeAuthorize) Resume(_ context.Context, id string) (dto.AuthorizeRequest, error) {
	if id != "parked" {
		return dto.AuthorizeRequest{}, svc.ErrInvalidRequest
	}
	return f.resumed, nil
}

type noSession struct{}

func (noSession) FromRequest(*http.Request) *session.Session { return nil }

func postForm(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestToken_Success(t *testing.T) {
	f := &fakeTokens{resp: &dto.TokenResponse{AccessToken: "at", TokenType: "Bearer", ExpiresIn: 3600}}
	c := NewTokenController(f)

	rec := httptest.NewRecorder()
	c.Token(rec, postForm(url.Values{"grant_type": {"authorization_code"}, "code": {"c"}, "client_id": {"cli"}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "cli", f.got.ClientID)
	assert.Equal(t, "c", f.got.Code)
	assert.False(t, f.got.ClientAuthBasic)
}

func TestToken_BasicAuthMismatch(t *testing.T) {
	f := &fakeTokens{}
	c := NewTokenController(f)

	r := postForm(url.Values{"grant_type": {"client_credentials"}, "client_id": {"other"}})
	r.SetBasicAuth("cli", "secret")
	rec := httptest.NewRecorder()
	c.Token(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_client", errorBody(t, rec)["error"])
}

func TestToken_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"grant", svc.ErrInvalidGrant, http.StatusBadRequest, "invalid_grant"},
		{"grant type", svc.ErrUnsupportedGrantType, http.StatusBadRequest, "unsupported_grant_type"},
		{"scope", svc.ErrInvalidScope, http.StatusBadRequest, "invalid_scope"},
		{"client", svc.ErrInvalidClient, http.StatusUnauthorized, "invalid_client"},
		{"internal", errors.New("db down: password=hunter2"), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewTokenController(&fakeTokens{err: tc.err})
			rec := httptest.NewRecorder()
			c.Token(rec, postForm(url.Values{"grant_type": {"x"}}))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorBody(t, rec)["error"])
			assert.NotContains(t, rec.Body.String(), "hunter2")
		})
	}
}

func TestToken_BasicChallengeOnInvalidClient(t *testing.T) {
	c := NewTokenController(&fakeTokens{err: svc.ErrInvalidClient})
	r := postForm(url.Values{"grant_type": {"client_credentials"}})
	r.SetBasicAuth("cli", "bad")
	rec := httptest.NewRecorder()
	c.Token(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestToken_RejectsGetAndJSON(t *testing.T) {
	c := NewTokenController(&fakeTokens{})

	rec := httptest.NewRecorder()
	c.Token(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c.Token(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorize_RedirectsWithCodeAndState(t *testing.T) {
	f := &fakeAuthorize{result: dto.AuthResult{
		Type:        dto.AuthResultSuccess,
		RedirectURI: "https://app.example/cb?keep=1",
		Code:        "the-code",
		State:       "s1",
	}}
	c := NewAuthorizeController(f, noSession{})

	rec := httptest.NewRecorder()
	c.Authorize(rec, httptest.NewRequest(http.MethodGet, "/authorize?client_id=cli&state=s1&idp=line", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "the-code", loc.Query().Get("code"))
	assert.Equal(t, "s1", loc.Query().Get("state"))
	assert.Equal(t, "1", loc.Query().Get("keep"))
	assert.Equal(t, "line", f.got.Provider)
}

func TestAuthorize_NeedLogin(t *testing.T) {
	f := &fakeAuthorize{result: dto.AuthResult{Type: dto.AuthResultNeedLogin, LoginURL: "/login/google?request_id=r1"}}
	c := NewAuthorizeController(f, noSession{})

	rec := httptest.NewRecorder()
	c.Authorize(rec, httptest.NewRequest(http.MethodGet, "/authorize?client_id=cli", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/google?request_id=r1", rec.Header().Get("Location"))
}

func TestAuthorize_ResumeUsesParkedRequest(t *testing.T) {
	f := &fakeAuthorize{
		resumed: dto.AuthorizeRequest{ClientID: "parked-client"},
		result:  dto.AuthResult{Type: dto.AuthResultSuccess, RedirectURI: "https://app.example/cb", Code: "c"},
	}
	c := NewAuthorizeController(f, noSession{})

	rec := httptest.NewRecorder()
	c.Authorize(rec, httptest.NewRequest(http.MethodGet, "/authorize?request_id=parked&client_id=ignored", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "parked-client", f.got.ClientID)

	rec = httptest.NewRecorder()
	c.Authorize(rec, httptest.NewRequest(http.MethodGet, "/authorize?request_id=gone", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorize_ErrorIsJSONNotRedirect(t *testing.T) {
	f := &fakeAuthorize{err: &svc.Error{Kind: svc.ErrInvalidRequest, Detail: "redirect_uri is not registered for this client"}}
	c := NewAuthorizeController(f, noSession{})

	rec := httptest.NewRecorder()
	c.Authorize(rec, httptest.NewRequest(http.MethodGet, "/authorize?redirect_uri=https://evil.example", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	body := errorBody(t, rec)
	assert.Equal(t, "invalid_request", body["error"])
	assert.Equal(t, "redirect_uri is not registered for this client", body["error_description"])
}
