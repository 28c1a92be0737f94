package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/toolgate/internal/cache"
	svc "github.com/dropDatabas3/toolgate/internal/http/services/social"
	"github.com/dropDatabas3/toolgate/internal/identity"
	"github.com/dropDatabas3/toolgate/internal/session"
)

type fakeService struct {
	completed int
}

func (f *fakeService) Begin(_ context.Context, provider string) (*svc.Begin, error) {
	if provider != "google" {
		return nil, identity.ErrUnknownProvider
	}
	return &svc.Begin{AuthURL: "https://accounts.example/auth?state=st-1", State: "st-1", Verifier: "ver-1"}, nil
}

func (f *fakeService) Complete(_ context.Context, provider, code, verifier string) (*identity.UserInfo, error) {
	f.completed++
	if code != "ok" || verifier != "ver-1" {
		return nil, identity.ErrProviderExchangeFailed
	}
	return &identity.UserInfo{ID: provider + ":42", Email: "a@b.io", Provider: provider}, nil
}

type env struct {
	router   http.Handler
	service  *fakeService
	sessions *session.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m, err := session.NewManager(session.Config{Secret: []byte(strings.Repeat("k", 32))}, cache.NewMemory("t:", time.Minute))
	require.NoError(t, err)
	f := &fakeService{}
	c := NewController(Deps{Service: f, Sessions: m, PostLoginURL: "/welcome"})

	r := chi.NewRouter()
	r.Get("/login/{provider}", c.Login)
	r.Get("/callback/{provider}", c.Callback)
	r.Post("/logout", c.Logout)
	return &env{router: r, service: f, sessions: m}
}

func (e *env) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

// login devuelve las cookies efímeras emitidas por /login.
func (e *env) login(t *testing.T, query string) []*http.Cookie {
	t.Helper()
	rec := e.serve(httptest.NewRequest(http.MethodGet, "/login/google"+query, nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://accounts.example/auth?state=st-1", rec.Header().Get("Location"))
	return rec.Result().Cookies()
}

func callback(query string, cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/callback/google?"+query, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestCallback_SuccessResumesAuthorization(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(t, "?request_id=req-9")

	rec := e.serve(callback("code=ok&state=st-1", cookies))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/authorize?request_id=req-9", rec.Header().Get("Location"))

	sc := sessionCookie(rec)
	require.NotNil(t, sc)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(sc)
	sess := e.sessions.FromRequest(r)
	require.NotNil(t, sess)
	assert.Equal(t, "google:42", sess.UserID)
}

func TestCallback_WithoutPendingRequestGoesToPostLogin(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(t, "")

	rec := e.serve(callback("code=ok&state=st-1", cookies))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/welcome", rec.Header().Get("Location"))
}

func TestCallback_ReplayedCookiesRejected(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(t, "")

	require.Equal(t, http.StatusFound, e.serve(callback("code=ok&state=st-1", cookies)).Code)

	rec := e.serve(callback("code=ok&state=st-1", cookies))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, sessionCookie(rec))
	assert.Equal(t, 1, e.service.completed)
}

func TestCallback_FailuresCreateNoSession(t *testing.T) {
	cases := map[string]string{
		"state mismatch": "code=ok&state=other",
		"missing state":  "code=ok",
		"missing code":   "state=st-1",
		"provider error": "error=access_denied&state=st-1",
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			cookies := e.login(t, "")
			rec := e.serve(callback(q, cookies))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, sessionCookie(rec))
			assert.Zero(t, e.service.completed)
		})
	}
}

func TestCallback_ExchangeFailureIsServerError(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(t, "")

	rec := e.serve(callback("code=bad&state=st-1", cookies))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_UnknownProvider(t *testing.T) {
	e := newEnv(t)
	rec := e.serve(httptest.NewRequest(http.MethodGet, "/login/myspace", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout_ClearsCookie(t *testing.T) {
	e := newEnv(t)
	rec := e.serve(httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
