// Package memory implementa repository.Store en memoria (dev y tests).
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
)

// Store guarda todo en mapas protegidos por un único mutex.
// Take es delete-and-return bajo lock: dos llamadas concurrentes nunca devuelven el mismo registro.
type Store struct {
	mu            sync.Mutex
	clients       map[string]repository.Client
	codes         map[string]repository.AuthorizationCode
	refresh       map[string]repository.RefreshToken
	serviceTokens map[string]repository.ServiceToken
}

var (
	_ repository.Store   = (*Store)(nil)
	_ repository.Sweeper = (*Store)(nil)
)

func New() *Store {
	return &Store{
		clients:       make(map[string]repository.Client),
		codes:         make(map[string]repository.AuthorizationCode),
		refresh:       make(map[string]repository.RefreshToken),
		serviceTokens: make(map[string]repository.ServiceToken),
	}
}

func (s *Store) Clients() repository.ClientRepository             { return clientRepo{s} }
func (s *Store) AuthCodes() repository.AuthCodeRepository         { return codeRepo{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return refreshRepo{s} }
func (s *Store) ServiceTokens() repository.ServiceTokenRepository { return serviceRepo{s} }

func (s *Store) Driver() string                 { return "memory" }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

// DeleteExpired borra códigos, refresh y service tokens vencidos.
func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.codes {
		if repository.Expired(v.ExpiresAt, now) {
			delete(s.codes, k)
			n++
		}
	}
	for k, v := range s.refresh {
		if repository.Expired(v.ExpiresAt, now) {
			delete(s.refresh, k)
			n++
		}
	}
	for k, v := range s.serviceTokens {
		if repository.Expired(v.ExpiresAt, now) {
			delete(s.serviceTokens, k)
			n++
		}
	}
	return n, nil
}

// ─── Clients ───

type clientRepo struct{ s *Store }

func (r clientRepo) Create(_ context.Context, c *repository.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[c.ClientID]; ok {
		return repository.ErrConflict
	}
	r.s.clients[c.ClientID] = cloneClient(*c)
	return nil
}

func (r clientRepo) Get(_ context.Context, clientID string) (*repository.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneClient(c)
	return &out, nil
}

func cloneClient(c repository.Client) repository.Client {
	c.RedirectURIs = slices.Clone(c.RedirectURIs)
	c.GrantTypes = slices.Clone(c.GrantTypes)
	c.ResponseTypes = slices.Clone(c.ResponseTypes)
	c.Scopes = slices.Clone(c.Scopes)
	return c
}

// ─── Authorization codes ───

type codeRepo struct{ s *Store }

func (r codeRepo) Save(_ context.Context, c *repository.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.codes[c.CodeHash]; ok {
		return repository.ErrConflict
	}
	r.s.codes[c.CodeHash] = *c
	return nil
}

func (r codeRepo) Take(_ context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[codeHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.s.codes, codeHash)
	return &c, nil
}

// ─── Refresh tokens ───

type refreshRepo struct{ s *Store }

func (r refreshRepo) Save(_ context.Context, t *repository.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refresh[t.TokenHash]; ok {
		return repository.ErrConflict
	}
	r.s.refresh[t.TokenHash] = *t
	return nil
}

func (r refreshRepo) Get(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r refreshRepo) Take(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.s.refresh, tokenHash)
	return &t, nil
}

// ─── Service tokens ───

type serviceRepo struct{ s *Store }

func (r serviceRepo) Save(_ context.Context, t *repository.ServiceToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.serviceTokens[t.TokenHash]; ok {
		return repository.ErrConflict
	}
	cp := *t
	cp.Scopes = slices.Clone(t.Scopes)
	r.s.serviceTokens[t.TokenHash] = cp
	return nil
}

func (r serviceRepo) Get(_ context.Context, tokenHash string) (*repository.ServiceToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.serviceTokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Scopes = slices.Clone(t.Scopes)
	return &t, nil
}

func (r serviceRepo) Delete(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.serviceTokens, tokenHash)
	return nil
}
