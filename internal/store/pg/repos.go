package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
)

// ─── Clients ───

type clientRepo struct{ pool *pgxpool.Pool }

func (r clientRepo) Create(ctx context.Context, c *repository.Client) error {
	const q = `
		INSERT INTO oauth_clients (client_id, secret_hash, name, redirect_uris, grant_types,
			response_types, scopes, is_public, token_endpoint_auth_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q, c.ClientID, c.SecretHash, c.Name, c.RedirectURIs, c.GrantTypes,
		c.ResponseTypes, c.Scopes, c.IsPublic, c.TokenEndpointAuthMethod, c.CreatedAt)
	return mapErr(err)
}

func (r clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	const q = `
		SELECT client_id, secret_hash, name, redirect_uris, grant_types, response_types,
			scopes, is_public, token_endpoint_auth_method, created_at
		FROM oauth_clients WHERE client_id = $1`
	var c repository.Client
	err := r.pool.QueryRow(ctx, q, clientID).Scan(&c.ClientID, &c.SecretHash, &c.Name, &c.RedirectURIs,
		&c.GrantTypes, &c.ResponseTypes, &c.Scopes, &c.IsPublic, &c.TokenEndpointAuthMethod, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// ─── Authorization codes ───

type codeRepo struct{ pool *pgxpool.Pool }

func (r codeRepo) Save(ctx context.Context, c *repository.AuthorizationCode) error {
	const q = `
		INSERT INTO authorization_codes (code_hash, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method, resource, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q, c.CodeHash, c.ClientID, c.UserID, c.RedirectURI, c.Scope,
		c.CodeChallenge, c.CodeChallengeMethod, c.Resource, c.IssuedAt, c.ExpiresAt)
	return mapErr(err)
}

// Take: DELETE ... RETURNING es atómico; sólo una transacción concurrente ve la fila.
func (r codeRepo) Take(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	const q = `
		DELETE FROM authorization_codes WHERE code_hash = $1
		RETURNING code_hash, client_id, user_id, redirect_uri, scope, code_challenge,
			code_challenge_method, resource, issued_at, expires_at`
	var c repository.AuthorizationCode
	err := r.pool.QueryRow(ctx, q, codeHash).Scan(&c.CodeHash, &c.ClientID, &c.UserID, &c.RedirectURI,
		&c.Scope, &c.CodeChallenge, &c.CodeChallengeMethod, &c.Resource, &c.IssuedAt, &c.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// ─── Refresh tokens ───

type refreshRepo struct{ pool *pgxpool.Pool }

func (r refreshRepo) Save(ctx context.Context, t *repository.RefreshToken) error {
	const q = `
		INSERT INTO refresh_tokens (token_hash, client_id, user_id, scope, resource, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, q, t.TokenHash, t.ClientID, t.UserID, t.Scope, t.Resource, t.IssuedAt, t.ExpiresAt)
	return mapErr(err)
}

func (r refreshRepo) Get(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const q = `
		SELECT token_hash, client_id, user_id, scope, resource, issued_at, expires_at
		FROM refresh_tokens WHERE token_hash = $1`
	var t repository.RefreshToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(&t.TokenHash, &t.ClientID, &t.UserID, &t.Scope,
		&t.Resource, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r refreshRepo) Take(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const q = `
		DELETE FROM refresh_tokens WHERE token_hash = $1
		RETURNING token_hash, client_id, user_id, scope, resource, issued_at, expires_at`
	var t repository.RefreshToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(&t.TokenHash, &t.ClientID, &t.UserID, &t.Scope,
		&t.Resource, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// ─── Service tokens ───

type serviceRepo struct{ pool *pgxpool.Pool }

func (r serviceRepo) Save(ctx context.Context, t *repository.ServiceToken) error {
	const q = `
		INSERT INTO service_tokens (token_hash, user_id, scopes, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, t.TokenHash, t.UserID, t.Scopes, t.IssuedAt, t.ExpiresAt)
	return mapErr(err)
}

func (r serviceRepo) Get(ctx context.Context, tokenHash string) (*repository.ServiceToken, error) {
	const q = `SELECT token_hash, user_id, scopes, issued_at, expires_at FROM service_tokens WHERE token_hash = $1`
	var t repository.ServiceToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(&t.TokenHash, &t.UserID, &t.Scopes, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r serviceRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM service_tokens WHERE token_hash = $1`, tokenHash)
	return err
}
