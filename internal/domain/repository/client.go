package repository

import (
	"context"
	"slices"
	"time"
)

const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Client representa un cliente OAuth registrado. Append-only.
type Client struct {
	ClientID                string
	SecretHash              string // bcrypt; vacío para clientes públicos
	Name                    string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scopes                  []string
	IsPublic                bool
	TokenEndpointAuthMethod string
	CreatedAt               time.Time
}

// AllowsGrant indica si el cliente tiene habilitado el grant.
func (c *Client) AllowsGrant(grant string) bool {
	return slices.Contains(c.GrantTypes, grant)
}

// HasRedirectURI compara exacto contra las URIs registradas.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// ClientRepository define operaciones sobre clientes OAuth.
type ClientRepository interface {
	// Create persiste un cliente nuevo.
	// Retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, c *Client) error

	// Get obtiene un client por su client_id público.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*Client, error)
}
