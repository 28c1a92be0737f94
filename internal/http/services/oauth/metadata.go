package oauth

import (
	"strings"

	"github.com/dropDatabas3/toolgate/internal/domain/repository"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	"github.com/dropDatabas3/toolgate/internal/scopes"
	"github.com/dropDatabas3/toolgate/internal/security/pkce"
)

// Metadata builds the discovery documents. scopes_supported lists every
// concrete scope /register accepts; its ":read" subset is the
// client_credentials default.
type Metadata struct {
	Issuer   string
	Resource string // vacío => Issuer
}

func (m Metadata) base() string { return strings.TrimRight(m.Issuer, "/") }

func (m Metadata) AuthorizationServer() dto.AuthServerMetadata {
	b := m.base()
	return dto.AuthServerMetadata{
		Issuer:                        m.Issuer,
		AuthorizationEndpoint:         b + "/authorize",
		TokenEndpoint:                 b + "/token",
		RegistrationEndpoint:          b + "/register",
		JWKSURI:                       b + "/jwks",
		ScopesSupported:               scopes.Supported(),
		ResponseTypesSupported:        []string{"code"},
		ResponseModesSupported:        []string{"query"},
		GrantTypesSupported:           []string{repository.GrantAuthorizationCode, repository.GrantRefreshToken, repository.GrantClientCredentials},
		CodeChallengeMethodsSupported: []string{pkce.MethodS256},
		TokenEndpointAuthMethodsSupported: []string{
			repository.AuthMethodNone,
			repository.AuthMethodClientSecretPost,
			repository.AuthMethodClientSecretBasic,
		},
	}
}

func (m Metadata) ProtectedResource() dto.ProtectedResourceMetadata {
	res := m.Resource
	if res == "" {
		res = m.Issuer
	}
	return dto.ProtectedResourceMetadata{
		Resource:               res,
		AuthorizationServers:   []string{m.Issuer},
		ScopesSupported:        scopes.Supported(),
		BearerMethodsSupported: []string{"header"},
		ResourceName:           "toolgate",
	}
}

// ResourceMetadataURL es la URL del documento RFC 9728 (para WWW-Authenticate).
func (m Metadata) ResourceMetadataURL() string {
	return m.base() + "/.well-known/oauth-protected-resource"
}
