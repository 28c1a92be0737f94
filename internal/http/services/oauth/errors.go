// Package oauth contains the services behind the OAuth endpoints:
// client registry, authorization, token issuance and discovery metadata.
package oauth

import "errors"

// OAuth error kinds. Controllers map them to the wire codes of the same name.
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrInvalidRedirectURI      = errors.New("invalid_redirect_uri")
	ErrInvalidClientMetadata   = errors.New("invalid_client_metadata")
)

// Error attaches a client-safe description to one of the kinds above.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Kind.Error() + ": " + e.Detail }
func (e *Error) Unwrap() error { return e.Kind }

func errDetail(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Detail returns the client-safe description carried by err, if any.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// IsOAuthError reports whether err is one of the OAuth kinds rather than an internal failure.
func IsOAuthError(err error) bool {
	for _, k := range []error{
		ErrInvalidRequest, ErrInvalidClient, ErrInvalidGrant, ErrUnauthorizedClient,
		ErrUnsupportedGrantType, ErrUnsupportedResponseType, ErrInvalidScope,
		ErrInvalidRedirectURI, ErrInvalidClientMetadata,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
