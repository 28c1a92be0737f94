package jwt

import (
	"errors"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid_jwt")
	ErrExpired         = errors.New("expired")
	ErrNotYetValid     = errors.New("not_before")
	ErrInvalidIssuer   = errors.New("invalid_issuer")
	ErrInvalidAudience = errors.New("invalid_audience")
)

// Verify valida firma con el KeySet del issuer, iss, exp (obligatorio) y nbf
// sin tolerancia, y aud cuando audiences no está vacío (basta con una).
// Los errores de jwt/v5 se traducen a los sentinels de este paquete.
func (i *Issuer) Verify(token string, audiences ...string) (map[string]any, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{i.Keys.Alg}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithLeeway(0),
	}
	if len(audiences) > 0 {
		opts = append(opts, jwtv5.WithAudience(audiences...))
	}

	claims := jwtv5.MapClaims{}
	if _, err := jwtv5.ParseWithClaims(token, claims, i.Keys.keyfunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %w", mapParseErr(err), err)
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

// mapParseErr prioriza firma y formato: un token mal firmado nunca se
// reporta como vencido.
func mapParseErr(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenMalformed),
		errors.Is(err, jwtv5.ErrTokenUnverifiable),
		errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return ErrInvalidToken
	case errors.Is(err, jwtv5.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtv5.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwtv5.ErrTokenInvalidAudience):
		return ErrInvalidAudience
	}
	return ErrInvalidToken
}

// IsTokenError indica si err es un rechazo del token (y no una falla interna).
func IsTokenError(err error) bool {
	for _, target := range []error{ErrInvalidToken, ErrExpired, ErrNotYetValid, ErrInvalidIssuer, ErrInvalidAudience} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCompact indica si el string tiene forma de JWT compacto (tres segmentos).
func IsCompact(token string) bool {
	dots := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			dots++
		}
	}
	return dots == 2
}
