// Package pkce implementa Proof Key for Code Exchange (RFC 7636), solo método S256.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// MethodS256 es el único code_challenge_method aceptado.
const MethodS256 = "S256"

const (
	verifierBytes = 32 // 43 chars en base64url sin padding
	stateBytes    = 16

	minVerifierLen = 43
	maxVerifierLen = 128
)

// ErrUnsupportedMethod se devuelve para cualquier método distinto de S256 (incluido "plain").
var ErrUnsupportedMethod = errors.New("pkce: unsupported code_challenge_method")

// GenerateCodeVerifier genera 32 bytes aleatorios en base64url sin padding (43 chars).
func GenerateCodeVerifier() (string, error) {
	return randomB64(verifierBytes)
}

// GenerateCodeChallenge calcula base64url(SHA-256(verifier)) sin padding.
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge recalcula el challenge desde el verifier y lo compara en tiempo constante.
func VerifyChallenge(verifier, challenge, method string) (bool, error) {
	if method != MethodS256 {
		return false, ErrUnsupportedMethod
	}
	got := GenerateCodeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) == 1, nil
}

// GenerateState genera un valor CSRF de 16 bytes en base64url.
func GenerateState() (string, error) {
	return randomB64(stateBytes)
}

// ValidVerifier chequea largo (43..128) y charset unreserved de RFC 7636 §4.1.
func ValidVerifier(v string) bool {
	if len(v) < minVerifierLen || len(v) > maxVerifierLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}

func randomB64(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
