package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma tokens con el KeySet activo.
type Issuer struct {
	Iss       string        // "iss"
	Keys      *KeySet       // HS256 o EdDSA
	AccessTTL time.Duration // TTL por defecto de Access (1h)

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      ks,
		AccessTTL: time.Hour,
	}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	key, err := i.Keys.signingKey()
	if err != nil {
		return "", err
	}
	tk := jwtv5.NewWithClaims(i.Keys.method(), claims)
	if i.Keys.KID != "" {
		tk.Header["kid"] = i.Keys.KID
	}
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key)
}

// IssueAccess emite un Access Token con claims estándar (iss/sub/aud/iat/nbf/exp/jti) + std (flat).
// aud vacío => issuer.
func (i *Issuer) IssueAccess(sub, aud string, std map[string]any) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.AccessTTL)
	if aud == "" {
		aud = i.Iss
	}

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.NewString(),
	}
	for k, v := range std {
		claims[k] = v
	}
	signed, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
