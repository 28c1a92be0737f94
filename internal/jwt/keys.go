package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
)

var ErrNoSigningKey = errors.New("no_signing_key")

// KeySet mantiene una sola clave activa: secreto HMAC (HS256) o par Ed25519 (EdDSA).
type KeySet struct {
	Alg    string
	KID    string
	Secret []byte
	Priv   ed25519.PrivateKey
	Pub    ed25519.PublicKey
}

// NewHS256 construye un KeySet simétrico.
func NewHS256(secret []byte) (*KeySet, error) {
	if len(secret) == 0 {
		return nil, ErrNoSigningKey
	}
	return &KeySet{Alg: AlgHS256, Secret: secret}, nil
}

// NewDevEd25519 genera una clave Ed25519 en memoria. Si kid == "" se deriva de la pública.
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newEd25519(priv, pub, kid), nil
}

func newEd25519(priv ed25519.PrivateKey, pub ed25519.PublicKey, kid string) *KeySet {
	if kid == "" {
		kid = thumbprint(pub)
	}
	return &KeySet{Alg: AlgEdDSA, KID: kid, Priv: priv, Pub: pub}
}

// LoadEd25519PEM lee una clave privada PKCS#8 en PEM.
func LoadEd25519PEM(path string) (*KeySet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEd25519PEM(b)
}

// ParseEd25519PEM decodifica una clave privada PKCS#8 Ed25519.
func ParseEd25519PEM(b []byte) (*KeySet, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("jwt: pem inválido")
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse pkcs8: %w", err)
	}
	priv, ok := k.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: la clave no es Ed25519")
	}
	return newEd25519(priv, priv.Public().(ed25519.PublicKey), ""), nil
}

// EncodeEd25519PEM serializa la privada como PKCS#8 PEM (para `keys generate`).
func (k *KeySet) EncodeEd25519PEM() ([]byte, error) {
	if k.Priv == nil {
		return nil, ErrNoSigningKey
	}
	der, err := x509.MarshalPKCS8PrivateKey(k.Priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func (k *KeySet) method() jwtv5.SigningMethod {
	if k.Alg == AlgEdDSA {
		return jwtv5.SigningMethodEdDSA
	}
	return jwtv5.SigningMethodHS256
}

func (k *KeySet) signingKey() (any, error) {
	switch k.Alg {
	case AlgEdDSA:
		if k.Priv == nil {
			return nil, ErrNoSigningKey
		}
		return k.Priv, nil
	case AlgHS256:
		if len(k.Secret) == 0 {
			return nil, ErrNoSigningKey
		}
		return k.Secret, nil
	}
	return nil, ErrNoSigningKey
}

func (k *KeySet) keyfunc(t *jwtv5.Token) (any, error) {
	if k.Alg == AlgEdDSA {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != k.KID {
			return nil, errors.New("kid_unknown")
		}
		return k.Pub, nil
	}
	return k.Secret, nil
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública). Con HS256 no hay nada que publicar: {"keys":[]}.
func (k *KeySet) JWKSJSON() []byte {
	j := jwks{Keys: []jwk{}}
	if k.Alg == AlgEdDSA && k.Pub != nil {
		j.Keys = append(j.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: AlgEdDSA,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		})
	}
	b, _ := json.Marshal(j)
	return b
}

// thumbprint: kid estable derivado de la pública (primeros 16 bytes de SHA-256, base64url).
func thumbprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
