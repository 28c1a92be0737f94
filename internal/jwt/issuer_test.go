package jwt

import (
	"encoding/json"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHS(t *testing.T) *Issuer {
	t.Helper()
	ks, err := NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return NewIssuer("https://auth.example.com", ks)
}

func TestIssueAccess_HS256_RoundTrip(t *testing.T) {
	iss := newHS(t)
	tok, exp, err := iss.IssueAccess("user-1", "", map[string]any{"scope": "booking:read", "client_id": "c1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
	assert.True(t, IsCompact(tok))

	claims, err := iss.Verify(tok, "https://auth.example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "https://auth.example.com", claims["aud"])
	assert.Equal(t, "booking:read", claims["scope"])
	assert.NotEmpty(t, claims["jti"])
}

func TestIssueAccess_EdDSA_RoundTripAndJWKS(t *testing.T) {
	ks, err := NewDevEd25519("")
	require.NoError(t, err)
	iss := NewIssuer("https://auth.example.com", ks)

	tok, _, err := iss.IssueAccess("user-1", "https://api.example.com", nil)
	require.NoError(t, err)

	_, err = iss.Verify(tok, "https://api.example.com")
	require.NoError(t, err)

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(ks.JWKSJSON(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "OKP", doc.Keys[0]["kty"])
	assert.Equal(t, ks.KID, doc.Keys[0]["kid"])
}

func TestJWKS_HS256Empty(t *testing.T) {
	assert.JSONEq(t, `{"keys":[]}`, string(newHS(t).Keys.JWKSJSON()))
}

func TestVerify_Failures(t *testing.T) {
	iss := newHS(t)
	tok, _, err := iss.IssueAccess("u", "https://api.example.com", nil)
	require.NoError(t, err)

	_, err = iss.Verify(tok, "https://other.example.com")
	assert.ErrorIs(t, err, ErrInvalidAudience)

	other := newHS(t)
	other.Iss = "https://evil.example.com"
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidIssuer)

	wrongKey, _ := NewHS256([]byte("ffffffffffffffffffffffffffffffff"))
	_, err = NewIssuer(iss.Iss, wrongKey).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	iss := newHS(t)
	base := time.Now()
	iss.Now = func() time.Time { return base }
	tok, _, err := iss.IssueAccess("u", "", nil)
	require.NoError(t, err)

	iss.Now = func() time.Time { return base.Add(time.Hour + time.Second) }
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_RejectsAlgSwitch(t *testing.T) {
	iss := newHS(t)
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, jwtv5.MapClaims{"iss": iss.Iss, "exp": time.Now().Add(time.Hour).Unix()})
	s, err := tk.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Verify(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEd25519PEM_RoundTrip(t *testing.T) {
	ks, err := NewDevEd25519("")
	require.NoError(t, err)
	b, err := ks.EncodeEd25519PEM()
	require.NoError(t, err)

	back, err := ParseEd25519PEM(b)
	require.NoError(t, err)
	assert.Equal(t, ks.KID, back.KID)
	assert.Equal(t, ks.Pub, back.Pub)
}

func TestVerify_ClaimRules(t *testing.T) {
	iss := newHS(t)
	sign := func(c jwtv5.MapClaims) string {
		t.Helper()
		s, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, c).SignedString(iss.Keys.Secret)
		require.NoError(t, err)
		return s
	}
	now := time.Now()

	_, err := iss.Verify(sign(jwtv5.MapClaims{"iss": iss.Iss}))
	assert.ErrorIs(t, err, ErrInvalidToken, "exp is required")

	_, err = iss.Verify(sign(jwtv5.MapClaims{"iss": iss.Iss, "exp": now.Add(time.Hour).Unix(), "nbf": now.Add(time.Minute).Unix()}))
	assert.ErrorIs(t, err, ErrNotYetValid)

	// exp == now ya está vencido
	iss.Now = func() time.Time { return now.Truncate(time.Second) }
	_, err = iss.Verify(sign(jwtv5.MapClaims{"iss": iss.Iss, "exp": now.Truncate(time.Second).Unix()}))
	assert.ErrorIs(t, err, ErrExpired)
	assert.True(t, IsTokenError(err))

	_, err = iss.Verify(sign(jwtv5.MapClaims{"iss": iss.Iss, "exp": now.Add(time.Hour).Unix(), "aud": []string{"a", "b"}}), "b", "c")
	assert.NoError(t, err)

	assert.False(t, IsTokenError(assert.AnError))
}
