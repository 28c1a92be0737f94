package pkce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier_Length(t *testing.T) {
	v, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, v, 43)
	assert.True(t, ValidVerifier(v))

	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, v, other)
}

func TestGenerateCodeChallenge_KnownVector(t *testing.T) {
	// RFC 7636 Appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", GenerateCodeChallenge(verifier))
}

func TestVerifyChallenge_RoundTrip(t *testing.T) {
	for i := 0; i < 20; i++ {
		v, err := GenerateCodeVerifier()
		require.NoError(t, err)

		ok, err := VerifyChallenge(v, GenerateCodeChallenge(v), MethodS256)
		require.NoError(t, err)
		assert.True(t, ok)

		// mutar un byte invierte el resultado
		b := []byte(v)
		if b[0] == 'A' {
			b[0] = 'B'
		} else {
			b[0] = 'A'
		}
		ok, err = VerifyChallenge(string(b), GenerateCodeChallenge(v), MethodS256)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerifyChallenge_UnsupportedMethod(t *testing.T) {
	v, _ := GenerateCodeVerifier()
	for _, m := range []string{"plain", "s256", ""} {
		_, err := VerifyChallenge(v, v, m)
		assert.ErrorIs(t, err, ErrUnsupportedMethod, "method %q", m)
	}
}

func TestGenerateState(t *testing.T) {
	s, err := GenerateState()
	require.NoError(t, err)
	assert.Len(t, s, 22)
}

func TestValidVerifier(t *testing.T) {
	assert.False(t, ValidVerifier("short"))
	assert.False(t, ValidVerifier(string(make([]byte, 129))))
	assert.False(t, ValidVerifier("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjX!"))
	assert.True(t, ValidVerifier("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}
