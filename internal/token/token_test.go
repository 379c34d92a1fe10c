package token

import (
	"crypto/rsa"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spetersoncode/kigen/internal/timefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNow    int64 = 1_700_000_000
	testSecret       = "xxx"
)

var (
	rsaOnce sync.Once
	rsaPair *KeyPair
)

// testKeyPair shares one generated key across tests.
func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	rsaOnce.Do(func() {
		kp, err := GenerateRSAKey(2048, "test-key")
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}
		rsaPair = kp
	})
	return rsaPair
}

func atNow() DecodeOption {
	return WithClock(timefmt.FixedUnix(testNow))
}

func TestEncodeDecode_HMAC(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512", ""} {
		t.Run("alg="+alg, func(t *testing.T) {
			tok, err := Encode(map[string]any{"foo": "bar", "exp": testNow + 60}, testSecret, alg)
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(tok, "."))

			claims, err := Decode(tok, testSecret, atNow())
			require.NoError(t, err)
			assert.Equal(t, "bar", claims["foo"])
			assert.EqualValues(t, testNow+60, claims["exp"])
		})
	}
}

func TestEncode_HeaderAlgorithm(t *testing.T) {
	tok, err := Encode(map[string]any{"foo": "bar"}, []byte(testSecret), "hs512")
	require.NoError(t, err)

	h, err := Header(tok)
	require.NoError(t, err)
	assert.Equal(t, "HS512", h["alg"])
	assert.Equal(t, "JWT", h["typ"])
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(map[string]any{}, testSecret, "none")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Encode(map[string]any{}, "", "HS256")
	assert.ErrorIs(t, err, ErrKey)

	_, err = Encode(map[string]any{}, 42, "HS256")
	assert.ErrorIs(t, err, ErrKey)

	_, err = Encode(map[string]any{}, testSecret, "RS256")
	assert.ErrorIs(t, err, ErrKey)
}

func TestDecode_Failures(t *testing.T) {
	valid, err := Encode(map[string]any{"foo": "bar"}, testSecret, "HS256")
	require.NoError(t, err)

	expired, err := Encode(map[string]any{"exp": testNow - 1}, testSecret, "HS256")
	require.NoError(t, err)

	future, err := Encode(map[string]any{"nbf": testNow + 100}, testSecret, "HS256")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		key   any
		opts  []DecodeOption
		want  error
	}{
		{"empty", "", testSecret, nil, ErrMalformed},
		{"two segments", "abc.def", testSecret, nil, ErrMalformed},
		{"garbage", "a.b.c", testSecret, nil, ErrMalformed},
		{"wrong secret", valid, "yyy", nil, ErrSignature},
		{"tampered payload", tamper(valid), testSecret, nil, ErrSignature},
		{"pinned algorithm mismatch", valid, testSecret, []DecodeOption{WithAlgorithm("HS512")}, ErrSignature},
		{"expired", expired, testSecret, nil, ErrExpired},
		{"not yet active", future, testSecret, nil, ErrNotYetActive},
		{"unsupported pinned algorithm", valid, testSecret, []DecodeOption{WithAlgorithm("ES256")}, ErrUnsupportedAlgorithm},
		{"bad key type", valid, 3.14, nil, ErrKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]DecodeOption{atNow()}, tt.opts...)
			_, err := Decode(tt.token, tt.key, opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// tamper swaps the payload segment for a different, well-formed one.
func tamper(tok string) string {
	parts := strings.Split(tok, ".")
	parts[1] = "eyJmb28iOiJiYXoifQ" // {"foo":"baz"}
	return strings.Join(parts, ".")
}

func TestDecode_WithoutVerification(t *testing.T) {
	tok, err := Encode(map[string]any{"foo": "bar", "exp": testNow - 1000}, testSecret, "HS256")
	require.NoError(t, err)

	// Wrong key and an expired exp are both ignored.
	claims, err := Decode(tok, "wrong", WithoutVerification(), atNow())
	require.NoError(t, err)
	assert.Equal(t, "bar", claims["foo"])

	claims, err = Decode(tamper(tok), nil, WithoutVerification())
	require.NoError(t, err)
	assert.Equal(t, "baz", claims["foo"])
}

func TestDecode_ExpiryBoundary(t *testing.T) {
	tok, err := Encode(map[string]any{"exp": testNow + 1}, testSecret, "HS256")
	require.NoError(t, err)

	_, err = Decode(tok, testSecret, atNow())
	assert.NoError(t, err)

	_, err = Decode(tok, testSecret, WithClock(timefmt.FixedUnix(testNow+2)))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestEncodeDecode_RS256(t *testing.T) {
	kp := testKeyPair(t)

	tok, err := Encode(map[string]any{"sub": "user-1"}, kp.Private, "RS256")
	require.NoError(t, err)

	claims, err := Decode(tok, &kp.Private.PublicKey, atNow())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])

	// A private key may be used to verify.
	_, err = Decode(tok, kp.Private, atNow())
	require.NoError(t, err)

	// An HMAC secret must not verify an RS256 token.
	_, err = Decode(tok, testSecret, atNow())
	assert.ErrorIs(t, err, ErrSignature)

	other, err := GenerateRSAKey(2048, "")
	require.NoError(t, err)
	_, err = Decode(tok, &other.Private.PublicKey, atNow())
	assert.ErrorIs(t, err, ErrSignature)
}

func TestLoadKey_PEM(t *testing.T) {
	kp := testKeyPair(t)

	privPEM, err := kp.PrivatePEM()
	require.NoError(t, err)
	pubPEM, err := kp.PublicPEM()
	require.NoError(t, err)

	priv, err := LoadKey("RS256", privPEM, true)
	require.NoError(t, err)
	require.IsType(t, &rsa.PrivateKey{}, priv)
	assert.True(t, kp.Private.Equal(priv))

	pub, err := LoadKey("RS256", pubPEM, false)
	require.NoError(t, err)
	assert.True(t, kp.Private.PublicKey.Equal(pub))

	pub, err = LoadKey("RS256", privPEM, false)
	require.NoError(t, err)
	assert.True(t, kp.Private.PublicKey.Equal(pub))

	_, err = LoadKey("RS256", pubPEM, true)
	assert.ErrorIs(t, err, ErrKey)

	_, err = LoadKey("RS256", []byte("not a key"), false)
	assert.ErrorIs(t, err, ErrKey)
}

func TestLoadKey_JWK(t *testing.T) {
	kp := testKeyPair(t)

	setJSON, err := kp.PublicJWKSet()
	require.NoError(t, err)

	var set struct {
		Keys []json.RawMessage `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(setJSON, &set))
	require.Len(t, set.Keys, 1)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(set.Keys[0], &fields))
	assert.Equal(t, "test-key", fields["kid"])
	assert.Equal(t, "RS256", fields["alg"])
	assert.Equal(t, "RSA", fields["kty"])
	assert.NotContains(t, fields, "d")

	pub, err := LoadKey("RS256", set.Keys[0], false)
	require.NoError(t, err)
	assert.True(t, kp.Private.PublicKey.Equal(pub))

	pub, err = LoadKey("RS256", setJSON, false)
	require.NoError(t, err, "a whole set loads its first key")
	assert.True(t, kp.Private.PublicKey.Equal(pub))

	_, err = LoadKey("RS256", set.Keys[0], true)
	assert.ErrorIs(t, err, ErrKey)

	_, err = LoadKey("RS256", []byte(`{"kty":"bogus"}`), false)
	assert.ErrorIs(t, err, ErrKey)
}

func TestLoadKey_HMAC(t *testing.T) {
	k, err := LoadKey("HS256", []byte("secret"), true)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), k)

	_, err = LoadKey("HS256", nil, false)
	assert.ErrorIs(t, err, ErrKey)

	_, err = LoadKey("PS256", []byte("secret"), false)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestHMAC_RejectsAsymmetricMaterial(t *testing.T) {
	kp := testKeyPair(t)
	pubPEM, err := kp.PublicPEM()
	require.NoError(t, err)
	jwks, err := kp.PublicJWKSet()
	require.NoError(t, err)

	for name, material := range map[string][]byte{"pem": pubPEM, "jwk set": jwks} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, IsAsymmetric(material))
			assert.Equal(t, "RS256", Family(material, "HS256"))

			_, err := LoadKey("HS256", material, false)
			assert.ErrorIs(t, err, ErrKey)

			_, err = Encode(map[string]any{"sub": "admin"}, material, "HS256")
			assert.ErrorIs(t, err, ErrKey)
		})
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"}).SignedString(pubPEM)
	require.NoError(t, err)
	_, err = Decode(forged, pubPEM, atNow())
	assert.ErrorIs(t, err, ErrKey)
	_, err = Decode(forged, pubPEM, atNow(), WithAlgorithm("HS256"))
	assert.ErrorIs(t, err, ErrKey)

	pub, err := LoadKey(Family(pubPEM, "HS256"), pubPEM, false)
	require.NoError(t, err)
	_, err = Decode(forged, pub, atNow())
	assert.ErrorIs(t, err, ErrSignature)

	assert.False(t, IsAsymmetric([]byte("secret")))
	assert.False(t, IsAsymmetric([]byte(`{not json`)))
	assert.Equal(t, "HS384", Family([]byte("secret"), "HS384"))
}

func TestExpiryAndIssuedAt(t *testing.T) {
	tok, err := Encode(map[string]any{"exp": testNow + 90, "iat": testNow}, testSecret, "HS256")
	require.NoError(t, err)

	exp, ok, err := Expiry(tok)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testNow+90, exp)

	iat, ok, err := IssuedAt(tok)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testNow, iat)

	noExp, err := Encode(map[string]any{"foo": "bar"}, testSecret, "HS256")
	require.NoError(t, err)
	_, ok, err = Expiry(noExp)
	require.NoError(t, err)
	assert.False(t, ok)

	badExp, err := Encode(map[string]any{"exp": "tomorrow"}, testSecret, "HS256")
	require.NoError(t, err)
	_, _, err = Expiry(badExp)
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = Expiry("not-a-token")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAlgorithms(t *testing.T) {
	for _, alg := range Algorithms() {
		_, err := signingMethod(alg)
		assert.NoError(t, err, alg)
	}
}
