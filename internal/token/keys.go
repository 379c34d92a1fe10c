package token

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// LoadKey turns key material into the form Encode and Decode expect for alg.
// HMAC secrets are returned as []byte. RS256 material may be PEM or a JWK;
// private selects the signing half. PEM or JWK material is never accepted as
// an HMAC secret, so a published public key cannot be used to sign tokens.
func LoadKey(alg string, material []byte, private bool) (any, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}
	if isHMAC(method) {
		if IsAsymmetric(material) {
			return nil, fmt.Errorf("%w: %s needs a shared secret, got PEM or JWK key material", ErrKey, method.Alg())
		}
		return hmacKey(material)
	}

	trimmed := bytes.TrimSpace(material)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return rsaFromJWK(trimmed, private)
	}
	return rsaFromPEM(trimmed, private)
}

// IsAsymmetric reports whether material is a PEM block or a JWK (set) rather
// than a shared secret.
func IsAsymmetric(material []byte) bool {
	trimmed := bytes.TrimSpace(material)
	if bytes.Contains(trimmed, []byte("-----BEGIN ")) {
		if block, _ := pem.Decode(trimmed); block != nil {
			return true
		}
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if _, err := jwk.Parse(trimmed); err == nil {
			return true
		}
	}
	return false
}

// Family returns the algorithm to load material with when none is given:
// RS256 for PEM or JWK material, otherwise fallback.
func Family(material []byte, fallback string) string {
	if IsAsymmetric(material) {
		return "RS256"
	}
	return fallback
}

// rsaFromJWK accepts a single JWK or a JWK set, using the set's first key.
func rsaFromJWK(data []byte, private bool) (any, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse JWK: %w", ErrKey, err)
	}
	key, ok := set.Key(0)
	if !ok {
		return nil, fmt.Errorf("%w: JWK set is empty", ErrKey)
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to read JWK: %w", ErrKey, err)
	}

	switch k := raw.(type) {
	case *rsa.PrivateKey:
		if private {
			return k, nil
		}
		return &k.PublicKey, nil
	case *rsa.PublicKey:
		if private {
			return nil, fmt.Errorf("%w: JWK holds only a public key", ErrKey)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("%w: JWK is %T, not RSA", ErrKey, raw)
	}
}

func rsaFromPEM(data []byte, private bool) (any, error) {
	if private {
		k, err := jwt.ParseRSAPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKey, err)
		}
		return k, nil
	}

	if pub, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return pub, nil
	}
	// Verifying with a private key file is allowed.
	k, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: not an RSA public or private key PEM", ErrKey)
	}
	return &k.PublicKey, nil
}

// KeyPair is a freshly generated RS256 key pair.
type KeyPair struct {
	Private *rsa.PrivateKey
	KeyID   string
}

// GenerateRSAKey creates an RSA key pair for RS256.
func GenerateRSAKey(bits int, keyID string) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &KeyPair{Private: priv, KeyID: keyID}, nil
}

// PrivatePEM encodes the private key as PKCS#8 PEM.
func (kp *KeyPair) PrivatePEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PublicPEM encodes the public key as PKIX PEM.
func (kp *KeyPair) PublicPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&kp.Private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// PublicJWKSet returns the public key as an indented JWK set.
func (kp *KeyPair) PublicJWKSet() ([]byte, error) {
	key, err := jwk.FromRaw(&kp.Private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}

	if kp.KeyID != "" {
		_ = key.Set(jwk.KeyIDKey, kp.KeyID)
	}
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = key.Set(jwk.KeyUsageKey, "sig")

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to build JWK set: %w", err)
	}
	return json.MarshalIndent(set, "", "  ")
}
