// Package token encodes and decodes JSON Web Tokens. Signing and verification
// are delegated to golang-jwt; this package fixes the supported algorithms,
// maps library errors onto a small set of sentinels and extracts expiry times.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spetersoncode/kigen/internal/timefmt"
)

// DefaultAlgorithm is used when no algorithm is given.
const DefaultAlgorithm = "HS256"

var (
	// ErrMalformed is returned for input that is not a three-segment JWT.
	ErrMalformed = errors.New("malformed token")
	// ErrSignature is returned when verification fails.
	ErrSignature = errors.New("signature verification failed")
	// ErrExpired is returned when the exp claim has passed.
	ErrExpired = errors.New("token expired")
	// ErrNotYetActive is returned when the nbf claim is in the future.
	ErrNotYetActive = errors.New("token not yet active")
	// ErrUnsupportedAlgorithm is returned for algorithms outside Algorithms().
	ErrUnsupportedAlgorithm = errors.New("algorithm not supported")
	// ErrKey is returned when the key does not fit the algorithm.
	ErrKey = errors.New("invalid key for algorithm")
)

var supported = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
	"RS256": jwt.SigningMethodRS256,
}

// Algorithms lists the supported signing algorithms.
func Algorithms() []string {
	return []string{"HS256", "HS384", "HS512", "RS256"}
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	m, ok := supported[strings.ToUpper(alg)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	return m, nil
}

func isHMAC(m jwt.SigningMethod) bool {
	_, ok := m.(*jwt.SigningMethodHMAC)
	return ok
}

// hmacKey accepts the key forms a caller is likely to hold for a shared secret.
func hmacKey(key any) ([]byte, error) {
	var secret []byte
	switch k := key.(type) {
	case []byte:
		secret = k
	case string:
		secret = []byte(k)
	default:
		return nil, fmt.Errorf("%w: HMAC needs a string or []byte secret, got %T", ErrKey, key)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrKey)
	}
	if IsAsymmetric(secret) {
		return nil, fmt.Errorf("%w: PEM or JWK key material is not an HMAC secret", ErrKey)
	}
	return secret, nil
}

// Encode signs claims with key. alg defaults to HS256. HMAC algorithms take a
// string or []byte secret; RS256 takes an *rsa.PrivateKey.
func Encode(claims map[string]any, key any, alg string) (string, error) {
	method, err := signingMethod(alg)
	if err != nil {
		return "", err
	}

	var signingKey any
	if isHMAC(method) {
		if signingKey, err = hmacKey(key); err != nil {
			return "", err
		}
	} else {
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return "", fmt.Errorf("%w: %s needs an *rsa.PrivateKey, got %T", ErrKey, method.Alg(), key)
		}
		signingKey = priv
	}

	tok := jwt.NewWithClaims(method, jwt.MapClaims(claims))
	s, err := tok.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

type decodeOptions struct {
	verify bool
	alg    string
	clock  timefmt.Clock
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

// WithoutVerification skips signature, exp and nbf checks.
func WithoutVerification() DecodeOption {
	return func(o *decodeOptions) { o.verify = false }
}

// WithAlgorithm pins the expected algorithm instead of trusting the header.
func WithAlgorithm(alg string) DecodeOption {
	return func(o *decodeOptions) { o.alg = alg }
}

// WithClock sets the clock used for exp and nbf checks.
func WithClock(c timefmt.Clock) DecodeOption {
	return func(o *decodeOptions) { o.clock = c }
}

// Decode verifies token with key and returns its claims. Without
// WithAlgorithm, the header algorithm is accepted only if it belongs to the
// key's family: HMAC for secrets, RS256 for RSA public keys.
func Decode(token string, key any, opts ...DecodeOption) (map[string]any, error) {
	o := decodeOptions{verify: true, clock: timefmt.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: no token supplied", ErrMalformed)
	}

	if !o.verify {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, mapError(err)
		}
		return map[string]any(claims), nil
	}

	valid, verifyKey, err := verification(key, o.alg)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return verifyKey, nil },
		jwt.WithValidMethods(valid),
		jwt.WithTimeFunc(func() time.Time { return o.clock.Now() }),
	)
	if err != nil {
		return nil, mapError(err)
	}
	return map[string]any(claims), nil
}

// verification picks the accepted algorithms and the verification key.
func verification(key any, alg string) ([]string, any, error) {
	if alg != "" {
		method, err := signingMethod(alg)
		if err != nil {
			return nil, nil, err
		}
		if isHMAC(method) {
			k, err := hmacKey(key)
			return []string{method.Alg()}, k, err
		}
		pub, err := rsaPublic(key)
		return []string{method.Alg()}, pub, err
	}

	switch key.(type) {
	case *rsa.PublicKey, *rsa.PrivateKey:
		pub, err := rsaPublic(key)
		return []string{"RS256"}, pub, err
	default:
		k, err := hmacKey(key)
		return []string{"HS256", "HS384", "HS512"}, k, err
	}
}

func rsaPublic(key any) (*rsa.PublicKey, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return k, nil
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: RS256 needs an RSA key, got %T", ErrKey, key)
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetActive, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrSignature, err)
	default:
		return err
	}
}

// Expiry returns the exp claim without verifying the token. ok is false when
// the token carries no exp claim.
func Expiry(token string) (exp int64, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false, mapError(err)
	}
	t, err := claims.GetExpirationTime()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if t == nil {
		return 0, false, nil
	}
	return t.Unix(), true, nil
}

// IssuedAt returns the iat claim without verifying the token.
func IssuedAt(token string) (iat int64, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false, mapError(err)
	}
	t, err := claims.GetIssuedAt()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if t == nil {
		return 0, false, nil
	}
	return t.Unix(), true, nil
}

// Header returns the token's JOSE header without verifying it.
func Header(token string) (map[string]any, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, mapError(err)
	}
	return tok.Header, nil
}
