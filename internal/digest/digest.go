// Package digest exposes the hashing and randomness primitives kigen's
// commands need: message digests, HMACs and random bytes with text encodings.
package digest

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	sha256 "github.com/minio/sha256-simd"
)

// ErrUnsupported is returned for an unknown hash algorithm name.
var ErrUnsupported = errors.New("unsupported hash algorithm")

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(alg string) (func() hash.Hash, error) {
	name := strings.ToLower(strings.ReplaceAll(alg, "-", ""))
	fn, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, alg)
	}
	return fn, nil
}

// Hash returns the digest of data. Names are case-insensitive and may be
// written with a dash ("SHA-256").
func Hash(alg string, data []byte) ([]byte, error) {
	fn, err := lookup(alg)
	if err != nil {
		return nil, err
	}
	h := fn()
	h.Write(data)
	return h.Sum(nil), nil
}

// SHA256 is the common case of Hash.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMAC returns the keyed digest of data.
func HMAC(alg string, key, data []byte) ([]byte, error) {
	fn, err := lookup(alg)
	if err != nil {
		return nil, err
	}
	m := hmac.New(fn, key)
	m.Write(data)
	return m.Sum(nil), nil
}

// Equal compares two MACs in constant time.
func Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// Hex encodes b as lowercase hex.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// Base64URL encodes b as unpadded base64url, the encoding JWTs use.
func Base64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Encode renders b in the named encoding: "hex" (default), "base64" or "base64url".
func Encode(b []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", "hex":
		return Hex(b), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(b), nil
	case "base64url":
		return Base64URL(b), nil
	default:
		return "", fmt.Errorf("unknown encoding %q (use hex, base64 or base64url)", encoding)
	}
}
