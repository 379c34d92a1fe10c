// Package idgen generates short random identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Alphabet is the character set used by Generate.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is used when Generate is asked for a non-positive length.
const DefaultLength = 8

// Generate returns a random string of length characters from Alphabet.
func Generate(length int) (string, error) {
	return generate(rand.Reader, length)
}

// generate rejects bytes at or above the largest multiple of len(Alphabet) so
// every character is equally likely.
func generate(r io.Reader, length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	const limit = 256 - 256%len(Alphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// UUID returns a random (version 4) UUID string.
func UUID() string {
	return uuid.NewString()
}
