package common

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// shortIDAlphabet excludes look-alike characters so short ids survive being
// read aloud or retyped.
const shortIDAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// NewHighlightID returns a random, globally unique highlight identifier.
func NewHighlightID() string {
	return uuid.NewString()
}

// NewShortID returns a compact random code of ShortIDLength characters.
func NewShortID() string {
	b := GenerateRandByteArray(ShortIDLength)
	out := make([]byte, ShortIDLength)
	for i, v := range b {
		out[i] = shortIDAlphabet[int(v)%len(shortIDAlphabet)]
	}
	return string(out)
}

// MakeRandHexString generates size random bytes and returns them hex encoded,
// so the resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns n bytes from crypto/rand.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
