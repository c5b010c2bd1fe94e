package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"math/big"
	"strings"
)

// NewVerificationCode returns a random numeric code of the given length.
// Leading zeros are allowed; every digit is drawn independently.
func NewVerificationCode(digits int) (string, error) {
	var b strings.Builder
	b.Grow(digits)

	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HashCode returns the SHA-256 digest of a verification code. Plaintext codes
// are never stored.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// CodeEqual compares a provided code against a stored hash in constant time.
func CodeEqual(hash [32]byte, code string) bool {
	provided := HashCode(code)
	return subtle.ConstantTimeCompare(hash[:], provided[:]) == 1
}
