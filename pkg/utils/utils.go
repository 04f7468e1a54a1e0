package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	mathrand "math/rand"
	"strings"
)

const randomCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns a cryptographically secure random string of
// the given length, suitable for tokens, codes, and secrets.
func GenerateRandomString(length int) string {
	if length <= 0 {
		return ""
	}

	result := make([]byte, length)
	for i := range result {
		result[i] = randomCharset[RandomInt(len(randomCharset))]
	}
	return string(result)
}

// RandomInt returns a random integer in [0, max). It uses crypto/rand and
// falls back to math/rand only if the system source fails.
func RandomInt(max int) int {
	if max <= 0 {
		return 0
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return mathrand.Intn(max)
	}
	return int(n.Int64())
}

// MaskEmail masks the local part of an email address for display and
// logging: "john.doe@example.com" becomes "j***e@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return email
	}

	local := email[:at]
	domain := email[at:]

	if len(local) == 2 {
		return local[:1] + "*" + local[1:] + domain
	}
	return local[:1] + strings.Repeat("*", 3) + local[len(local)-1:] + domain
}

// HashEmail returns the SHA-256 hex digest of an email address, for
// privacy-preserving comparison without storing the plain value.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
