package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Session codes: uppercase alphanumeric, as printed on share links. The full
// alphabet is kept (not the confusable-free one) for parity with codes users
// already have.
const (
	SessionCodeLength   = 6
	sessionCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateSessionCode returns a random 6-character uppercase alphanumeric
// code. Uniqueness among active sessions is the caller's problem.
func GenerateSessionCode() (string, error) {
	bytes := make([]byte, SessionCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	code := make([]byte, SessionCodeLength)
	for i, b := range bytes {
		code[i] = sessionCodeAlphabet[int(b)%len(sessionCodeAlphabet)]
	}
	return string(code), nil
}

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
