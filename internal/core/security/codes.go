package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/wattlebank/wattle/internal/core/domain"
)

const (
	// AccessCodeLength is the one-time code that activates a new account.
	AccessCodeLength = 12
	// VerificationCodeLength is the per-slot transaction code length.
	VerificationCodeLength = 8
)

// RandomSource produces random digit strings. The engine takes it as a
// dependency so tests can swap in a deterministic source.
type RandomSource interface {
	Digits(n int) (string, error)
}

// CryptoRand is the production RandomSource backed by crypto/rand.
type CryptoRand struct{}

func (CryptoRand) Digits(n int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	return string(b), nil
}

// NewAccessCode mints an account activation code and the SHA256 hash to store.
// The plaintext is shown to the customer once; only the hash persists.
func NewAccessCode(src RandomSource) (code, codeHash string, err error) {
	code, err = src.Digits(AccessCodeLength)
	if err != nil {
		return "", "", err
	}
	return code, HashCode(code), nil
}

// HashCode is the stored form of an access code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// NewVerificationCodes mints the four independent one-time codes for an
// approved transaction. Each comes from its own draw of the random source.
func NewVerificationCodes(src RandomSource) (*domain.VerificationCodes, error) {
	var codes domain.VerificationCodes
	for i := range codes {
		c, err := src.Digits(VerificationCodeLength)
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return &codes, nil
}
