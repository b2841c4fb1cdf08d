package security

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand is a deterministic RandomSource: draw k yields k repeated n times.
type seqRand struct{ draws int }

func (r *seqRand) Digits(n int) (string, error) {
	r.draws++
	return strings.Repeat(strconv.Itoa(r.draws%10), n), nil
}

func TestCryptoRandDigits(t *testing.T) {
	src := CryptoRand{}
	for _, n := range []int{6, 8, 12} {
		s, err := src.Digits(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
		for _, c := range s {
			assert.True(t, c >= '0' && c <= '9', "non-digit %q in %q", c, s)
		}
	}
}

func TestNewAccessCode(t *testing.T) {
	code, hash, err := NewAccessCode(&seqRand{})
	require.NoError(t, err)
	assert.Len(t, code, AccessCodeLength)
	assert.Equal(t, HashCode(code), hash)
	assert.NotEqual(t, code, hash, "hash must not be the plaintext")
}

func TestNewVerificationCodes(t *testing.T) {
	src := &seqRand{}
	codes, err := NewVerificationCodes(src)
	require.NoError(t, err)

	// Four independent draws, each the full slot length.
	assert.Equal(t, 4, src.draws)
	seen := make(map[string]bool)
	for i, c := range codes {
		assert.Len(t, c, VerificationCodeLength, "slot %d", i+1)
		assert.False(t, seen[c], "slot %d code reused", i+1)
		seen[c] = true
	}
}
