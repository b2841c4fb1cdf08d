package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCard(t *testing.T) {
	cases := []struct {
		number string
		valid  bool
		brand  CardType
	}{
		{"4111111111111111", true, Visa},
		{"4111 1111 1111 1111", true, Visa},
		{"5500-0055-5555-5559", true, Mastercard},
		{"378282246310005", false, Unknown}, // Amex passes Luhn but is not issued
		{"4111111111111112", false, Unknown},
		{"notacard", false, Unknown},
		{"", false, Unknown},
	}
	for _, tc := range cases {
		valid, brand := ValidateCard(tc.number)
		assert.Equal(t, tc.valid, valid, "number %q", tc.number)
		assert.Equal(t, tc.brand, brand, "number %q", tc.number)
	}
}

func TestCompleteCardNumber(t *testing.T) {
	// 4111111111111111 is the canonical Luhn-valid Visa test number.
	assert.Equal(t, "4111111111111111", CompleteCardNumber("411111111111111"))

	for _, partial := range []string{"400000000000000", "412345678901234", "451111111111111"} {
		full := CompleteCardNumber(partial)
		assert.Len(t, full, 16)
		valid, brand := ValidateCard(full)
		assert.True(t, valid, "generated %q is not Luhn-valid", full)
		assert.Equal(t, Visa, brand)
	}
}
