package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"50.00", 5000, false},
		{"0.01", 1, false},
		{"1234.56", 123456, false},
		{"100", 10000, false},
		{"0.5", 50, false},
		{"0", 0, true},
		{"0.00", 0, true},
		{"-5.00", 0, true},
		{"1.005", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

// Values like 0.1+0.2 must not drift: parsing goes through decimal, never
// through float64.
func TestParseAmountNoFloatDrift(t *testing.T) {
	got, err := ParseAmount("0.29")
	require.NoError(t, err)
	assert.Equal(t, int64(29), got)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "50.00", FormatAmount(5000))
	assert.Equal(t, "0.01", FormatAmount(1))
	assert.Equal(t, "1234.56", FormatAmount(123456))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestMoneyAdd(t *testing.T) {
	sum, err := NewMoney(1000, AUD).Add(NewMoney(250, AUD))
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Amount)

	_, err = NewMoney(1000, AUD).Add(NewMoney(250, USD))
	assert.Error(t, err)
}

func TestMoneySubtract(t *testing.T) {
	diff, err := NewMoney(1000, NZD).Subtract(NewMoney(250, NZD))
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Amount)

	_, err = NewMoney(100, NZD).Subtract(NewMoney(250, NZD))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}
