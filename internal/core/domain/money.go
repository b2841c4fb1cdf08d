package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	AUD Currency = "AUD"
	USD Currency = "USD"
	NZD Currency = "NZD"
)

// Amounts are stored in minor units (cents). 50 AUD is 5000.
// API bodies carry decimal strings ("50.00"); decimal does the parsing so
// binary floating point never touches an amount.

// ParseAmount converts a decimal string into minor units.
// Rejects zero, negatives, and anything finer than 2 decimal places.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than 2 decimal places", ErrInvalidAmount, s)
	}
	if !cents.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return cents.IntPart(), nil
}

// FormatAmount renders minor units back as a 2-decimal string.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Money pairs an amount in minor units with its currency.
type Money struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Add adds two Money values of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract subtracts, refusing to go negative.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot subtract %s from %s", other.Currency, m.Currency)
	}
	if m.Amount < other.Amount {
		return Money{}, ErrInsufficientFunds
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

func (m Money) String() string {
	return FormatAmount(m.Amount) + " " + string(m.Currency)
}
