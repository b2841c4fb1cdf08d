package domain

import (
	"time"

	"github.com/google/uuid"
)

type Region string

const (
	RegionAU Region = "AU"
	RegionUS Region = "US"
	RegionNZ Region = "NZ"
)

// CurrencyFor maps a region to the currency its accounts are denominated in.
func CurrencyFor(r Region) (Currency, bool) {
	switch r {
	case RegionAU:
		return AUD, true
	case RegionUS:
		return USD, true
	case RegionNZ:
		return NZD, true
	}
	return "", false
}

type AccountStatus string

const (
	AccountPendingActivation AccountStatus = "PENDING_ACTIVATION"
	AccountActive            AccountStatus = "ACTIVE"
)

// Account is the balance-holding entity. Balance only moves through the
// store's credit/debit operations and never goes negative after a committed
// operation.
type Account struct {
	ID        uuid.UUID     `json:"id"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	OwnerName string        `json:"owner_name"`
	Number    string        `json:"account_number"`
	Region    Region        `json:"region"`
	Currency  Currency      `json:"currency"`
	Balance   int64         `json:"balance"`
	Status    AccountStatus `json:"status"`

	// Routing identifiers vary per region; only the relevant one is set.
	BSB           string `json:"bsb,omitempty"`            // AU
	RoutingNumber string `json:"routing_number,omitempty"` // US
	BankPrefix    string `json:"bank_prefix,omitempty"`    // NZ
	SwiftCode     string `json:"swift_code,omitempty"`

	// Hash of the one-time access code that activates the account.
	AccessCodeHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// PayID is an alias (email or phone) resolving to a destination account.
type PayID struct {
	ID        uuid.UUID `json:"id"`
	Alias     string    `json:"alias"`
	Kind      string    `json:"kind"` // "email" or "phone"
	AccountID uuid.UUID `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin is a console operator.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
