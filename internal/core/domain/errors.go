package domain

import "errors"

// Every failure the engine can surface maps to one of these sentinels.
// Handlers translate them to HTTP statuses; nothing is retried automatically.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("operation not valid for current status")
	ErrInvalidCode       = errors.New("verification code does not match")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrDuplicate         = errors.New("already exists")
)
