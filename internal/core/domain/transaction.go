package domain

import (
	"time"

	"github.com/google/uuid"
)

type TxType string

const (
	TxTransfer    TxType = "transfer"
	TxBillPay     TxType = "bill_pay"
	TxPayID       TxType = "payid"
	TxAdminCredit TxType = "admin_credit"
	TxWithdrawal  TxType = "withdrawal"
	TxDeposit     TxType = "deposit"
)

type TxStatus string

const (
	StatusPending    TxStatus = "pending"
	StatusInProgress TxStatus = "in_progress"
	StatusCompleted  TxStatus = "completed"
	StatusDeclined   TxStatus = "declined"
)

// StepCount is the number of verification codes gating settlement.
const StepCount = 4

// VerificationCodes holds the four one-time codes minted at approval.
// They are never serialized; the approve response is the single exposure.
type VerificationCodes [StepCount]string

// Transaction is the core entity. Lifecycle:
//
//	pending → declined                          (terminal)
//	pending → in_progress → completed           (terminal)
//
// in_progress carries ProgressPercentage ∈ {0,25,50,75}; 100 collapses into
// completed. Progress is monotonically non-decreasing.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	Type          TxType     `json:"type"`
	FromAccountID *uuid.UUID `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID `json:"to_account_id,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      Currency   `json:"currency"`
	Description   string     `json:"description,omitempty"`
	Reference     string     `json:"reference,omitempty"`

	Status             TxStatus `json:"status"`
	ProgressPercentage int      `json:"progress_percentage"`

	Codes         *VerificationCodes `json:"-"`
	CodeEnteredAt map[int]time.Time  `json:"code_entered_at,omitempty"`

	ApprovedBy *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`

	AvailableAt *time.Time `json:"available_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// ProgressFor is the progress value reached after verifying step n.
func ProgressFor(step int) int { return step * 25 }

// ValidStep reports whether n names a verification slot.
func ValidStep(n int) bool { return n >= 1 && n <= StepCount }

// ImpliesDebit reports whether creating this transaction requires the source
// account to cover the amount. Admin credits and deposits bring money in from
// outside, so they never do.
func (t *Transaction) ImpliesDebit() bool {
	switch t.Type {
	case TxTransfer, TxBillPay, TxPayID, TxWithdrawal:
		return t.FromAccountID != nil
	}
	return false
}

// CanApprove gates approval: only a pending transaction may be approved.
func (t *Transaction) CanApprove() error {
	if t.Status != StatusPending {
		return ErrInvalidState
	}
	return nil
}

// CanDecline gates decline the same way. Declining an approved transaction
// would strand a half-settled transfer, so pending is required.
func (t *Transaction) CanDecline() error {
	if t.Status != StatusPending {
		return ErrInvalidState
	}
	return nil
}

// ExpectedStep returns the next verification slot (1..4), or 0 when the
// transaction is not awaiting one.
func (t *Transaction) ExpectedStep() int {
	if t.Status != StatusInProgress || t.ProgressPercentage >= 100 {
		return 0
	}
	return t.ProgressPercentage/25 + 1
}

// CodeMatches compares the submitted code against slot n by exact string
// equality. False when codes were never minted.
func (t *Transaction) CodeMatches(n int, submitted string) bool {
	if t.Codes == nil || !ValidStep(n) {
		return false
	}
	return t.Codes[n-1] == submitted
}

// StepEffect is the balance mutation a verification step carries.
// Slot 2 moves funds out of the sender (money leaves), slot 4 moves funds
// into the recipient (money arrives); slots 1 and 3 are checkpoints only.
type StepEffect struct {
	DebitFrom *uuid.UUID
	CreditTo  *uuid.UUID
}

// EffectOf returns the balance effect of verifying slot n.
func (t *Transaction) EffectOf(n int) StepEffect {
	switch n {
	case 2:
		return StepEffect{DebitFrom: t.FromAccountID}
	case 4:
		return StepEffect{CreditTo: t.ToAccountID}
	}
	return StepEffect{}
}

// Terminal reports whether no further transition is possible.
func (t *Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusDeclined
}
