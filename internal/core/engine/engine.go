// Package engine orchestrates the transaction lifecycle: creation, admin
// approval, sequential verification-code settlement, and direct admin ledger
// adjustments. All state lives in the Store; the engine holds no locks and
// keeps nothing in memory between calls.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/security"
)

type Engine struct {
	store Store
	rand  security.RandomSource
	now   func() time.Time
}

func New(store Store, rand security.RandomSource) *Engine {
	return &Engine{store: store, rand: rand, now: time.Now}
}

// CreateParams describes a user-initiated transaction.
type CreateParams struct {
	Type          domain.TxType
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Amount        int64
	Description   string
	Reference     string
}

// Create inserts a pending transaction. The balance-sufficiency check for
// debit-implying types happens here and only here; there is no hold, so the
// balance can change before approval.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*domain.Transaction, error) {
	if p.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var currency domain.Currency
	if p.FromAccountID != nil {
		from, err := e.store.GetAccount(ctx, *p.FromAccountID)
		if err != nil {
			return nil, err
		}
		currency = from.Currency
		if from.Balance < p.Amount && isDebitType(p.Type) {
			return nil, fmt.Errorf("%w: balance %s cannot cover %s",
				domain.ErrInsufficientFunds, domain.FormatAmount(from.Balance), domain.FormatAmount(p.Amount))
		}
	}
	if p.ToAccountID != nil {
		to, err := e.store.GetAccount(ctx, *p.ToAccountID)
		if err != nil {
			return nil, err
		}
		if currency == "" {
			currency = to.Currency
		}
	}

	tx := &domain.Transaction{
		ID:            uuid.New(),
		Type:          p.Type,
		FromAccountID: p.FromAccountID,
		ToAccountID:   p.ToAccountID,
		Amount:        p.Amount,
		Currency:      currency,
		Description:   p.Description,
		Reference:     p.Reference,
		Status:        domain.StatusPending,
		CreatedAt:     e.now(),
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	slog.Info("transaction created", "id", tx.ID, "type", tx.Type, "amount", domain.FormatAmount(tx.Amount))
	return tx, nil
}

// Approve mints the four verification codes and moves the transaction to
// in_progress. The returned codes are the only plaintext exposure; after this
// call they exist solely for equality comparison.
func (e *Engine) Approve(ctx context.Context, id, adminID uuid.UUID) (*domain.Transaction, *domain.VerificationCodes, error) {
	tx, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.CanApprove(); err != nil {
		return nil, nil, fmt.Errorf("approve: %w", err)
	}

	codes, err := security.NewVerificationCodes(e.rand)
	if err != nil {
		return nil, nil, fmt.Errorf("minting verification codes: %w", err)
	}

	updated, err := e.store.ApproveTransaction(ctx, id, codes, adminID, e.now())
	if err != nil {
		return nil, nil, err
	}

	slog.Info("transaction approved", "id", id, "admin", adminID)
	return updated, codes, nil
}

// Decline terminates a pending transaction. No balance is touched.
func (e *Engine) Decline(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.CanDecline(); err != nil {
		return nil, fmt.Errorf("decline: %w", err)
	}

	updated, err := e.store.DeclineTransaction(ctx, id, e.now())
	if err != nil {
		return nil, err
	}

	slog.Info("transaction declined", "id", id)
	return updated, nil
}

// VerifyResult is the outcome of a code submission.
type VerifyResult struct {
	Transaction *domain.Transaction
	Message     string
	// NoOp is set when a matching code for an already-consumed slot was
	// resubmitted; nothing changed.
	NoOp bool
}

// VerifyCode validates the submitted code for the given slot and, when it is
// the next expected step, advances settlement. Slot 2 debits the sender, slot
// 4 credits the recipient and completes the transaction. The progress guard
// and the balance mutation commit as one unit, so a slot's effect can never
// apply twice.
func (e *Engine) VerifyCode(ctx context.Context, id uuid.UUID, codeNumber int, submitted string) (*VerifyResult, error) {
	if !domain.ValidStep(codeNumber) {
		return nil, fmt.Errorf("%w: code number must be 1-4", domain.ErrInvalidCode)
	}

	tx, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	// Completed stays verifiable so a retried final submission is a no-op
	// instead of an error; pending and declined have no codes to check.
	if tx.Status != domain.StatusInProgress && tx.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("verify: transaction is %s: %w", tx.Status, domain.ErrInvalidState)
	}
	if !tx.CodeMatches(codeNumber, submitted) {
		return nil, domain.ErrInvalidCode
	}

	// Re-submitting a consumed slot's code is harmless: match, but change nothing.
	if tx.ProgressPercentage >= domain.ProgressFor(codeNumber) {
		return &VerifyResult{
			Transaction: tx,
			Message:     fmt.Sprintf("code %d already verified", codeNumber),
			NoOp:        true,
		}, nil
	}

	// Strict sequencing: skipping a step would skip the debit or double-apply
	// the credit.
	if tx.ExpectedStep() != codeNumber {
		return nil, fmt.Errorf("verify: expected code %d next: %w", tx.ExpectedStep(), domain.ErrInvalidState)
	}

	updated, err := e.store.AdvanceTransaction(ctx, id, codeNumber, tx.EffectOf(codeNumber), e.now())
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("code %d verified, progress %d%%", codeNumber, updated.ProgressPercentage)
	if updated.Status == domain.StatusCompleted {
		msg = "code 4 verified, transaction completed"
	}
	slog.Info("verification step applied", "id", id, "step", codeNumber, "progress", updated.ProgressPercentage)
	return &VerifyResult{Transaction: updated, Message: msg}, nil
}

// AdminCreditInstant credits an account immediately, recording a completed
// admin_credit transaction. Bypasses the code workflow.
func (e *Engine) AdminCreditInstant(ctx context.Context, accountID uuid.UUID, amount int64, adminID uuid.UUID) (*domain.Transaction, error) {
	return e.settleAdjustment(ctx, domain.TxAdminCredit, accountID, amount, adminID)
}

// AdminDebitInstant debits an account immediately, recording a completed
// withdrawal transaction. Fails with ErrInsufficientFunds if the balance
// cannot cover it.
func (e *Engine) AdminDebitInstant(ctx context.Context, accountID uuid.UUID, amount int64, adminID uuid.UUID) (*domain.Transaction, error) {
	return e.settleAdjustment(ctx, domain.TxWithdrawal, accountID, amount, adminID)
}

func (e *Engine) settleAdjustment(ctx context.Context, typ domain.TxType, accountID uuid.UUID, amount int64, adminID uuid.UUID) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	acc, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	tx := &domain.Transaction{
		ID:                 uuid.New(),
		Type:               typ,
		Amount:             amount,
		Currency:           acc.Currency,
		Status:             domain.StatusCompleted,
		ProgressPercentage: 100,
		CreatedBy:          &adminID,
		AvailableAt:        &now,
		CreatedAt:          now,
		ProcessedAt:        &now,
	}
	if typ == domain.TxWithdrawal {
		tx.FromAccountID = &accountID
		tx.Description = "Admin debit"
	} else {
		tx.ToAccountID = &accountID
		tx.Description = "Admin credit"
	}

	settled, err := e.store.CreateSettledAdjustment(ctx, tx)
	if err != nil {
		return nil, err
	}
	slog.Info("admin adjustment settled", "id", settled.ID, "type", typ, "account", accountID, "admin", adminID)
	return settled, nil
}

// AdminCreditScheduled records a credit that becomes available at a future
// time. It stays pending, with no balance effect, until the settlement sweep
// picks it up at availableAt.
func (e *Engine) AdminCreditScheduled(ctx context.Context, accountID uuid.UUID, amount int64, adminID uuid.UUID, availableAt time.Time) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	acc, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TxAdminCredit,
		ToAccountID: &accountID,
		Amount:      amount,
		Currency:    acc.Currency,
		Description: "Scheduled admin credit",
		Status:      domain.StatusPending,
		CreatedBy:   &adminID,
		AvailableAt: &availableAt,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	slog.Info("scheduled credit recorded", "id", tx.ID, "account", accountID, "available_at", availableAt)
	return tx, nil
}

func isDebitType(t domain.TxType) bool {
	switch t {
	case domain.TxTransfer, domain.TxBillPay, domain.TxPayID, domain.TxWithdrawal:
		return true
	}
	return false
}
