package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// Store is the persistence port the engine drives. Implementations must make
// every method atomic: a conditional status/progress update and its balance
// mutation either both commit or neither does. Conditional methods return
// domain.ErrInvalidState when the guard no longer holds, which is how a lost
// race between two concurrent operators surfaces.
type Store interface {
	// Transactions.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, status domain.TxStatus, limit int) ([]*domain.Transaction, error)
	AccountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Transaction, error)

	// ApproveTransaction stores the codes and moves pending → in_progress.
	// Guard: status == pending.
	ApproveTransaction(ctx context.Context, id uuid.UUID, codes *domain.VerificationCodes, adminID uuid.UUID, at time.Time) (*domain.Transaction, error)

	// DeclineTransaction moves pending → declined. Guard: status == pending.
	DeclineTransaction(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Transaction, error)

	// AdvanceTransaction applies one verification step: progress moves to
	// step*25, the step's balance effect (if any) is applied using the
	// transaction's own amount, the slot timestamp is recorded, and step 4
	// completes the transaction. Guard: progress == (step-1)*25, compared and
	// set in the same atomic unit as the balance mutation. A debit that the
	// source balance cannot cover fails with domain.ErrInsufficientFunds and
	// changes nothing.
	AdvanceTransaction(ctx context.Context, id uuid.UUID, step int, effect domain.StepEffect, at time.Time) (*domain.Transaction, error)

	// CreateSettledAdjustment inserts an already-completed admin adjustment
	// and applies its balance effect (credit for admin_credit/deposit, debit
	// for withdrawal) in the same atomic unit.
	CreateSettledAdjustment(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)

	// SettleNextDueCredit completes at most one pending scheduled credit whose
	// availableAt has passed, crediting its destination. ErrNotFound when
	// nothing is due.
	SettleNextDueCredit(ctx context.Context, now time.Time) (*domain.Transaction, error)

	// Accounts.
	CreateAccount(ctx context.Context, acc *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ActivateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// Cards.
	CreateCard(ctx context.Context, card *domain.Card) error

	// PayID aliases.
	CreatePayID(ctx context.Context, p *domain.PayID) error
	ResolvePayID(ctx context.Context, alias string) (*domain.PayID, error)

	// Admins.
	CreateAdmin(ctx context.Context, a *domain.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error)
}
