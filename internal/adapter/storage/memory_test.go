package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattlebank/wattle/internal/core/domain"
)

func seedAccount(t *testing.T, s *MemoryStore, balance int64) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		OwnerName: "Owner",
		Number:    uuid.New().String()[:10],
		Region:    domain.RegionNZ,
		Currency:  domain.NZD,
		Balance:   balance,
		Status:    domain.AccountActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acc))
	return acc
}

func seedInProgress(t *testing.T, s *MemoryStore, from, to *uuid.UUID, amount int64, progress int) *domain.Transaction {
	t.Helper()
	ctx := context.Background()
	tx := &domain.Transaction{
		ID:            uuid.New(),
		Type:          domain.TxTransfer,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Currency:      domain.NZD,
		Status:        domain.StatusPending,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))
	codes := domain.VerificationCodes{"11111111", "22222222", "33333333", "44444444"}
	_, err := s.ApproveTransaction(ctx, tx.ID, &codes, uuid.New(), time.Now())
	require.NoError(t, err)
	for step := 1; domain.ProgressFor(step) <= progress; step++ {
		_, err := s.AdvanceTransaction(ctx, tx.ID, step, domain.StepEffect{}, time.Now())
		require.NoError(t, err)
	}
	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, progress, got.ProgressPercentage)
	return got
}

func TestAdvanceGuardsProgress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 10000)
	b := seedAccount(t, s, 0)
	tx := seedInProgress(t, s, &a.ID, &b.ID, 5000, 25)

	// Wrong expected progress: CAS fails, nothing changes.
	_, err := s.AdvanceTransaction(ctx, tx.ID, 1, domain.StepEffect{}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = s.AdvanceTransaction(ctx, tx.ID, 3, domain.StepEffect{}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.ProgressPercentage)
}

func TestAdvanceDebitAtomicWithProgress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 1000)
	b := seedAccount(t, s, 0)
	tx := seedInProgress(t, s, &a.ID, &b.ID, 5000, 25)

	// Debit cannot cover: neither progress nor balance may move.
	_, err := s.AdvanceTransaction(ctx, tx.ID, 2, domain.StepEffect{DebitFrom: &a.ID}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.ProgressPercentage)
	acc, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acc.Balance)
}

// Two administrators race the same slot: exactly one advance wins and the
// debit applies once.
func TestConcurrentSameSlotAdvance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 10000)
	b := seedAccount(t, s, 0)
	tx := seedInProgress(t, s, &a.ID, &b.ID, 5000, 25)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AdvanceTransaction(ctx, tx.ID, 2, domain.StepEffect{DebitFrom: &a.ID}, time.Now())
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, domain.ErrInvalidState):
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	acc, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acc.Balance, "debit must apply exactly once")
}

func TestCompletionStep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 10000)
	b := seedAccount(t, s, 0)
	tx := seedInProgress(t, s, &a.ID, &b.ID, 5000, 75)

	at := time.Now()
	got, err := s.AdvanceTransaction(ctx, tx.ID, 4, domain.StepEffect{CreditTo: &b.ID}, at)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercentage)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, at, *got.ProcessedAt)
	assert.Equal(t, at, got.CodeEnteredAt[4])

	acc, err := s.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acc.Balance)

	// Terminal: no further advance.
	_, err = s.AdvanceTransaction(ctx, tx.ID, 4, domain.StepEffect{CreditTo: &b.ID}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApproveAndDeclineGuards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tx := &domain.Transaction{
		ID:        uuid.New(),
		Type:      domain.TxBillPay,
		Amount:    100,
		Currency:  domain.AUD,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))

	codes := domain.VerificationCodes{"1", "2", "3", "4"}
	_, err := s.ApproveTransaction(ctx, tx.ID, &codes, uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = s.ApproveTransaction(ctx, tx.ID, &codes, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = s.DeclineTransaction(ctx, tx.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = s.DeclineTransaction(ctx, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 500)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	got.Balance = 999999

	again, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), again.Balance, "mutating a snapshot must not touch store state")
}

func TestCreateSettledAdjustment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 1000)
	now := time.Now()

	credit := &domain.Transaction{
		ID:                 uuid.New(),
		Type:               domain.TxAdminCredit,
		ToAccountID:        &a.ID,
		Amount:             2000,
		Currency:           domain.NZD,
		Status:             domain.StatusCompleted,
		ProgressPercentage: 100,
		CreatedAt:          now,
		ProcessedAt:        &now,
	}
	_, err := s.CreateSettledAdjustment(ctx, credit)
	require.NoError(t, err)

	acc, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), acc.Balance)

	// Debit beyond balance: rejected, transaction not recorded.
	debit := &domain.Transaction{
		ID:                 uuid.New(),
		Type:               domain.TxWithdrawal,
		FromAccountID:      &a.ID,
		Amount:             99999,
		Currency:           domain.NZD,
		Status:             domain.StatusCompleted,
		ProgressPercentage: 100,
		CreatedAt:          now,
		ProcessedAt:        &now,
	}
	_, err = s.CreateSettledAdjustment(ctx, debit)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	_, err = s.GetTransaction(ctx, debit.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPayIDRegistry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 0)

	p := &domain.PayID{ID: uuid.New(), Alias: "kea@example.nz", Kind: "email", AccountID: a.ID, CreatedAt: time.Now()}
	require.NoError(t, s.CreatePayID(ctx, p))
	assert.ErrorIs(t, s.CreatePayID(ctx, p), domain.ErrDuplicate)

	got, err := s.ResolvePayID(ctx, "kea@example.nz")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.AccountID)

	_, err = s.ResolvePayID(ctx, "nobody@example.nz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedAccount(t, s, 0)
	b := seedAccount(t, s, 0)
	c := seedAccount(t, s, 0)

	mk := func(from, to *uuid.UUID) {
		require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{
			ID: uuid.New(), Type: domain.TxTransfer, FromAccountID: from, ToAccountID: to,
			Amount: 100, Currency: domain.NZD, Status: domain.StatusPending, CreatedAt: time.Now(),
		}))
	}
	mk(&a.ID, &b.ID)
	mk(&b.ID, &c.ID)
	mk(&c.ID, &a.ID)

	txs, err := s.AccountTransactions(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	for _, tx := range txs {
		involved := (tx.FromAccountID != nil && *tx.FromAccountID == a.ID) ||
			(tx.ToAccountID != nil && *tx.ToAccountID == a.ID)
		assert.True(t, involved)
	}
}
