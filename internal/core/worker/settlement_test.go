package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// fakeStore hands out a fixed queue of settlements, then reports nothing due.
type fakeStore struct {
	queue []*domain.Transaction
	calls int
	err   error
}

func (f *fakeStore) SettleNextDueCredit(_ context.Context, _ time.Time) (*domain.Transaction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.queue) == 0 {
		return nil, domain.ErrNotFound
	}
	tx := f.queue[0]
	f.queue = f.queue[1:]
	return tx, nil
}

func dueCredit() *domain.Transaction {
	to := uuid.New()
	now := time.Now()
	return &domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TxAdminCredit,
		ToAccountID: &to,
		Amount:      1000,
		Currency:    domain.AUD,
		Status:      domain.StatusCompleted,
		ProcessedAt: &now,
	}
}

func TestPassDrainsBacklog(t *testing.T) {
	store := &fakeStore{queue: []*domain.Transaction{dueCredit(), dueCredit(), dueCredit()}}
	s := NewSweep(store, time.Minute, nil)

	s.pass()

	assert.Empty(t, store.queue, "one pass must clear the whole backlog")
	assert.Equal(t, 4, store.calls, "three settlements plus the final not-found probe")
}

func TestPassStopsOnError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	s := NewSweep(store, time.Minute, nil)

	s.pass()

	assert.Equal(t, 1, store.calls, "an unexpected error ends the pass")
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	s := NewSweep(store, 10*time.Millisecond, nil)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Greater(t, store.calls, 0, "the loop must have ticked at least once")
}
