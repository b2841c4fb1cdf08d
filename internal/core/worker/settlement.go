// Package worker runs the settlement sweep: scheduled admin credits sit
// pending until their availableAt arrives, and nothing else completes them.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/notifications"
)

// SettlementStore is the slice of the store the sweep needs.
type SettlementStore interface {
	SettleNextDueCredit(ctx context.Context, now time.Time) (*domain.Transaction, error)
}

type Sweep struct {
	store    SettlementStore
	interval time.Duration
	notifier *notifications.Notifier
	stop     chan struct{}
	done     chan struct{}
}

// NewSweep builds a sweep; notifier may be nil.
func NewSweep(store SettlementStore, interval time.Duration, notifier *notifications.Notifier) *Sweep {
	return &Sweep{
		store:    store,
		interval: interval,
		notifier: notifier,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweep) Start() {
	go func() {
		defer close(s.done)
		slog.Info("settlement sweep started", "interval", s.interval)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.pass()
			}
		}
	}()
}

// Stop halts the loop and waits for the current pass to finish.
func (s *Sweep) Stop() {
	close(s.stop)
	<-s.done
	slog.Info("settlement sweep stopped")
}

// pass settles due credits one at a time until none remain, so a backlog
// clears within a single tick.
func (s *Sweep) pass() {
	ctx := context.Background()
	for {
		tx, err := s.store.SettleNextDueCredit(ctx, time.Now())
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		if err != nil {
			slog.Error("sweep: settlement failed", "error", err)
			return
		}

		slog.Info("sweep: scheduled credit settled",
			"id", tx.ID, "account", tx.ToAccountID, "amount", domain.FormatAmount(tx.Amount))
		if s.notifier != nil {
			s.notifier.TransactionCompleted(tx)
		}
	}
}
