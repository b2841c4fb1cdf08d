package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// MemoryStore is the in-memory engine.Store used by tests and local
// development (STORE=memory). A single mutex serializes every operation, so
// each method is atomic by construction: the progress guard and the balance
// mutation it protects sit in one critical section, matching the contract the
// postgres store meets with transactions.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*domain.Account
	numberIndex  map[string]uuid.UUID
	transactions map[uuid.UUID]*domain.Transaction
	txOrder      []uuid.UUID
	cards        map[uuid.UUID][]*domain.Card
	payids       map[string]*domain.PayID
	admins       map[string]*domain.Admin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]*domain.Account),
		numberIndex:  make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		cards:        make(map[uuid.UUID][]*domain.Card),
		payids:       make(map[string]*domain.PayID),
		admins:       make(map[string]*domain.Admin),
	}
}

// copyTx returns a snapshot so callers can never mutate store state directly.
func copyTx(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.Codes != nil {
		codes := *t.Codes
		cp.Codes = &codes
	}
	if t.CodeEnteredAt != nil {
		m := make(map[int]time.Time, len(t.CodeEnteredAt))
		for k, v := range t.CodeEnteredAt {
			m[k] = v
		}
		cp.CodeEnteredAt = m
	}
	return &cp
}

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

// --- Transactions ---

func (s *MemoryStore) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return domain.ErrDuplicate
	}
	s.transactions[tx.ID] = copyTx(tx)
	s.txOrder = append(s.txOrder, tx.ID)
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTx(tx), nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, status domain.TxStatus, limit int) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	// Newest first.
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		tx := s.transactions[s.txOrder[i]]
		if status != "" && tx.Status != status {
			continue
		}
		out = append(out, copyTx(tx))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) AccountTransactions(_ context.Context, accountID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		tx := s.transactions[s.txOrder[i]]
		involved := (tx.FromAccountID != nil && *tx.FromAccountID == accountID) ||
			(tx.ToAccountID != nil && *tx.ToAccountID == accountID)
		if !involved {
			continue
		}
		out = append(out, copyTx(tx))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ApproveTransaction(_ context.Context, id uuid.UUID, codes *domain.VerificationCodes, adminID uuid.UUID, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if tx.Status != domain.StatusPending {
		return nil, domain.ErrInvalidState
	}
	stored := *codes
	tx.Codes = &stored
	tx.Status = domain.StatusInProgress
	tx.ProgressPercentage = 0
	tx.ApprovedBy = &adminID
	tx.ApprovedAt = &at
	return copyTx(tx), nil
}

func (s *MemoryStore) DeclineTransaction(_ context.Context, id uuid.UUID, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if tx.Status != domain.StatusPending {
		return nil, domain.ErrInvalidState
	}
	tx.Status = domain.StatusDeclined
	tx.ProcessedAt = &at
	return copyTx(tx), nil
}

func (s *MemoryStore) AdvanceTransaction(_ context.Context, id uuid.UUID, step int, effect domain.StepEffect, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// Compare-and-set: the loser of a concurrent same-slot race fails here.
	if tx.Status != domain.StatusInProgress || tx.ProgressPercentage != domain.ProgressFor(step-1) {
		return nil, domain.ErrInvalidState
	}

	if effect.DebitFrom != nil {
		from, ok := s.accounts[*effect.DebitFrom]
		if !ok {
			return nil, domain.ErrNotFound
		}
		if from.Balance < tx.Amount {
			return nil, domain.ErrInsufficientFunds
		}
		from.Balance -= tx.Amount
	}
	if effect.CreditTo != nil {
		to, ok := s.accounts[*effect.CreditTo]
		if !ok {
			return nil, domain.ErrNotFound
		}
		to.Balance += tx.Amount
	}

	tx.ProgressPercentage = domain.ProgressFor(step)
	if tx.CodeEnteredAt == nil {
		tx.CodeEnteredAt = make(map[int]time.Time)
	}
	tx.CodeEnteredAt[step] = at
	if step == domain.StepCount {
		tx.Status = domain.StatusCompleted
		tx.ProcessedAt = &at
	}
	return copyTx(tx), nil
}

func (s *MemoryStore) CreateSettledAdjustment(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return nil, domain.ErrDuplicate
	}
	if tx.FromAccountID != nil {
		from, ok := s.accounts[*tx.FromAccountID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		if from.Balance < tx.Amount {
			return nil, domain.ErrInsufficientFunds
		}
		from.Balance -= tx.Amount
	}
	if tx.ToAccountID != nil {
		to, ok := s.accounts[*tx.ToAccountID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		to.Balance += tx.Amount
	}
	s.transactions[tx.ID] = copyTx(tx)
	s.txOrder = append(s.txOrder, tx.ID)
	return copyTx(tx), nil
}

func (s *MemoryStore) SettleNextDueCredit(_ context.Context, now time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.Status != domain.StatusPending || tx.Type != domain.TxAdminCredit {
			continue
		}
		if tx.AvailableAt == nil || tx.AvailableAt.After(now) || tx.ToAccountID == nil {
			continue
		}
		to, ok := s.accounts[*tx.ToAccountID]
		if !ok {
			continue
		}
		to.Balance += tx.Amount
		tx.Status = domain.StatusCompleted
		tx.ProgressPercentage = 100
		tx.ProcessedAt = &now
		return copyTx(tx), nil
	}
	return nil, domain.ErrNotFound
}

// --- Accounts ---

func (s *MemoryStore) CreateAccount(_ context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.numberIndex[acc.Number]; ok {
		return domain.ErrDuplicate
	}
	s.accounts[acc.ID] = copyAccount(acc)
	s.numberIndex[acc.Number] = acc.ID
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(acc), nil
}

func (s *MemoryStore) GetAccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.numberIndex[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(s.accounts[id]), nil
}

func (s *MemoryStore) ActivateAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if acc.Status != domain.AccountPendingActivation {
		return nil, domain.ErrInvalidState
	}
	acc.Status = domain.AccountActive
	return copyAccount(acc), nil
}

// --- Cards ---

func (s *MemoryStore) CreateCard(_ context.Context, card *domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[card.AccountID]; !ok {
		return domain.ErrNotFound
	}
	cp := *card
	s.cards[card.AccountID] = append(s.cards[card.AccountID], &cp)
	return nil
}

// --- PayID aliases ---

func (s *MemoryStore) CreatePayID(_ context.Context, p *domain.PayID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payids[p.Alias]; ok {
		return domain.ErrDuplicate
	}
	cp := *p
	s.payids[p.Alias] = &cp
	return nil
}

func (s *MemoryStore) ResolvePayID(_ context.Context, alias string) (*domain.PayID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payids[alias]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// --- Admins ---

func (s *MemoryStore) CreateAdmin(_ context.Context, a *domain.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[a.Email]; ok {
		return domain.ErrDuplicate
	}
	cp := *a
	s.admins[a.Email] = &cp
	return nil
}

func (s *MemoryStore) GetAdminByEmail(_ context.Context, email string) (*domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
