package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// PostgresStore is the pgx-backed engine.Store. Every conditional transition
// runs inside one database transaction with the guard expressed in the UPDATE's
// WHERE clause, so a lost race shows up as zero rows affected rather than a
// double-applied balance effect.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const txColumns = `
	id, type, from_account_id, to_account_id, amount, currency, description, reference,
	status, progress_percentage,
	code1, code2, code3, code4,
	code1_entered_at, code2_entered_at, code3_entered_at, code4_entered_at,
	approved_by, approved_at, created_by, available_at, created_at, processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t       domain.Transaction
		codes   [domain.StepCount]*string
		entered [domain.StepCount]*time.Time
		desc    *string
		ref     *string
	)
	err := row.Scan(
		&t.ID, &t.Type, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Currency, &desc, &ref,
		&t.Status, &t.ProgressPercentage,
		&codes[0], &codes[1], &codes[2], &codes[3],
		&entered[0], &entered[1], &entered[2], &entered[3],
		&t.ApprovedBy, &t.ApprovedAt, &t.CreatedBy, &t.AvailableAt, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		t.Description = *desc
	}
	if ref != nil {
		t.Reference = *ref
	}
	if codes[0] != nil {
		var vc domain.VerificationCodes
		for i, c := range codes {
			if c != nil {
				vc[i] = *c
			}
		}
		t.Codes = &vc
	}
	for i, at := range entered {
		if at != nil {
			if t.CodeEnteredAt == nil {
				t.CodeEnteredAt = make(map[int]time.Time)
			}
			t.CodeEnteredAt[i+1] = *at
		}
	}
	return &t, nil
}

// --- Transactions ---

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, type, from_account_id, to_account_id, amount, currency, description, reference,
			 status, progress_percentage, created_by, available_at, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.Exec(ctx, query,
		tx.ID, tx.Type, tx.FromAccountID, tx.ToAccountID, tx.Amount, tx.Currency, tx.Description, tx.Reference,
		tx.Status, tx.ProgressPercentage, tx.CreatedBy, tx.AvailableAt, tx.CreatedAt, tx.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) ListTransactions(ctx context.Context, status domain.TxStatus, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)
	return s.queryTransactions(ctx, query, args...)
}

func (s *PostgresStore) AccountTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC LIMIT ` + fmt.Sprint(limit)
	return s.queryTransactions(ctx, query, accountID)
}

func (s *PostgresStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ApproveTransaction(ctx context.Context, id uuid.UUID, codes *domain.VerificationCodes, adminID uuid.UUID, at time.Time) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'in_progress',
		    code1 = $2, code2 = $3, code3 = $4, code4 = $5,
		    approved_by = $6, approved_at = $7
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + txColumns
	row := s.db.QueryRow(ctx, query, id, codes[0], codes[1], codes[2], codes[3], adminID, at)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidState
	}
	return t, err
}

func (s *PostgresStore) DeclineTransaction(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'declined', processed_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + txColumns
	row := s.db.QueryRow(ctx, query, id, at)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidState
	}
	return t, err
}

func (s *PostgresStore) AdvanceTransaction(ctx context.Context, id uuid.UUID, step int, effect domain.StepEffect, at time.Time) (*domain.Transaction, error) {
	if !domain.ValidStep(step) {
		return nil, domain.ErrInvalidState
	}

	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	// Compare-and-set on progress; the balance mutations below commit with it
	// or not at all.
	set := fmt.Sprintf("progress_percentage = $2, code%d_entered_at = $3", step)
	if step == domain.StepCount {
		set += ", status = 'completed', processed_at = $3"
	}
	query := `UPDATE transactions SET ` + set + `
		WHERE id = $1 AND status = 'in_progress' AND progress_percentage = $4
		RETURNING ` + txColumns
	row := dbtx.QueryRow(ctx, query, id, domain.ProgressFor(step), at, domain.ProgressFor(step-1))
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	if effect.DebitFrom != nil {
		if err := debitLocked(ctx, dbtx, *effect.DebitFrom, t.Amount); err != nil {
			return nil, err
		}
	}
	if effect.CreditTo != nil {
		if _, err := dbtx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $1 WHERE id = $2`, t.Amount, *effect.CreditTo); err != nil {
			return nil, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// debitLocked takes the row lock, verifies cover, and subtracts.
func debitLocked(ctx context.Context, dbtx pgx.Tx, accountID uuid.UUID, amount int64) error {
	var balance int64
	err := dbtx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: balance %s cannot cover %s",
			domain.ErrInsufficientFunds, domain.FormatAmount(balance), domain.FormatAmount(amount))
	}
	_, err = dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, accountID)
	return err
}

func (s *PostgresStore) CreateSettledAdjustment(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	query := `
		INSERT INTO transactions
			(id, type, from_account_id, to_account_id, amount, currency, description, reference,
			 status, progress_percentage, created_by, available_at, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = dbtx.Exec(ctx, query,
		tx.ID, tx.Type, tx.FromAccountID, tx.ToAccountID, tx.Amount, tx.Currency, tx.Description, tx.Reference,
		tx.Status, tx.ProgressPercentage, tx.CreatedBy, tx.AvailableAt, tx.CreatedAt, tx.ProcessedAt)
	if err != nil {
		return nil, err
	}

	if tx.FromAccountID != nil {
		if err := debitLocked(ctx, dbtx, *tx.FromAccountID, tx.Amount); err != nil {
			return nil, err
		}
	}
	if tx.ToAccountID != nil {
		if _, err := dbtx.Exec(ctx,
			`UPDATE accounts SET balance = balance + $1 WHERE id = $2`, tx.Amount, *tx.ToAccountID); err != nil {
			return nil, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *PostgresStore) SettleNextDueCredit(ctx context.Context, now time.Time) (*domain.Transaction, error) {
	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	var id uuid.UUID
	err = dbtx.QueryRow(ctx, `
		SELECT id FROM transactions
		WHERE status = 'pending' AND type = 'admin_credit'
		  AND available_at IS NOT NULL AND available_at <= $1
		  AND to_account_id IS NOT NULL
		ORDER BY available_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	row := dbtx.QueryRow(ctx, `
		UPDATE transactions
		SET status = 'completed', progress_percentage = 100, processed_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+txColumns, id, now)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	if _, err := dbtx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`, t.Amount, *t.ToAccountID); err != nil {
		return nil, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// --- Accounts ---

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	query := `
		INSERT INTO accounts
			(id, owner_id, owner_name, number, region, currency, balance, status,
			 bsb, routing_number, bank_prefix, swift_code, access_code_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.Exec(ctx, query,
		acc.ID, acc.OwnerID, acc.OwnerName, acc.Number, acc.Region, acc.Currency, acc.Balance, acc.Status,
		acc.BSB, acc.RoutingNumber, acc.BankPrefix, acc.SwiftCode, acc.AccessCodeHash, acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

const accountColumns = `id, owner_id, owner_name, number, region, currency, balance, status,
	bsb, routing_number, bank_prefix, swift_code, access_code_hash, created_at`

func scanAccount(row rowScanner) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(
		&acc.ID, &acc.OwnerID, &acc.OwnerName, &acc.Number, &acc.Region, &acc.Currency, &acc.Balance, &acc.Status,
		&acc.BSB, &acc.RoutingNumber, &acc.BankPrefix, &acc.SwiftCode, &acc.AccessCodeHash, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number))
}

func (s *PostgresStore) ActivateAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE accounts SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+accountColumns, id, domain.AccountActive, domain.AccountPendingActivation)
	acc, err := scanAccount(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidState
	}
	return acc, err
}

// --- Cards ---

func (s *PostgresStore) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (id, account_id, number, brand, expiry_month, expiry_year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		card.ID, card.AccountID, card.Number, card.Brand, card.ExpiryMonth, card.ExpiryYear, card.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// --- PayID aliases ---

func (s *PostgresStore) CreatePayID(ctx context.Context, p *domain.PayID) error {
	query := `
		INSERT INTO payids (id, alias, kind, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alias) DO NOTHING`
	ct, err := s.db.Exec(ctx, query, p.ID, p.Alias, p.Kind, p.AccountID, p.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) ResolvePayID(ctx context.Context, alias string) (*domain.PayID, error) {
	var p domain.PayID
	err := s.db.QueryRow(ctx,
		`SELECT id, alias, kind, account_id, created_at FROM payids WHERE alias = $1`, alias).
		Scan(&p.ID, &p.Alias, &p.Kind, &p.AccountID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Admins ---

func (s *PostgresStore) CreateAdmin(ctx context.Context, a *domain.Admin) error {
	query := `
		INSERT INTO admins (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING`
	ct, err := s.db.Exec(ctx, query, a.ID, a.Email, a.Name, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	var a domain.Admin
	err := s.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM admins WHERE email = $1`, email).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
