package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/account"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, status, tier, monthly_quota, requests_this_month, created_at, updated_at
		FROM developer_accounts
		WHERE id = ?
	`, id)
	return scanAccount(row)
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a account.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO developer_accounts (id, email, status, tier, monthly_quota, requests_this_month, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.Status, a.Tier, a.MonthlyQuota, a.RequestsThisMonth, a.CreatedAt, a.UpdatedAt)
	return err
}

// Update modifies an existing account.
func (s *AccountStore) Update(ctx context.Context, a account.Account) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE developer_accounts
		SET email = ?, status = ?, tier = ?, monthly_quota = ?, requests_this_month = ?, updated_at = ?
		WHERE id = ?
	`, a.Email, a.Status, a.Tier, a.MonthlyQuota, a.RequestsThisMonth, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns accounts with pagination.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]account.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, status, tier, monthly_quota, requests_this_month, created_at, updated_at
		FROM developer_accounts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []account.Account
	for rows.Next() {
		var a account.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Status, &a.Tier, &a.MonthlyQuota,
			&a.RequestsThisMonth, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ResetMonthlyUsage zeroes every account's monthly counter. Called by the
// external billing-period job, never by the admission path.
func (s *AccountStore) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE developer_accounts
		SET requests_this_month = 0, updated_at = ?
		WHERE requests_this_month > 0
	`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanAccount(row *sql.Row) (account.Account, error) {
	var a account.Account
	err := row.Scan(&a.ID, &a.Email, &a.Status, &a.Tier, &a.MonthlyQuota,
		&a.RequestsThisMonth, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, ErrNotFound
	}
	if err != nil {
		return account.Account{}, err
	}
	return a, nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
