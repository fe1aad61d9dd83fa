package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/credential"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

const keyColumns = `id, account_id, key_type, environment, prefix, hash, name, permissions,
		rate_per_minute, requests_today, active, last_used, created_at`

// GetByPrefix retrieves non-revoked keys sharing a lookup prefix.
// The prefix already encodes key type and environment, so the candidate
// set is small.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]credential.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE prefix = ? AND active = 1
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []credential.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetByID retrieves a key by ID.
func (s *KeyStore) GetByID(ctx context.Context, id string) (credential.Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE id = ?
	`, id)
	return scanKeyRow(row)
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k credential.Key) error {
	permissions, err := json.Marshal(k.Permissions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, account_id, key_type, environment, prefix, hash, name, permissions,
			rate_per_minute, requests_today, active, last_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, k.ID, k.AccountID, string(k.Type), string(k.Environment), k.Prefix, k.Hash, k.Name,
		string(permissions), k.RatePerMinute, k.RequestsToday, boolToInt(k.Active),
		nullTime(k.LastUsed), k.CreatedAt)
	return err
}

// Revoke marks a key inactive. The row is kept for the audit trail.
func (s *KeyStore) Revoke(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET active = 0 WHERE id = ?
	`, id)
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

// ListByAccount returns all keys for an account, revoked ones included.
func (s *KeyStore) ListByAccount(ctx context.Context, accountID string) ([]credential.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE account_id = ?
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []credential.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ResetDailyCounts zeroes every key's requests_today counter.
func (s *KeyStore) ResetDailyCounts(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET requests_today = 0 WHERE requests_today > 0
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyFields(sc rowScanner) (credential.Key, error) {
	var k credential.Key
	var keyType, environment, permissions string
	var active int
	var lastUsed sql.NullTime

	err := sc.Scan(
		&k.ID, &k.AccountID, &keyType, &environment, &k.Prefix, &k.Hash, &k.Name, &permissions,
		&k.RatePerMinute, &k.RequestsToday, &active, &lastUsed, &k.CreatedAt,
	)
	if err != nil {
		return credential.Key{}, err
	}

	k.Type = credential.KeyType(keyType)
	k.Environment = credential.Environment(environment)
	k.Active = active != 0

	if permissions != "" && permissions != "null" {
		if err := json.Unmarshal([]byte(permissions), &k.Permissions); err != nil {
			return credential.Key{}, err
		}
	}
	if lastUsed.Valid {
		k.LastUsed = &lastUsed.Time
	}

	return k, nil
}

func scanKey(rows *sql.Rows) (credential.Key, error) {
	return scanKeyFields(rows)
}

func scanKeyRow(row *sql.Row) (credential.Key, error) {
	k, err := scanKeyFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credential.Key{}, ErrNotFound
	}
	return k, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
