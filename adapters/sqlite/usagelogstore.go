package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/usagelog"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// UsageLogStore implements ports.UsageLogStore using SQLite. Entries are
// inserted only by the admission ledger; this store patches and reads them.
type UsageLogStore struct {
	db *DB
}

// NewUsageLogStore creates a new SQLite usage log store.
func NewUsageLogStore(db *DB) *UsageLogStore {
	return &UsageLogStore{db: db}
}

// Finish patches one entry, by id, with the response outcome. The
// status/response-time columns are only written when still NULL, so the
// entry is mutated at most once.
func (s *UsageLogStore) Finish(ctx context.Context, id string, statusCode int, responseTimeMs int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE usage_log
		SET status_code = ?, response_time_ms = ?
		WHERE id = ? AND status_code IS NULL
	`, statusCode, responseTimeMs, id)
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

// Get retrieves one entry by ID.
func (s *UsageLogStore) Get(ctx context.Context, id string) (usagelog.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key_id, account_id, endpoint, method, ts, status_code, response_time_ms,
		       hour, day_of_week, time_bucket, seconds_since_previous, burst_class
		FROM usage_log
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return usagelog.Entry{}, ErrNotFound
	}
	return e, err
}

// CountSince counts entries for a key with timestamp >= since.
func (s *UsageLogStore) CountSince(ctx context.Context, keyID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_log WHERE key_id = ? AND ts >= ?
	`, keyID, since.UTC()).Scan(&count)
	return count, err
}

// Recent returns the newest entries for an account.
func (s *UsageLogStore) Recent(ctx context.Context, accountID string, limit int) ([]usagelog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key_id, account_id, endpoint, method, ts, status_code, response_time_ms,
		       hour, day_of_week, time_bucket, seconds_since_previous, burst_class
		FROM usage_log
		WHERE account_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []usagelog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneOlderThan removes entries older than the cutoff.
func (s *UsageLogStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_log WHERE ts < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntry(sc rowScanner) (usagelog.Entry, error) {
	var e usagelog.Entry
	var statusCode sql.NullInt64
	var responseTime sql.NullInt64
	var sincePrev sql.NullFloat64

	err := sc.Scan(
		&e.ID, &e.KeyID, &e.AccountID, &e.Endpoint, &e.Method, &e.Timestamp,
		&statusCode, &responseTime, &e.Hour, &e.DayOfWeek, &e.TimeBucket,
		&sincePrev, &e.BurstClass,
	)
	if err != nil {
		return usagelog.Entry{}, err
	}

	if statusCode.Valid {
		code := int(statusCode.Int64)
		e.StatusCode = &code
	}
	if responseTime.Valid {
		ms := responseTime.Int64
		e.ResponseTimeMs = &ms
	}
	if sincePrev.Valid {
		secs := sincePrev.Float64
		e.SecondsSincePrevious = &secs
	}

	return e, nil
}

// Ensure interface compliance.
var _ ports.UsageLogStore = (*UsageLogStore)(nil)
