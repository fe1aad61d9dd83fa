package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/admission"
	"github.com/Moneyman334/codex-wallet-sub000/domain/usagelog"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// AdmissionLedger implements ports.AdmissionLedger using SQLite.
//
// Every Admit call runs in one immediate transaction. The immediate lock
// admits a single writer at a time, so concurrent admissions are totally
// ordered; this is a superset of the per-account row lock the checks
// need. All reads below therefore see the committed effect of every
// earlier admission, and a rejection aborts before any write.
type AdmissionLedger struct {
	db    *DB
	idGen ports.IDGenerator
}

// NewAdmissionLedger creates a new SQLite admission ledger.
func NewAdmissionLedger(db *DB, idGen ports.IDGenerator) *AdmissionLedger {
	return &AdmissionLedger{db: db, idGen: idGen}
}

// Admit performs the full check-and-commit sequence for one request.
func (l *AdmissionLedger) Admit(ctx context.Context, req ports.AdmitRequest) (admission.Ticket, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("begin admission tx: %w", err)}
	}
	defer tx.Rollback()

	// Re-read the account counters under the write lock. The pre-check in
	// the application layer ran outside the transaction and may be stale.
	var quota, used int64
	var tierName string
	err = tx.QueryRowContext(ctx, `
		SELECT monthly_quota, requests_this_month, tier
		FROM developer_accounts
		WHERE id = ?
	`, req.Key.AccountID).Scan(&quota, &used, &tierName)
	if errors.Is(err, sql.ErrNoRows) {
		return admission.Ticket{}, &admission.AccountError{
			Code:      admission.CodeAccountNotFound,
			AccountID: req.Key.AccountID,
		}
	}
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("read account counters: %w", err)}
	}

	// Strict ceiling: used == quota means the period is spent.
	if used >= quota {
		return admission.Ticket{}, &admission.QuotaExceededError{Quota: quota, Used: used}
	}

	// Count the key's trailing window over the usage log. MIN(ts) gives
	// the oldest in-window entry for the retry hint.
	cutoff := req.Now.Add(-req.RateWindow).UTC()
	var windowCount int
	var oldest sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(ts)
		FROM usage_log
		WHERE key_id = ? AND ts >= ?
	`, req.Key.ID, cutoff).Scan(&windowCount, &oldest)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("count rate window: %w", err)}
	}

	if windowCount >= req.RateLimit {
		resetAfter := time.Second
		if oldest.Valid {
			resetAfter = admission.ResetAfter(oldest.Time, req.Now.UTC(), req.RateWindow)
		}
		return admission.Ticket{}, &admission.RateLimitExceededError{
			Limit:      req.RateLimit,
			ResetAfter: resetAfter,
		}
	}

	// All checks passed: insert the log entry first so the "entry exists
	// no later than the counter increments" invariant holds even if the
	// statements were ever split.
	var previous *time.Time
	var prevTS sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(ts) FROM usage_log WHERE key_id = ?
	`, req.Key.ID).Scan(&prevTS)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("read previous request: %w", err)}
	}
	if prevTS.Valid {
		previous = &prevTS.Time
	}

	entry := usagelog.New(l.idGen.New(), req.Key.ID, req.Key.AccountID,
		req.Endpoint, req.Method, req.Now.UTC(), previous)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_log (id, key_id, account_id, endpoint, method, ts,
			status_code, response_time_ms, hour, day_of_week, time_bucket,
			seconds_since_previous, burst_class)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?, ?, ?)
	`, entry.ID, entry.KeyID, entry.AccountID, entry.Endpoint, entry.Method, entry.Timestamp,
		entry.Hour, entry.DayOfWeek, entry.TimeBucket, nullFloat(entry.SecondsSincePrevious),
		entry.BurstClass)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("insert usage log entry: %w", err)}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE developer_accounts
		SET requests_this_month = requests_this_month + 1, updated_at = ?
		WHERE id = ?
	`, req.Now.UTC(), req.Key.AccountID)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("increment account counter: %w", err)}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE api_keys
		SET requests_today = requests_today + 1, last_used = ?
		WHERE id = ?
	`, req.Now.UTC(), req.Key.ID)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("increment key counters: %w", err)}
	}

	if err := tx.Commit(); err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: fmt.Errorf("commit admission: %w", err)}
	}

	return admission.Ticket{
		LogEntryID:     entry.ID,
		KeyID:          req.Key.ID,
		AccountID:      req.Key.AccountID,
		Tier:           tierName,
		Permissions:    req.Key.Permissions,
		QuotaRemaining: quota - used - 1,
		RateRemaining:  req.RateLimit - windowCount - 1,
		RateLimit:      req.RateLimit,
	}, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Ensure interface compliance.
var _ ports.AdmissionLedger = (*AdmissionLedger)(nil)
