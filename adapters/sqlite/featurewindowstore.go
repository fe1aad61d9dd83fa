package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// FeatureWindowStore implements ports.FeatureWindowStore on SQLite. It is
// the durable alternative to the in-memory store for deployments with more
// than one server instance, where in-process maps would undercount.
type FeatureWindowStore struct {
	db *DB
}

// NewFeatureWindowStore creates a new SQLite feature window store.
func NewFeatureWindowStore(db *DB) *FeatureWindowStore {
	return &FeatureWindowStore{db: db}
}

// GetAndCheck atomically loads, checks, and stores a (class, user) window.
// The immediate transaction serializes concurrent checks for the same
// window.
func (s *FeatureWindowStore) GetAndCheck(ctx context.Context, class, userID string, limit int, window time.Duration, now time.Time) (tier.WindowResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tier.WindowResult{}, fmt.Errorf("begin feature window tx: %w", err)
	}
	defer tx.Rollback()

	var state tier.Window
	err = tx.QueryRowContext(ctx, `
		SELECT count, window_end FROM feature_windows WHERE class = ? AND user_id = ?
	`, class, userID).Scan(&state.Count, &state.WindowEnd)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return tier.WindowResult{}, fmt.Errorf("read feature window: %w", err)
	}

	result, newState := tier.CheckWindow(state, limit, window, now)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feature_windows (class, user_id, count, window_end)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(class, user_id) DO UPDATE SET
			count = excluded.count,
			window_end = excluded.window_end
	`, class, userID, newState.Count, newState.WindowEnd.UTC())
	if err != nil {
		return tier.WindowResult{}, fmt.Errorf("write feature window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return tier.WindowResult{}, fmt.Errorf("commit feature window: %w", err)
	}

	return result, nil
}

// PruneExpired removes windows that ended before the cutoff.
func (s *FeatureWindowStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM feature_windows WHERE window_end < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.FeatureWindowStore = (*FeatureWindowStore)(nil)
