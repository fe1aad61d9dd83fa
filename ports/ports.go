// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/account"
	"github.com/Moneyman334/codex-wallet-sub000/domain/admission"
	"github.com/Moneyman334/codex-wallet-sub000/domain/credential"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/domain/usagelog"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher verifies raw credentials against stored salted hashes. The
// production implementation is deliberately slow (bcrypt) and shared with
// the platform's login subsystem.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash in constant time.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ErrNotFound reports that a requested record does not exist. Stores return
// it (or wrap it) so callers can tell absence from infrastructure failure.
var ErrNotFound = errors.New("record not found")

// AccountStore persists developer accounts.
type AccountStore interface {
	// Get retrieves an account by ID (plain read, used for the fail-fast
	// pre-check outside the admission transaction).
	Get(ctx context.Context, id string) (account.Account, error)

	// Create stores a new account.
	Create(ctx context.Context, a account.Account) error

	// Update modifies an existing account.
	Update(ctx context.Context, a account.Account) error

	// List returns accounts with pagination.
	List(ctx context.Context, limit, offset int) ([]account.Account, error)

	// ResetMonthlyUsage zeroes requests_this_month on every account and
	// returns the number of rows touched. Invoked by the external monthly
	// billing job, never by the admission path.
	ResetMonthlyUsage(ctx context.Context) (int64, error)
}

// KeyStore persists API keys. Keys are never deleted; revocation flips the
// active flag so the audit trail survives.
type KeyStore interface {
	// GetByPrefix retrieves non-revoked keys sharing a lookup prefix
	// (the candidate set for slow-hash verification).
	GetByPrefix(ctx context.Context, prefix string) ([]credential.Key, error)

	// GetByID retrieves a key by ID.
	GetByID(ctx context.Context, id string) (credential.Key, error)

	// Create stores a new key.
	Create(ctx context.Context, k credential.Key) error

	// Revoke marks a key inactive.
	Revoke(ctx context.Context, id string) error

	// ListByAccount returns all keys for an account.
	ListByAccount(ctx context.Context, accountID string) ([]credential.Key, error)

	// ResetDailyCounts zeroes requests_today on every key.
	ResetDailyCounts(ctx context.Context) (int64, error)
}

// AdmitRequest carries everything the ledger needs to decide one admission.
type AdmitRequest struct {
	Key        credential.Key
	Endpoint   string
	Method     string
	RateLimit  int           // Effective per-minute limit for this key
	RateWindow time.Duration // Trailing window, normally one minute
	Now        time.Time
}

// AdmissionLedger is the transactional core. Admit executes the full
// check-and-commit sequence in ONE transaction: lock the account row,
// re-read the monthly counter, count the key's trailing rate window over
// the usage log, insert the log entry, bump the counters, commit.
// Rejections (quota, rate) are typed errors raised before any write;
// infrastructure failures roll back, so no partial state can persist.
type AdmissionLedger interface {
	Admit(ctx context.Context, req AdmitRequest) (admission.Ticket, error)
}

// UsageLogStore reads and patches usage log entries. Insertion happens only
// inside AdmissionLedger.Admit; Finish is the single permitted mutation.
type UsageLogStore interface {
	// Finish patches the entry identified by id with the response outcome.
	// Always by id, never "latest for key": concurrent completions must
	// each hit exactly their own row.
	Finish(ctx context.Context, id string, statusCode int, responseTimeMs int64) error

	// Get retrieves one entry by ID.
	Get(ctx context.Context, id string) (usagelog.Entry, error)

	// CountSince counts entries for a key with timestamp >= since.
	CountSince(ctx context.Context, keyID string, since time.Time) (int, error)

	// Recent returns the newest entries for an account.
	Recent(ctx context.Context, accountID string, limit int) ([]usagelog.Entry, error)

	// PruneOlderThan removes entries older than the cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FeatureWindowStore persists per-(class, end-user) limiter windows.
type FeatureWindowStore interface {
	// GetAndCheck atomically loads the window, applies the fixed-window
	// check, and stores the updated state.
	GetAndCheck(ctx context.Context, class, userID string, limit int, window time.Duration, now time.Time) (tier.WindowResult, error)

	// PruneExpired removes windows that ended before the cutoff and
	// returns the number removed.
	PruneExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// Policy Ports
// -----------------------------------------------------------------------------

// TierSource resolves the tier table. Implementations may hot-reload.
type TierSource interface {
	// Tiers returns the current tier table.
	Tiers() []tier.Tier
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// Outcome is the post-response patch for one usage log entry.
type Outcome struct {
	EntryID        string
	StatusCode     int
	ResponseTimeMs int64
}

// OutcomePatcher accepts response outcomes for async application. Failure
// here degrades analytics only; it never affects an admission already made.
type OutcomePatcher interface {
	// Submit queues an outcome patch. Must never block.
	Submit(o Outcome)

	// Close drains pending patches and stops the workers.
	Close() error
}
