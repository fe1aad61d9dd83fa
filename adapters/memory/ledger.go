package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/admission"
	"github.com/Moneyman334/codex-wallet-sub000/domain/usagelog"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// Ledger is an in-memory admission ledger. It serializes admissions per
// account with a lock keyed by account ID, so the quota check and the
// counter increment are atomic with respect to concurrent requests for
// the same account. It doubles as the usage log store for the entries it
// creates.
type Ledger struct {
	accounts *AccountStore
	keys     *KeyStore
	idGen    ports.IDGenerator

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	entryMu sync.RWMutex
	entries map[string]usagelog.Entry
	byKey   map[string][]string
	byAcct  map[string][]string
}

// NewLedger creates an in-memory ledger over the given stores.
func NewLedger(accounts *AccountStore, keys *KeyStore, idGen ports.IDGenerator) *Ledger {
	return &Ledger{
		accounts: accounts,
		keys:     keys,
		idGen:    idGen,
		locks:    make(map[string]*sync.Mutex),
		entries:  make(map[string]usagelog.Entry),
		byKey:    make(map[string][]string),
		byAcct:   make(map[string][]string),
	}
}

func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	mu, ok := l.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[accountID] = mu
	}
	return mu
}

// Admit performs the full check-and-commit sequence for one request.
func (l *Ledger) Admit(ctx context.Context, req ports.AdmitRequest) (admission.Ticket, error) {
	mu := l.accountLock(req.Key.AccountID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := l.accounts.Get(ctx, req.Key.AccountID)
	if errors.Is(err, ErrNotFound) {
		return admission.Ticket{}, &admission.AccountError{
			Code:      admission.CodeAccountNotFound,
			AccountID: req.Key.AccountID,
		}
	}
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: err}
	}

	if acct.RequestsThisMonth >= acct.MonthlyQuota {
		return admission.Ticket{}, &admission.QuotaExceededError{
			Quota: acct.MonthlyQuota,
			Used:  acct.RequestsThisMonth,
		}
	}

	windowCount, oldest, previous := l.keyWindow(req.Key.ID, req.Now.Add(-req.RateWindow))

	if windowCount >= req.RateLimit {
		resetAfter := time.Second
		if oldest != nil {
			resetAfter = admission.ResetAfter(*oldest, req.Now.UTC(), req.RateWindow)
		}
		return admission.Ticket{}, &admission.RateLimitExceededError{
			Limit:      req.RateLimit,
			ResetAfter: resetAfter,
		}
	}

	entry := usagelog.New(l.idGen.New(), req.Key.ID, req.Key.AccountID,
		req.Endpoint, req.Method, req.Now.UTC(), previous)

	l.entryMu.Lock()
	l.entries[entry.ID] = entry
	l.byKey[entry.KeyID] = append(l.byKey[entry.KeyID], entry.ID)
	l.byAcct[entry.AccountID] = append(l.byAcct[entry.AccountID], entry.ID)
	l.entryMu.Unlock()

	acct.RequestsThisMonth++
	acct.UpdatedAt = req.Now.UTC()
	if err := l.accounts.Update(ctx, acct); err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: err}
	}
	l.keys.bump(req.Key.ID, req.Now.UTC())

	return admission.Ticket{
		LogEntryID:     entry.ID,
		KeyID:          req.Key.ID,
		AccountID:      req.Key.AccountID,
		Tier:           acct.Tier,
		Permissions:    req.Key.Permissions,
		QuotaRemaining: acct.MonthlyQuota - acct.RequestsThisMonth,
		RateRemaining:  req.RateLimit - windowCount - 1,
		RateLimit:      req.RateLimit,
	}, nil
}

// keyWindow reports how many entries a key has at or after the cutoff,
// the oldest in-window timestamp, and the key's most recent timestamp.
func (l *Ledger) keyWindow(keyID string, cutoff time.Time) (int, *time.Time, *time.Time) {
	l.entryMu.RLock()
	defer l.entryMu.RUnlock()

	var count int
	var oldest, previous *time.Time
	for _, id := range l.byKey[keyID] {
		e := l.entries[id]
		ts := e.Timestamp
		if previous == nil || ts.After(*previous) {
			prev := ts
			previous = &prev
		}
		if !ts.Before(cutoff) {
			count++
			if oldest == nil || ts.Before(*oldest) {
				old := ts
				oldest = &old
			}
		}
	}
	return count, oldest, previous
}

// Finish patches one entry, by id, with the response outcome. The entry
// is mutated at most once.
func (l *Ledger) Finish(ctx context.Context, id string, statusCode int, responseTimeMs int64) error {
	l.entryMu.Lock()
	defer l.entryMu.Unlock()

	e, ok := l.entries[id]
	if !ok || e.IsComplete() {
		return ErrNotFound
	}
	l.entries[id] = e.WithOutcome(statusCode, responseTimeMs)
	return nil
}

// Get retrieves one entry by ID.
func (l *Ledger) Get(ctx context.Context, id string) (usagelog.Entry, error) {
	l.entryMu.RLock()
	defer l.entryMu.RUnlock()

	e, ok := l.entries[id]
	if !ok {
		return usagelog.Entry{}, ErrNotFound
	}
	return e, nil
}

// CountSince counts entries for a key with timestamp >= since.
func (l *Ledger) CountSince(ctx context.Context, keyID string, since time.Time) (int, error) {
	count, _, _ := l.keyWindow(keyID, since)
	return count, nil
}

// Recent returns the newest entries for an account.
func (l *Ledger) Recent(ctx context.Context, accountID string, limit int) ([]usagelog.Entry, error) {
	l.entryMu.RLock()
	defer l.entryMu.RUnlock()

	ids := l.byAcct[accountID]
	out := make([]usagelog.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.entries[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneOlderThan removes entries older than the cutoff.
func (l *Ledger) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	l.entryMu.Lock()
	defer l.entryMu.Unlock()

	var removed int64
	for id, e := range l.entries {
		if e.Timestamp.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	if removed > 0 {
		for keyID := range l.byKey {
			l.byKey[keyID] = l.filterLive(l.byKey[keyID])
		}
		for acctID := range l.byAcct {
			l.byAcct[acctID] = l.filterLive(l.byAcct[acctID])
		}
	}
	return removed, nil
}

func (l *Ledger) filterLive(ids []string) []string {
	kept := ids[:0]
	for _, id := range ids {
		if _, ok := l.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// Ensure interface compliance.
var (
	_ ports.AdmissionLedger = (*Ledger)(nil)
	_ ports.UsageLogStore   = (*Ledger)(nil)
)
