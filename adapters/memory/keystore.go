package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/credential"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// KeyStore is an in-memory key store.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]credential.Key
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]credential.Key)}
}

// GetByPrefix retrieves non-revoked keys sharing a lookup prefix.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]credential.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []credential.Key
	for _, k := range s.keys {
		if k.Prefix == prefix && k.Active {
			out = append(out, k)
		}
	}
	return out, nil
}

// GetByID retrieves a key by ID.
func (s *KeyStore) GetByID(ctx context.Context, id string) (credential.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return credential.Key{}, ErrNotFound
	}
	return k, nil
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k credential.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.ID] = k
	return nil
}

// Revoke marks a key inactive.
func (s *KeyStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.Active = false
	s.keys[id] = k
	return nil
}

// ListByAccount returns all keys for an account, newest first.
func (s *KeyStore) ListByAccount(ctx context.Context, accountID string) ([]credential.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []credential.Key
	for _, k := range s.keys {
		if k.AccountID == accountID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ResetDailyCounts zeroes every key's requests_today counter.
func (s *KeyStore) ResetDailyCounts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched int64
	for id, k := range s.keys {
		if k.RequestsToday > 0 {
			k.RequestsToday = 0
			s.keys[id] = k
			touched++
		}
	}
	return touched, nil
}

// bump applies the admission counter increments (used by Ledger).
func (s *KeyStore) bump(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return
	}
	k.RequestsToday++
	t := at
	k.LastUsed = &t
	s.keys[id] = k
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
