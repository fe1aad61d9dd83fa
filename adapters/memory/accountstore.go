// Package memory provides in-memory implementations of storage ports for
// tests and single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/account"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// ErrNotFound is returned when a requested record does not exist. It is the
// shared ports sentinel so callers can distinguish absence from
// infrastructure failure with errors.Is.
var ErrNotFound = ports.ErrNotFound

// AccountStore is an in-memory account store.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]account.Account
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]account.Account)}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return account.Account{}, ErrNotFound
	}
	return a, nil
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

// Update modifies an existing account.
func (s *AccountStore) Update(ctx context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

// List returns accounts with pagination, newest first.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// ResetMonthlyUsage zeroes every account's monthly counter.
func (s *AccountStore) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched int64
	now := time.Now().UTC()
	for id, a := range s.accounts {
		if a.RequestsThisMonth > 0 {
			a.RequestsThisMonth = 0
			a.UpdatedAt = now
			s.accounts[id] = a
			touched++
		}
	}
	return touched, nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
