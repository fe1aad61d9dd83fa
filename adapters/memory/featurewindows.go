package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

const windowShards = 32

// FeatureWindowStore tracks fixed feature-class windows in memory,
// sharded by (class, user) hash to keep lock contention low under
// concurrent traffic.
type FeatureWindowStore struct {
	shards [windowShards]windowShard
}

type windowShard struct {
	mu      sync.Mutex
	windows map[string]tier.Window
}

// NewFeatureWindowStore creates an empty sharded window store.
func NewFeatureWindowStore() *FeatureWindowStore {
	s := &FeatureWindowStore{}
	for i := range s.shards {
		s.shards[i].windows = make(map[string]tier.Window)
	}
	return s
}

func (s *FeatureWindowStore) shard(key string) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%windowShards]
}

// GetAndCheck atomically loads, checks, and stores a (class, user) window.
func (s *FeatureWindowStore) GetAndCheck(ctx context.Context, class, userID string, limit int, window time.Duration, now time.Time) (tier.WindowResult, error) {
	key := class + "\x00" + userID
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	result, newState := tier.CheckWindow(sh.windows[key], limit, window, now)
	sh.windows[key] = newState
	return result, nil
}

// PruneExpired removes windows that ended before the cutoff.
func (s *FeatureWindowStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, w := range sh.windows {
			if w.WindowEnd.Before(cutoff) {
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Ensure interface compliance.
var _ ports.FeatureWindowStore = (*FeatureWindowStore)(nil)
