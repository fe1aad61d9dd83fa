package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFeatureWindowStoreLimits(t *testing.T) {
	store := NewFeatureWindowStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	for i := 0; i < 3; i++ {
		result, err := store.GetAndCheck(ctx, "trading", "user_1", 3, time.Minute, now)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed {
			t.Fatalf("check %d should pass", i+1)
		}
	}

	result, err := store.GetAndCheck(ctx, "trading", "user_1", 3, time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("fourth check should be rejected")
	}

	// Independent user.
	result, err = store.GetAndCheck(ctx, "trading", "user_2", 3, time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Error("user_2 should have a fresh window")
	}
}

func TestFeatureWindowStoreConcurrent(t *testing.T) {
	store := NewFeatureWindowStore()
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	const workers = 40
	const limit = 15

	var wg sync.WaitGroup
	allowed := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := store.GetAndCheck(context.Background(), "general", "user_1", limit, time.Minute, now)
			if err != nil {
				t.Error(err)
				return
			}
			allowed[i] = result.Allowed
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range allowed {
		if ok {
			count++
		}
	}
	if count != limit {
		t.Errorf("allowed = %d, want exactly %d", count, limit)
	}
}

func TestFeatureWindowStorePrune(t *testing.T) {
	store := NewFeatureWindowStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	if _, err := store.GetAndCheck(ctx, "staking", "user_1", 5, time.Minute, now); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetAndCheck(ctx, "staking", "user_2", 5, time.Minute, now); err != nil {
		t.Fatal(err)
	}

	n, err := store.PruneExpired(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
}
