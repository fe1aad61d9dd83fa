package tier

import (
	"testing"
	"time"
)

func TestFind(t *testing.T) {
	table := Defaults()

	if got := Find(table, "growth"); got.Name != "growth" {
		t.Errorf("Find(growth) = %q", got.Name)
	}
	if got := Find(table, "platinum"); got.Name != DefaultName {
		t.Errorf("Find(unknown) = %q, want %q", got.Name, DefaultName)
	}

	// No default entry either: first entry wins.
	custom := []Tier{{Name: "basic", RequestsPerMinute: 5, RequestsPerMonth: 100}}
	if got := Find(custom, "unknown"); got.Name != "basic" {
		t.Errorf("Find with no default = %q, want basic", got.Name)
	}

	// Empty table still yields something sane.
	if got := Find(nil, "anything"); got.RequestsPerMinute <= 0 {
		t.Error("Find on empty table returned unusable tier")
	}
}

func TestRateLimitFor(t *testing.T) {
	tr := Tier{Name: "starter", RequestsPerMinute: 60}

	if got := RateLimitFor(tr, 0); got != 60 {
		t.Errorf("no override: got %d, want 60", got)
	}
	if got := RateLimitFor(tr, 25); got != 25 {
		t.Errorf("override: got %d, want 25", got)
	}
	if got := RateLimitFor(tr, -1); got != 60 {
		t.Errorf("negative override ignored: got %d, want 60", got)
	}
}

func TestCheckWindowCountsWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	window := time.Minute
	limit := 3

	var state Window
	for i := 0; i < limit; i++ {
		result, next := CheckWindow(state, limit, window, now)
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != limit-i-1 {
			t.Errorf("request %d remaining = %d, want %d", i+1, result.Remaining, limit-i-1)
		}
		state = next
	}

	result, state := CheckWindow(state, limit, window, now)
	if result.Allowed {
		t.Error("request over limit should be rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("rejected remaining = %d, want 0", result.Remaining)
	}
	if state.Count != limit {
		t.Errorf("rejection must not grow the count: %d", state.Count)
	}
}

func TestCheckWindowResets(t *testing.T) {
	window := time.Minute
	start := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	_, state := CheckWindow(Window{}, 1, window, start)

	// Second request in the same window is rejected.
	result, state := CheckWindow(state, 1, window, start.Add(5*time.Second))
	if result.Allowed {
		t.Fatal("should be rejected inside the window")
	}

	// After the window end the counter starts over.
	result, _ = CheckWindow(state, 1, window, state.WindowEnd.Add(time.Second))
	if !result.Allowed {
		t.Error("should be allowed in the next window")
	}
}

func TestCheckWindowResetAt(t *testing.T) {
	window := time.Minute
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	result, state := CheckWindow(Window{}, 5, window, now)
	wantEnd := now.Truncate(window).Add(window)
	if !result.ResetAt.Equal(wantEnd) {
		t.Errorf("ResetAt = %v, want %v", result.ResetAt, wantEnd)
	}
	if !state.WindowEnd.Equal(wantEnd) {
		t.Errorf("WindowEnd = %v, want %v", state.WindowEnd, wantEnd)
	}
}
