// Package tier provides the tier policy: static limits per service level,
// plus the pure window algebra used by feature-class limiters.
package tier

import "time"

// Tier maps a named service level to its numeric limits (value type).
type Tier struct {
	Name              string
	RequestsPerMinute int
	RequestsPerMonth  int64
}

// DefaultName is the tier assumed for accounts with an unknown tier name.
const DefaultName = "free"

// Defaults returns the built-in tier table. Config may override it.
func Defaults() []Tier {
	return []Tier{
		{Name: "free", RequestsPerMinute: 10, RequestsPerMonth: 1_000},
		{Name: "starter", RequestsPerMinute: 60, RequestsPerMonth: 50_000},
		{Name: "growth", RequestsPerMinute: 300, RequestsPerMonth: 500_000},
		{Name: "scale", RequestsPerMinute: 1_000, RequestsPerMonth: 5_000_000},
	}
}

// Find returns the tier with the given name, falling back to DefaultName,
// then to the first entry. This is a PURE function.
func Find(tiers []Tier, name string) Tier {
	for _, t := range tiers {
		if t.Name == name {
			return t
		}
	}
	for _, t := range tiers {
		if t.Name == DefaultName {
			return t
		}
	}
	if len(tiers) > 0 {
		return tiers[0]
	}
	return Tier{Name: DefaultName, RequestsPerMinute: 10, RequestsPerMonth: 1_000}
}

// RateLimitFor resolves the effective per-minute limit for a key: the key's
// own override when set, otherwise the tier's. This is a PURE function.
func RateLimitFor(t Tier, keyOverride int) int {
	if keyOverride > 0 {
		return keyOverride
	}
	return t.RequestsPerMinute
}

// -----------------------------------------------------------------------------
// Feature-class limiters
// -----------------------------------------------------------------------------

// Feature classes for the per-end-user limiters layered on top of key-level
// admission. Each user's window is independent; there is no cross-account
// locking.
const (
	ClassTrading     = "trading"
	ClassSettlements = "settlements"
	ClassStaking     = "staking"
	ClassGeneral     = "general"
)

// FeatureLimit configures one feature class.
type FeatureLimit struct {
	Class   string
	PerUser int           // Requests per window per end-user
	Window  time.Duration // Window duration
}

// Window is the state of one (class, user) fixed window (value type).
type Window struct {
	Count     int
	WindowEnd time.Time
}

// WindowResult is the outcome of a feature window check (value type).
type WindowResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// CheckWindow performs a fixed-window check and returns the updated state.
// The caller persists the new state. This is a PURE function.
func CheckWindow(state Window, limit int, window time.Duration, now time.Time) (WindowResult, Window) {
	if now.After(state.WindowEnd) || state.WindowEnd.IsZero() {
		state = Window{WindowEnd: now.Truncate(window).Add(window)}
	}

	if state.Count < limit {
		state.Count++
		return WindowResult{
			Allowed:   true,
			Remaining: limit - state.Count,
			ResetAt:   state.WindowEnd,
		}, state
	}

	return WindowResult{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   state.WindowEnd,
	}, state
}
