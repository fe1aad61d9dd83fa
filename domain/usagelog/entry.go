// Package usagelog provides the usage log entry type and pure analytics
// derivation. Entries are created exactly once at admission and mutated
// exactly once with the response outcome.
package usagelog

import "time"

// Burst classification of an entry relative to the previous request on the
// same key.
const (
	BurstFirst  = "first"  // No previous request
	BurstRapid  = "rapid"  // < 1s since previous
	BurstBurst  = "burst"  // < 5s since previous
	BurstSteady = "steady" // < 60s since previous
	BurstIdle   = "idle"   // >= 60s since previous
)

// Entry represents one admitted request (value type). StatusCode and
// ResponseTimeMs stay nil until the outcome patch after response
// completion; everything else is immutable.
type Entry struct {
	ID        string
	KeyID     string
	AccountID string
	Endpoint  string
	Method    string
	Timestamp time.Time

	// Set by the post-response patch.
	StatusCode     *int
	ResponseTimeMs *int64

	// Derived analytics, computed at creation.
	Hour                 int
	DayOfWeek            string
	TimeBucket           string
	SecondsSincePrevious *float64
	BurstClass           string
}

// New builds an entry with its derived analytics. previous is the timestamp
// of the key's previous admitted request, nil if none.
// This is a PURE function.
func New(id, keyID, accountID, endpoint, method string, ts time.Time, previous *time.Time) Entry {
	e := Entry{
		ID:         id,
		KeyID:      keyID,
		AccountID:  accountID,
		Endpoint:   endpoint,
		Method:     method,
		Timestamp:  ts,
		Hour:       ts.UTC().Hour(),
		DayOfWeek:  ts.UTC().Weekday().String(),
		TimeBucket: timeBucket(ts.UTC().Hour()),
		BurstClass: BurstFirst,
	}

	if previous != nil {
		secs := ts.Sub(*previous).Seconds()
		if secs < 0 {
			secs = 0
		}
		e.SecondsSincePrevious = &secs
		e.BurstClass = ClassifyBurst(secs)
	}

	return e
}

// ClassifyBurst maps seconds-since-previous to a burst class.
// This is a PURE function.
func ClassifyBurst(secondsSincePrevious float64) string {
	switch {
	case secondsSincePrevious < 1:
		return BurstRapid
	case secondsSincePrevious < 5:
		return BurstBurst
	case secondsSincePrevious < 60:
		return BurstSteady
	default:
		return BurstIdle
	}
}

// WithOutcome returns a copy of the entry with the response outcome set.
func (e Entry) WithOutcome(statusCode int, responseTimeMs int64) Entry {
	e.StatusCode = &statusCode
	e.ResponseTimeMs = &responseTimeMs
	return e
}

// IsComplete reports whether the outcome patch has been applied.
func (e Entry) IsComplete() bool {
	return e.StatusCode != nil && e.ResponseTimeMs != nil
}

func timeBucket(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
