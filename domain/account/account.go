// Package account provides the developer account value type and pure
// status rules.
package account

import "time"

// Status of a developer account.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Account represents a third-party developer account (value type).
// RequestsThisMonth is maintained by the admission ledger and reset by an
// external monthly job.
type Account struct {
	ID                string
	Email             string
	Status            string
	Tier              string
	MonthlyQuota      int64
	RequestsThisMonth int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the account may admit requests.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// QuotaRemaining returns how many admissions remain in the current billing
// period. Never negative. This is a PURE function.
func (a Account) QuotaRemaining() int64 {
	rem := a.MonthlyQuota - a.RequestsThisMonth
	if rem < 0 {
		return 0
	}
	return rem
}
