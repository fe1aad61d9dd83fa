// Package admission defines the typed rejection errors and result types of
// the admission-control engine. All rejection reasons carry a stable,
// machine-readable code.
package admission

import (
	"errors"
	"fmt"
	"time"
)

// Machine-readable rejection codes.
const (
	CodeMissingCredential   = "missing_credential"
	CodeMalformedCredential = "malformed_credential"
	CodeInvalidCredential   = "invalid_credential"
	CodeAccountNotFound     = "account_not_found"
	CodeAccountInactive     = "account_inactive"
	CodeQuotaExceeded       = "quota_exceeded"
	CodeRateLimitExceeded   = "rate_limit_exceeded"
	CodeAdmissionFailed     = "admission_failed"
)

// AuthError is a credential failure: missing, malformed, or invalid.
// Maps to HTTP 401. Never retriable.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Code
}

// AccountError is an owning-account failure: missing or inactive.
// Maps to HTTP 403. Never retriable.
type AccountError struct {
	Code      string
	AccountID string
}

func (e *AccountError) Error() string {
	return "authorization failed: " + e.Code
}

// QuotaExceededError rejects an admission that would exceed the monthly
// quota. Maps to HTTP 429; resolved by period reset or tier upgrade, not by
// client retry.
type QuotaExceededError struct {
	Quota int64
	Used  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %d of %d used", e.Used, e.Quota)
}

// RateLimitExceededError rejects an admission that would exceed the key's
// per-minute limit. Maps to HTTP 429; safe to retry after ResetAfter.
type RateLimitExceededError struct {
	Limit      int
	ResetAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d/min exceeded, retry in %ds", e.Limit, e.ResetAfterSeconds())
}

// ResetAfterSeconds returns the retry hint in whole seconds, at least 1.
func (e *RateLimitExceededError) ResetAfterSeconds() int {
	secs := int((e.ResetAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// InfraError wraps a transaction or infrastructure failure during
// admission. Maps to HTTP 500; safe to retry since the single admission
// transaction guarantees no partial state persisted.
type InfraError struct {
	Err error
}

func (e *InfraError) Error() string {
	return "admission failed: " + e.Err.Error()
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

// ResetAfter computes how long until the oldest entry in the trailing
// window ages out: max(1s, window - (now - oldest)).
// This is a PURE function.
func ResetAfter(oldest, now time.Time, window time.Duration) time.Duration {
	d := window - now.Sub(oldest)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Ticket is the request-scoped record of a successful admission. The
// LogEntryID is retained so the post-response patch targets exactly the row
// created for this request.
type Ticket struct {
	LogEntryID     string
	KeyID          string
	AccountID      string
	Tier           string
	Permissions    []string
	QuotaRemaining int64
	RateRemaining  int
	RateLimit      int
}

// IsRejection reports whether err is a typed business-rule rejection, as
// opposed to an infrastructure failure.
func IsRejection(err error) bool {
	var authErr *AuthError
	var acctErr *AccountError
	var quotaErr *QuotaExceededError
	var rateErr *RateLimitExceededError
	return errors.As(err, &authErr) ||
		errors.As(err, &acctErr) ||
		errors.As(err, &quotaErr) ||
		errors.As(err, &rateErr)
}
