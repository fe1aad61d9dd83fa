// Package app orchestrates use cases by wiring domain logic to ports.
// It contains no business rules itself (those live in domain/) and no I/O
// details (those live in adapters/).
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/domain/admission"
	"github.com/Moneyman334/codex-wallet-sub000/domain/credential"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// AdmissionDeps carries the dependencies of AdmissionService.
type AdmissionDeps struct {
	Keys     ports.KeyStore
	Accounts ports.AccountStore
	Ledger   ports.AdmissionLedger
	Hasher   ports.Hasher
	Clock    ports.Clock
	Tiers    ports.TierSource

	// RateWindow is the trailing window for key-level rate limits,
	// normally one minute.
	RateWindow time.Duration

	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// AdmissionService decides whether one inbound request may proceed:
// resolve the credential, gate on the owning account, then hand the
// transactional quota and rate checks to the ledger.
type AdmissionService struct {
	deps AdmissionDeps
}

// NewAdmissionService creates an admission service.
func NewAdmissionService(deps AdmissionDeps) *AdmissionService {
	if deps.RateWindow <= 0 {
		deps.RateWindow = time.Minute
	}
	return &AdmissionService{deps: deps}
}

// Admit runs the full admission sequence for one request. On success the
// returned ticket carries the usage log entry ID for the post-response
// patch. On rejection the error is one of the typed admission errors.
func (s *AdmissionService) Admit(ctx context.Context, authHeader, endpoint, method string) (admission.Ticket, error) {
	start := s.deps.Clock.Now()

	ticket, err := s.admit(ctx, authHeader, endpoint, method)

	elapsed := s.deps.Clock.Now().Sub(start).Seconds()
	s.observe(ticket, err, elapsed, endpoint)
	return ticket, err
}

func (s *AdmissionService) admit(ctx context.Context, authHeader, endpoint, method string) (admission.Ticket, error) {
	raw, ok := credential.ParseBearer(authHeader)
	if !ok {
		return admission.Ticket{}, &admission.AuthError{Code: admission.CodeMissingCredential}
	}

	prefix, ok := credential.LookupPrefix(raw)
	if !ok {
		return admission.Ticket{}, &admission.AuthError{Code: admission.CodeMalformedCredential}
	}

	candidates, err := s.deps.Keys.GetByPrefix(ctx, prefix)
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: err}
	}

	// The prefix scopes the candidate set; only the slow hash comparison
	// authenticates. A prefix collision just means one extra comparison.
	var key credential.Key
	var found bool
	for _, c := range candidates {
		if s.deps.Hasher.Compare(c.Hash, raw) {
			key = c
			found = true
			break
		}
	}
	if !found {
		return admission.Ticket{}, &admission.AuthError{Code: admission.CodeInvalidCredential}
	}

	// Absence is a terminal rejection; anything else is infrastructure
	// and must stay retriable.
	acct, err := s.deps.Accounts.Get(ctx, key.AccountID)
	if errors.Is(err, ports.ErrNotFound) {
		return admission.Ticket{}, &admission.AccountError{
			Code:      admission.CodeAccountNotFound,
			AccountID: key.AccountID,
		}
	}
	if err != nil {
		return admission.Ticket{}, &admission.InfraError{Err: err}
	}
	if !acct.IsActive() {
		return admission.Ticket{}, &admission.AccountError{
			Code:      admission.CodeAccountInactive,
			AccountID: acct.ID,
		}
	}

	// Fail-fast pre-check on the stale counter. The ledger re-reads it
	// under the write lock, so this only short-circuits the obvious case.
	if acct.RequestsThisMonth >= acct.MonthlyQuota {
		return admission.Ticket{}, &admission.QuotaExceededError{
			Quota: acct.MonthlyQuota,
			Used:  acct.RequestsThisMonth,
		}
	}

	t := tier.Find(s.deps.Tiers.Tiers(), acct.Tier)
	limit := tier.RateLimitFor(t, key.RatePerMinute)

	return s.deps.Ledger.Admit(ctx, ports.AdmitRequest{
		Key:        key,
		Endpoint:   endpoint,
		Method:     method,
		RateLimit:  limit,
		RateWindow: s.deps.RateWindow,
		Now:        s.deps.Clock.Now(),
	})
}

func (s *AdmissionService) observe(ticket admission.Ticket, err error, seconds float64, endpoint string) {
	if s.deps.Metrics == nil {
		if err != nil && !admission.IsRejection(err) {
			s.deps.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("admission failed")
		}
		return
	}

	switch {
	case err == nil:
		s.deps.Metrics.RecordAdmission("admitted", "", ticket.Tier, seconds)
	case admission.IsRejection(err):
		s.deps.Metrics.RecordAdmission("rejected", rejectionReason(err), ticket.Tier, seconds)
		s.deps.Logger.Debug().Str("reason", rejectionReason(err)).
			Str("endpoint", endpoint).Msg("admission rejected")
	default:
		s.deps.Metrics.RecordAdmission("error", admission.CodeAdmissionFailed, "", seconds)
		s.deps.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("admission failed")
	}
}

// rejectionReason maps a typed rejection to its stable code.
func rejectionReason(err error) string {
	switch e := err.(type) {
	case *admission.AuthError:
		return e.Code
	case *admission.AccountError:
		return e.Code
	case *admission.QuotaExceededError:
		return admission.CodeQuotaExceeded
	case *admission.RateLimitExceededError:
		return admission.CodeRateLimitExceeded
	default:
		return admission.CodeAdmissionFailed
	}
}
