// Package http adapts the admission pipeline to HTTP: middleware that
// decides each request, rejection rendering, and the service router.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/app"
	"github.com/Moneyman334/codex-wallet-sub000/domain/admission"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

type contextKey int

const ticketKey contextKey = iota

// TicketFromContext returns the admission ticket stored by the admission
// middleware.
func TicketFromContext(ctx context.Context) (admission.Ticket, bool) {
	t, ok := ctx.Value(ticketKey).(admission.Ticket)
	return t, ok
}

// endUserHeader identifies the end user on whose behalf a business request
// is made, for the per-user feature limiters.
const endUserHeader = "X-End-User"

// NewAdmissionMiddleware gates every request through the admission
// service. Rejections are rendered as JSON with machine-readable codes;
// admitted requests carry their ticket in the context and their response
// outcome is queued for the usage log patch after the handler returns.
func NewAdmissionMiddleware(svc *app.AdmissionService, patcher ports.OutcomePatcher, col *metrics.Collector, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if col != nil {
				col.RequestsInFlight.Inc()
				defer col.RequestsInFlight.Dec()
			}

			// The admission transaction must commit or roll back whole even
			// if the client disconnects mid-decision, so the ledger call
			// runs on a context detached from the request's cancellation.
			ctx := context.WithoutCancel(r.Context())

			ticket, err := svc.Admit(ctx, r.Header.Get("Authorization"), r.URL.Path, r.Method)
			if err != nil {
				writeRejection(w, err)
				return
			}

			w.Header().Set("X-Quota-Remaining", strconv.FormatInt(ticket.QuotaRemaining, 10))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ticket.RateLimit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(ticket.RateRemaining))

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), ticketKey, ticket)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			patcher.Submit(ports.Outcome{
				EntryID:        ticket.LogEntryID,
				StatusCode:     status,
				ResponseTimeMs: time.Since(start).Milliseconds(),
			})
		})
	}
}

// NewFeatureLimitMiddleware layers a per-end-user limiter for one feature
// class on top of admission. The end user comes from the X-End-User
// header; requests without one fall back to the admitted account, so
// server-to-server callers without user attribution still get a bound.
func NewFeatureLimitMiddleware(class string, svc *app.FeatureLimitService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(endUserHeader)
			if userID == "" {
				if ticket, ok := TicketFromContext(r.Context()); ok {
					userID = ticket.AccountID
				}
			}
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := svc.Allow(r.Context(), class, userID)
			if err != nil || result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, rejectionBody{
				Error:   "feature_limit_exceeded",
				Message: "too many " + class + " requests for this user",
				Extra:   map[string]any{"class": class, "resetInSeconds": retryAfter},
			})
		})
	}
}

// NewLoggingMiddleware logs HTTP requests, skipping health and metrics
// probes.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/metrics" || r.URL.Path == "/health" ||
				r.URL.Path == "/health/live" || r.URL.Path == "/health/ready" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// rejectionBody is the JSON envelope for every rejection.
type rejectionBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Extra   map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object.
func (b rejectionBody) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"error":   b.Error,
		"message": b.Message,
	}
	for k, v := range b.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// writeRejection renders a typed admission error as an HTTP response.
func writeRejection(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *admission.AuthError:
		writeJSON(w, http.StatusUnauthorized, rejectionBody{
			Error:   e.Code,
			Message: e.Error(),
		})
	case *admission.AccountError:
		writeJSON(w, http.StatusForbidden, rejectionBody{
			Error:   e.Code,
			Message: e.Error(),
		})
	case *admission.QuotaExceededError:
		writeJSON(w, http.StatusTooManyRequests, rejectionBody{
			Error:   admission.CodeQuotaExceeded,
			Message: e.Error(),
			Extra:   map[string]any{"quota": e.Quota, "used": e.Used},
		})
	case *admission.RateLimitExceededError:
		secs := e.ResetAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(e.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, http.StatusTooManyRequests, rejectionBody{
			Error:   admission.CodeRateLimitExceeded,
			Message: e.Error(),
			Extra:   map[string]any{"limit": e.Limit, "resetInSeconds": secs},
		})
	default:
		writeJSON(w, http.StatusInternalServerError, rejectionBody{
			Error:   admission.CodeAdmissionFailed,
			Message: "admission could not be decided, safe to retry",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
