package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/app"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// HealthChecker reports whether a dependency can serve traffic.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler provides liveness and readiness endpoints.
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a health handler over the given dependency.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness reports that the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the datastore can serve admissions.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionResponse is the /version payload.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// Version is set at build time via -ldflags.
var Version = "dev"

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{Version: Version, Service: "codexd"})
}

// RouterConfig holds the collaborators the router mounts.
type RouterConfig struct {
	Admission *app.AdmissionService
	Features  *app.FeatureLimitService
	Patcher   ports.OutcomePatcher
	Health    *HealthHandler
	Metrics   *metrics.Collector
	Logger    zerolog.Logger

	// Business is the downstream handler for admitted /v1 traffic. The
	// engine only decides admission; what runs behind it is supplied by
	// the caller.
	Business http.Handler

	// RequestTimeout bounds a whole request. Zero means 60s.
	RequestTimeout time.Duration
}

// NewRouter creates the service router: open health/metrics/version
// endpoints, and the /v1 business surface behind admission with per-class
// feature limiters.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Business == nil {
		cfg.Business = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "admitted"})
		})
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", cfg.Health.Liveness)
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Get("/version", versionHandler)

	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(NewAdmissionMiddleware(cfg.Admission, cfg.Patcher, cfg.Metrics, cfg.Logger))

		if cfg.Features != nil {
			v1.Group(func(g chi.Router) {
				g.Use(NewFeatureLimitMiddleware(tier.ClassTrading, cfg.Features))
				g.Handle("/trading/*", cfg.Business)
			})
			v1.Group(func(g chi.Router) {
				g.Use(NewFeatureLimitMiddleware(tier.ClassSettlements, cfg.Features))
				g.Handle("/settlements/*", cfg.Business)
			})
			v1.Group(func(g chi.Router) {
				g.Use(NewFeatureLimitMiddleware(tier.ClassStaking, cfg.Features))
				g.Handle("/staking/*", cfg.Business)
			})
			v1.Group(func(g chi.Router) {
				g.Use(NewFeatureLimitMiddleware(tier.ClassGeneral, cfg.Features))
				g.Handle("/*", cfg.Business)
			})
		} else {
			v1.Handle("/*", cfg.Business)
		}
	})

	return r
}
