// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/clock"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/hasher"
	codexhttp "github.com/Moneyman334/codex-wallet-sub000/adapters/http"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/idgen"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/memory"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/adapters/sqlite"
	"github.com/Moneyman334/codex-wallet-sub000/app"
	"github.com/Moneyman334/codex-wallet-sub000/config"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Holder    *config.Holder
	Admission *app.AdmissionService
	Features  *app.FeatureLimitService

	Accounts ports.AccountStore
	Keys     ports.KeyStore
	UsageLog ports.UsageLogStore

	recorder *app.CompletionRecorder
	cron     *cron.Cron
}

// Options tunes application construction.
type Options struct {
	// ConfigPath is the YAML config file. Empty falls back to environment
	// variables.
	ConfigPath string

	// Business handles admitted /v1 traffic. Nil mounts a stub that
	// confirms admission.
	Business http.Handler
}

// New constructs the application from configuration.
func New(opts Options) (*App, error) {
	var holder *config.Holder
	var cfg *config.Config

	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"})

	if opts.ConfigPath != "" {
		h, err := config.NewHolder(opts.ConfigPath, logger)
		if err != nil {
			return nil, err
		}
		holder = h
		cfg = h.Get()
	} else {
		c, err := config.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	logger = NewLogger(cfg.Logging)

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	accounts := sqlite.NewAccountStore(db)
	keys := sqlite.NewKeyStore(db)
	usageLog := sqlite.NewUsageLogStore(db)
	ledger := sqlite.NewAdmissionLedger(db, idgen.UUID{})

	collector := metricsCollector(cfg)

	var tierSource ports.TierSource
	if holder != nil {
		tierSource = config.NewTierSource(holder)
	} else {
		tierSource = staticTiers{cfg: cfg}
	}

	admissionSvc := app.NewAdmissionService(app.AdmissionDeps{
		Keys:       keys,
		Accounts:   accounts,
		Ledger:     ledger,
		Hasher:     hasher.NewBcrypt(cfg.Admission.BcryptCost),
		Clock:      clock.Real{},
		Tiers:      tierSource,
		RateWindow: cfg.Admission.RateWindow,
		Metrics:    collector,
		Logger:     logger,
	})

	recorder := app.NewCompletionRecorder(usageLog, app.RecorderConfig{
		QueueSize: cfg.Admission.RecorderQueue,
		Workers:   cfg.Admission.RecorderWorkers,
	}, collector, logger)

	var windows ports.FeatureWindowStore
	if cfg.Admission.DurableFeatureWindows {
		windows = sqlite.NewFeatureWindowStore(db)
	} else {
		windows = memory.NewFeatureWindowStore()
	}
	features := app.NewFeatureLimitService(cfg.FeatureLimits(), windows, clock.Real{}, collector, logger)

	router := codexhttp.NewRouter(codexhttp.RouterConfig{
		Admission:      admissionSvc,
		Features:       features,
		Patcher:        recorder,
		Health:         codexhttp.NewHealthHandler(db),
		Metrics:        collector,
		Logger:         logger,
		Business:       opts.Business,
		RequestTimeout: cfg.Server.WriteTimeout * 2,
	})

	a := &App{
		Logger: logger,
		DB:     db,
		HTTPServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		Metrics:   collector,
		Holder:    holder,
		Admission: admissionSvc,
		Features:  features,
		Accounts:  accounts,
		Keys:      keys,
		UsageLog:  usageLog,
		recorder:  recorder,
	}

	a.initMaintenance(cfg, keys, usageLog, windows)

	if holder != nil {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
	}

	return a, nil
}

// initMaintenance schedules the recurring jobs: the daily key counter
// reset at midnight UTC, usage log retention pruning, and hourly cleanup
// of expired feature windows. The monthly account quota reset belongs to
// the external billing job and is exposed only through the CLI.
func (a *App) initMaintenance(cfg *config.Config, keys ports.KeyStore, usageLog ports.UsageLogStore, windows ports.FeatureWindowStore) {
	c := cron.New(cron.WithLocation(time.UTC))

	c.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := keys.ResetDailyCounts(ctx)
		if err != nil {
			a.Logger.Error().Err(err).Msg("daily key counter reset failed")
			return
		}
		a.Logger.Info().Int64("keys", n).Msg("daily key counters reset")
	})

	if days := cfg.Retention.UsageLogDays; days > 0 {
		c.AddFunc("30 0 * * *", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			n, err := usageLog.PruneOlderThan(ctx, cutoff)
			if err != nil {
				a.Logger.Error().Err(err).Msg("usage log pruning failed")
				return
			}
			a.Logger.Info().Int64("entries", n).Time("cutoff", cutoff).Msg("usage log pruned")
		})
	}

	c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		// Windows that ended over an hour ago can never be read again.
		n, err := windows.PruneExpired(ctx, time.Now().UTC().Add(-time.Hour))
		if err != nil {
			a.Logger.Error().Err(err).Msg("feature window pruning failed")
			return
		}
		if n > 0 {
			a.Logger.Debug().Int64("windows", n).Msg("expired feature windows pruned")
		}
	})

	a.cron = c
}

// Run starts the scheduler and HTTP server and blocks until the server
// stops.
func (a *App) Run() error {
	a.cron.Start()
	a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("server starting")

	if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the application: HTTP first, then the
// recorder drain, then the database.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info().Msg("shutting down")

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("http shutdown incomplete")
	}

	stopCtx := a.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}

	if err := a.recorder.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("recorder close failed")
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	return a.DB.Close()
}

// NewLogger builds a zerolog logger from config.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "codexd").Logger()
}

func metricsCollector(cfg *config.Config) *metrics.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer)
}

// staticTiers serves a fixed tier table when no config file (and thus no
// hot reload) is in play.
type staticTiers struct {
	cfg *config.Config
}

func (s staticTiers) Tiers() []tier.Tier {
	return s.cfg.TierTable()
}
