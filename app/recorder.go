package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// CompletionRecorder applies response outcomes to usage log entries
// asynchronously. Submissions never block the response path: when the
// queue is full the patch is dropped and counted, degrading analytics
// only. Each patch targets exactly the entry created for its request.
type CompletionRecorder struct {
	store   ports.UsageLogStore
	logger  zerolog.Logger
	metrics *metrics.Collector

	queue chan ports.Outcome
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// RecorderConfig tunes the completion recorder.
type RecorderConfig struct {
	QueueSize int
	Workers   int
}

// NewCompletionRecorder creates a recorder and starts its workers.
func NewCompletionRecorder(store ports.UsageLogStore, cfg RecorderConfig, col *metrics.Collector, logger zerolog.Logger) *CompletionRecorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	r := &CompletionRecorder{
		store:   store,
		logger:  logger,
		metrics: col,
		queue:   make(chan ports.Outcome, cfg.QueueSize),
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	return r
}

// Submit queues an outcome patch. Never blocks.
func (r *CompletionRecorder) Submit(o ports.Outcome) {
	select {
	case r.queue <- o:
	default:
		if r.metrics != nil {
			r.metrics.PatchDropped.Inc()
		}
		r.logger.Warn().Str("entry_id", o.EntryID).Msg("outcome queue full, patch dropped")
	}
}

// Close drains pending patches and stops the workers.
func (r *CompletionRecorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
	return nil
}

func (r *CompletionRecorder) worker() {
	defer r.wg.Done()

	for o := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.store.Finish(ctx, o.EntryID, o.StatusCode, o.ResponseTimeMs)
		cancel()
		if err != nil {
			if r.metrics != nil {
				r.metrics.PatchFailures.Inc()
			}
			r.logger.Warn().Err(err).Str("entry_id", o.EntryID).Msg("outcome patch failed")
		}
	}
}

// Ensure interface compliance.
var _ ports.OutcomePatcher = (*CompletionRecorder)(nil)
