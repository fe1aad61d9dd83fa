package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Moneyman334/codex-wallet-sub000/adapters/metrics"
	"github.com/Moneyman334/codex-wallet-sub000/domain/tier"
	"github.com/Moneyman334/codex-wallet-sub000/ports"
)

// FeatureLimitService applies the additive per-end-user limiters layered
// on top of key-level admission. Each (class, user) window is independent.
type FeatureLimitService struct {
	limits  map[string]tier.FeatureLimit
	windows ports.FeatureWindowStore
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewFeatureLimitService creates a feature limit service. Classes absent
// from limits are unlimited.
func NewFeatureLimitService(limits []tier.FeatureLimit, windows ports.FeatureWindowStore, clock ports.Clock, col *metrics.Collector, logger zerolog.Logger) *FeatureLimitService {
	byClass := make(map[string]tier.FeatureLimit, len(limits))
	for _, l := range limits {
		byClass[l.Class] = l
	}
	return &FeatureLimitService{
		limits:  byClass,
		windows: windows,
		clock:   clock,
		metrics: col,
		logger:  logger,
	}
}

// Allow checks one end-user action against its feature class window.
// Unconfigured classes always pass. Store failures fail open: the key-level
// admission already happened, and a broken limiter must not take down
// business traffic.
func (s *FeatureLimitService) Allow(ctx context.Context, class, userID string) (tier.WindowResult, error) {
	limit, ok := s.limits[class]
	if !ok || limit.PerUser <= 0 {
		return tier.WindowResult{Allowed: true, Remaining: -1}, nil
	}

	result, err := s.windows.GetAndCheck(ctx, class, userID, limit.PerUser, limit.Window, s.clock.Now())
	if err != nil {
		s.logger.Warn().Err(err).Str("class", class).Msg("feature window check failed, allowing")
		return tier.WindowResult{Allowed: true, Remaining: -1}, nil
	}

	if !result.Allowed && s.metrics != nil {
		s.metrics.FeatureLimitHits.WithLabelValues(class).Inc()
	}
	return result, nil
}
