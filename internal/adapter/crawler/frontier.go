// Package crawler discovers, filters and fetches the pages to ingest.
package crawler

import (
	"context"

	"go.uber.org/zap"

	"alsrag/internal/adapter/metrics"
	"alsrag/internal/port"
)

// Frontier tries its strategies in order; the first to return any URL wins.
type Frontier struct {
	strategies []port.DiscoveryStrategy
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewFrontier(strategies []port.DiscoveryStrategy, logger *zap.Logger, m *metrics.Metrics) *Frontier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frontier{strategies: strategies, logger: logger, metrics: m}
}

func (f *Frontier) Discover(ctx context.Context, seed string) []string {
	for _, s := range f.strategies {
		if ctx.Err() != nil {
			return nil
		}

		urls, err := s.Discover(ctx, seed)
		if err != nil {
			f.logger.Warn("discovery strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
		}
		if len(urls) > 0 {
			f.logger.Info("discovered urls", zap.String("strategy", s.Name()), zap.Int("count", len(urls)))
			f.metrics.Discovered(s.Name(), len(urls))
			return urls
		}
		f.logger.Info("strategy found no urls", zap.String("strategy", s.Name()))
	}
	return nil
}
