package app

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/services/quote"
)

// priceScheduler refreshes prices for held tickers on a fixed interval.
type priceScheduler struct {
	portfolio       interfaces.PortfolioService
	logger          *common.Logger
	interval        time.Duration
	marketHoursOnly bool
	now             func() time.Time
}

func (s *priceScheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Price scheduler: stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one refresh. It reports whether a refresh was attempted.
func (s *priceScheduler) tick(ctx context.Context) bool {
	if s.marketHoursOnly && !quote.IsNSEMarketHours(s.now()) {
		s.logger.Trace().Msg("Price refresh: outside market hours, skipped")
		return false
	}

	start := time.Now()
	snap, err := s.portfolio.RefreshPrices(ctx)
	switch {
	case errors.Is(err, common.ErrUpstreamRateLimited):
		s.logger.Debug().Err(err).Msg("Price refresh: limit reached, skipped")
	case err != nil:
		s.logger.Warn().Err(err).Msg("Price refresh: failed")
	default:
		s.logger.Info().
			Int("prices", len(snap.Prices)).
			Dur("elapsed", time.Since(start)).
			Msg("Price refresh: complete")
	}
	return true
}
