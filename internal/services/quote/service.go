// Package quote owns the price snapshot: batched refresh from a quote
// provider, the sticky rate-limit flag, and persistence of both.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/metrics"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/storage"
)

var (
	// ErrLimitReached is returned by Refresh while the sticky flag is set.
	ErrLimitReached = fmt.Errorf("%w: refresh disabled until the limit is cleared", common.ErrUpstreamRateLimited)
	// ErrNoSource is returned by Refresh when no quote fetcher is configured.
	ErrNoSource = errors.New("no quote source configured")
)

// Service implements QuoteService.
type Service struct {
	fetcher   interfaces.QuoteFetcher
	store     interfaces.DocumentStore
	writer    *storage.AsyncWriter
	events    interfaces.EventPublisher
	metrics   *metrics.Metrics
	logger    *common.Logger
	batchSize int
	now       func() time.Time // injectable clock for testing

	mu       sync.RWMutex
	snapshot models.PriceSnapshot

	limitReached atomic.Bool
	unsubscribe  func()
}

// Option configures the service
type Option func(*Service)

// WithBatchSize sets the number of tickers per upstream request.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithEvents sets the change event publisher.
func WithEvents(p interfaces.EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOrigin sets the envelope origin. Defaults to a random UUID.
func WithOrigin(origin string) Option {
	return func(s *Service) {
		s.writer = storage.NewAsyncWriter(s.store, origin, s.logger, s.onWrite)
	}
}

// NewService creates a quote service. store may be nil, in which case the
// snapshot lives only in memory.
func NewService(fetcher interfaces.QuoteFetcher, store interfaces.DocumentStore, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		batchSize: common.DefaultBatchSize,
		now:       time.Now,
		snapshot:  models.PriceSnapshot{Prices: map[string]float64{}},
	}
	s.writer = storage.NewAsyncWriter(store, uuid.NewString(), logger, s.onWrite)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) onWrite(key string, err error) {
	s.metrics.PersistenceWrite(key, err)
}

// Load restores the snapshot and limit flag from the store and subscribes to
// changes made by other processes.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	raw, found, err := s.store.Read(ctx, models.KeyStockPrices)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", common.ErrPersistence, models.KeyStockPrices, err)
	}
	if found {
		if err := s.apply(raw, false); err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring unreadable stored prices")
		}
	}
	if s.unsubscribe == nil {
		s.unsubscribe = s.store.Subscribe(models.KeyStockPrices, s.onRemote)
	}
	return nil
}

func (s *Service) onRemote(_ string, raw json.RawMessage) {
	if raw == nil {
		return
	}
	if err := s.apply(raw, true); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring unreadable price update")
	}
}

// apply replaces state from a stored value. Remote values written by this
// service are echoes and are ignored.
func (s *Service) apply(raw json.RawMessage, remote bool) error {
	var stored models.StoredPrices
	origin, rev, err := storage.Decode(raw, &stored)
	if err != nil {
		return err
	}
	if remote && origin == s.writer.Origin() {
		return nil
	}
	s.writer.Observe(models.KeyStockPrices, rev)

	if stored.Snapshot.Prices == nil {
		stored.Snapshot.Prices = map[string]float64{}
	}
	s.mu.Lock()
	s.snapshot = stored.Snapshot
	s.mu.Unlock()
	s.limitReached.Store(stored.LimitReached)

	s.metrics.SetPricesKnown(len(stored.Snapshot.Prices))
	s.metrics.SetLimitReached(stored.LimitReached)
	if remote {
		s.metrics.RemoteUpdate(models.KeyStockPrices)
		s.publish(models.ChangeEvent{Type: models.ChangePrices, Action: "sync", Remote: true})
	}
	return nil
}

// Refresh fetches prices for tickers in batches and swaps in a complete new
// snapshot. Any batch failure leaves the current snapshot untouched. A rate
// limit sets the sticky flag; while it is set Refresh fails immediately.
// Concurrent refreshes are not serialized; the last to finish wins.
func (s *Service) Refresh(ctx context.Context, tickers []string) (models.PriceSnapshot, error) {
	started := time.Now()
	if s.limitReached.Load() {
		s.metrics.QuoteRefresh("blocked", started)
		return s.Snapshot(), ErrLimitReached
	}
	if s.fetcher == nil {
		return s.Snapshot(), ErrNoSource
	}

	tickers = normalizeTickers(tickers)
	prices := make(map[string]float64, len(tickers))

	for i := 0; i < len(tickers); i += s.batchSize {
		end := i + s.batchSize
		if end > len(tickers) {
			end = len(tickers)
		}
		batch := tickers[i:end]

		s.metrics.QuoteBatch()
		got, err := s.fetcher.FetchQuotes(ctx, batch)
		if err != nil {
			if errors.Is(err, common.ErrUpstreamRateLimited) {
				s.setLimit(true)
				s.metrics.QuoteRefresh("rate_limited", started)
				s.logger.Warn().Err(err).Int("batch_start", i).Msg("Quote provider rate limit reached; refresh disabled")
				return s.Snapshot(), err
			}
			s.metrics.QuoteRefresh("error", started)
			return s.Snapshot(), fmt.Errorf("fetch quotes (batch %d-%d): %w", i, end-1, err)
		}
		for ticker, price := range got {
			if common.IsPositiveFinite(price) {
				prices[strings.ToUpper(ticker)] = price
			}
		}
	}

	snap := models.PriceSnapshot{Prices: prices, LastUpdated: s.now().UTC()}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.persist()
	s.metrics.SetPricesKnown(len(prices))
	s.metrics.QuoteRefresh("ok", started)
	s.publish(models.ChangeEvent{Type: models.ChangePrices, Action: "refresh"})

	s.logger.Info().
		Int("requested", len(tickers)).
		Int("resolved", len(prices)).
		Dur("elapsed", time.Since(started)).
		Msg("Prices refreshed")

	return snap.Clone(), nil
}

// Snapshot returns a copy of the current snapshot.
func (s *Service) Snapshot() models.PriceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Lookup returns a PriceLookup over the live snapshot.
func (s *Service) Lookup() models.PriceLookup {
	return SnapshotLookup{svc: s}
}

// LimitReached reports whether the sticky rate-limit flag is set.
func (s *Service) LimitReached() bool {
	return s.limitReached.Load()
}

// ClearLimit re-enables refresh.
func (s *Service) ClearLimit(_ context.Context) {
	if !s.limitReached.Load() {
		return
	}
	s.setLimit(false)
	s.logger.Info().Msg("Quote rate-limit flag cleared")
}

func (s *Service) setLimit(v bool) {
	s.limitReached.Store(v)
	s.metrics.SetLimitReached(v)
	s.persist()
	action := "set"
	if !v {
		action = "clear"
	}
	s.publish(models.ChangeEvent{Type: models.ChangeLimit, Action: action})
}

func (s *Service) persist() {
	s.mu.RLock()
	stored := models.StoredPrices{Snapshot: s.snapshot.Clone(), LimitReached: s.limitReached.Load()}
	s.mu.RUnlock()
	s.writer.Put(models.KeyStockPrices, stored)
}

func (s *Service) publish(e models.ChangeEvent) {
	if s.events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	s.events.Publish(e)
}

// Wait blocks until background writes finish.
func (s *Service) Wait() {
	s.writer.Wait()
}

// Close stops listening for remote changes and drains pending writes.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.Wait()
}

// normalizeTickers upper-cases, de-duplicates and sorts tickers so batches are stable.
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Ensure Service implements QuoteService
var _ interfaces.QuoteService = (*Service)(nil)
