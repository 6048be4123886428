// Package portfolio provides portfolio management services
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/metrics"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/storage"
)

// Service implements PortfolioService. Every mutation is applied to the
// in-memory holdings under one lock, then persisted in the background.
type Service struct {
	store   interfaces.DocumentStore
	quotes  interfaces.QuoteService
	writer  *storage.AsyncWriter
	events  interfaces.EventPublisher
	metrics *metrics.Metrics
	logger  *common.Logger
	now     func() time.Time

	mu       sync.RWMutex
	holdings models.Holdings

	unsubscribe []func()
}

// Option configures the service
type Option func(*Service)

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

// NewService creates a new portfolio service. store may be nil for a purely
// in-memory portfolio; quotes may be nil, in which case every price is unavailable.
func NewService(store interfaces.DocumentStore, quotes interfaces.QuoteService, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		quotes:   quotes,
		logger:   logger,
		now:      time.Now,
		holdings: models.Holdings{Positions: []models.Position{}, Records: []models.RealizedRecord{}},
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

// Load reads positions and records from the store and subscribes to both
// keys. It is safe to call once at startup.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	var positions []models.Position
	if err := s.read(ctx, models.KeyPortfolio, &positions); err != nil {
		return err
	}
	var records []models.RealizedRecord
	if err := s.read(ctx, models.KeyPastRecords, &records); err != nil {
		return err
	}

	s.mu.Lock()
	s.holdings = models.Holdings{Positions: positions, Records: records}.Clone()
	s.mu.Unlock()

	if len(s.unsubscribe) == 0 {
		s.unsubscribe = append(s.unsubscribe,
			s.store.Subscribe(models.KeyPortfolio, s.onRemote),
			s.store.Subscribe(models.KeyPastRecords, s.onRemote),
		)
	}

	s.logger.Info().
		Int("positions", len(positions)).
		Int("records", len(records)).
		Msg("Portfolio loaded")
	return nil
}

func (s *Service) read(ctx context.Context, key string, out any) error {
	raw, found, err := s.store.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", common.ErrPersistence, key, err)
	}
	if !found {
		return nil
	}
	_, rev, err := storage.Decode(raw, out)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %w", common.ErrPersistence, key, err)
	}
	s.writer.Observe(key, rev)
	return nil
}

// onRemote replaces in-memory state with a value written by another origin.
// Echoes of this service's own writes are ignored.
func (s *Service) onRemote(key string, raw json.RawMessage) {
	var (
		origin string
		rev    int64
		err    error
	)

	switch key {
	case models.KeyPortfolio:
		positions := []models.Position{}
		if raw != nil {
			origin, rev, err = storage.Decode(raw, &positions)
		}
		if err != nil || origin == s.writer.Origin() {
			break
		}
		s.writer.Observe(key, rev)
		s.mu.Lock()
		s.holdings = models.Holdings{Positions: positions, Records: s.holdings.Records}.Clone()
		s.mu.Unlock()
		s.publish(models.ChangePositions, "sync", "", true)

	case models.KeyPastRecords:
		records := []models.RealizedRecord{}
		if raw != nil {
			origin, rev, err = storage.Decode(raw, &records)
		}
		if err != nil || origin == s.writer.Origin() {
			break
		}
		s.writer.Observe(key, rev)
		s.mu.Lock()
		s.holdings = models.Holdings{Positions: s.holdings.Positions, Records: records}.Clone()
		s.mu.Unlock()
		s.publish(models.ChangeRecords, "sync", "", true)

	default:
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Ignoring unreadable remote change")
		return
	}
	if origin != s.writer.Origin() {
		s.metrics.RemoteUpdate(key)
	}
}

// Holdings returns a copy of the current positions and records.
func (s *Service) Holdings() models.Holdings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holdings.Clone()
}

// Overview values the open positions against the current price snapshot and
// summarizes the ledger.
func (s *Service) Overview(_ context.Context) models.PortfolioOverview {
	h := s.Holdings()

	var lookup models.PriceLookup
	out := models.PortfolioOverview{}
	if s.quotes != nil {
		lookup = s.quotes.Lookup()
		out.PricesUpdated = s.quotes.Snapshot().LastUpdated
		out.LimitReached = s.quotes.LimitReached()
	}
	out.View = ComputePortfolioViewAt(h.Positions, lookup, s.now().UTC())
	out.Ledger = SummarizeLedger(h.Records)
	return out
}

// Ledger summarizes the realized records.
func (s *Service) Ledger() models.LedgerSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SummarizeLedger(s.holdings.Records)
}

// Series returns the cumulative realized P/L per business day.
func (s *Service) Series() []models.SeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BuildCumulativeSeries(s.holdings.Records)
}

// AddPosition opens a new position.
func (s *Service) AddPosition(_ context.Context, stock models.NewStock) (models.Position, error) {
	s.mu.Lock()
	next, pos, err := Add(s.holdings, stock, "")
	if err != nil {
		s.mu.Unlock()
		return models.Position{}, s.rejected("add", err)
	}
	s.holdings = next
	s.persistPositions()
	s.mu.Unlock()

	s.applied("add", models.ChangePositions, pos.ID)
	s.logger.Info().Str("id", pos.ID).Str("ticker", pos.Ticker()).Float64("quantity", pos.Quantity).Msg("Position added")
	return pos, nil
}

// SellPosition sells part or all of a position and records the realized profit.
// The position change and the new record are applied together.
func (s *Service) SellPosition(_ context.Context, positionID string, req models.SellRequest) (models.RealizedRecord, error) {
	s.mu.Lock()
	next, rec, err := Sell(s.holdings, positionID, req.Price, req.Quantity, req.Date, "")
	if err != nil {
		s.mu.Unlock()
		return models.RealizedRecord{}, s.rejected("sell", err)
	}
	s.holdings = next
	s.persistPositions()
	s.persistRecords()
	s.mu.Unlock()

	s.applied("sell", models.ChangePositions, positionID)
	s.publish(models.ChangeRecords, "sell", rec.ID, false)
	s.logger.Info().
		Str("position", positionID).
		Str("record", rec.ID).
		Float64("quantity", rec.Quantity).
		Float64("profit", rec.Profit).
		Msg("Position sold")
	return rec, nil
}

// EditPosition replaces the patched fields of a position.
func (s *Service) EditPosition(_ context.Context, positionID string, patch models.PositionPatch) (models.Position, error) {
	s.mu.Lock()
	next, pos, err := Edit(s.holdings, positionID, patch)
	if err != nil {
		s.mu.Unlock()
		return models.Position{}, s.rejected("edit", err)
	}
	s.holdings = next
	s.persistPositions()
	s.mu.Unlock()

	s.applied("edit", models.ChangePositions, pos.ID)
	return pos, nil
}

// DeletePosition removes a position. Deleting an unknown id reports false
// and writes nothing.
func (s *Service) DeletePosition(_ context.Context, positionID string) (bool, error) {
	s.mu.Lock()
	next, changed := Delete(s.holdings, positionID)
	if changed {
		s.holdings = next
		s.persistPositions()
	}
	s.mu.Unlock()

	if changed {
		s.applied("delete", models.ChangePositions, positionID)
	}
	return changed, nil
}

// EditRecord replaces the patched fields of a realized record.
func (s *Service) EditRecord(_ context.Context, recordID string, patch models.RecordPatch) (models.RealizedRecord, error) {
	s.mu.Lock()
	next, rec, err := EditRecord(s.holdings, recordID, patch)
	if err != nil {
		s.mu.Unlock()
		return models.RealizedRecord{}, s.rejected("edit_record", err)
	}
	s.holdings = next
	s.persistRecords()
	s.mu.Unlock()

	s.applied("edit_record", models.ChangeRecords, rec.ID)
	return rec, nil
}

// DeleteRecord removes a realized record. Idempotent.
func (s *Service) DeleteRecord(_ context.Context, recordID string) (bool, error) {
	s.mu.Lock()
	next, changed := DeleteRecord(s.holdings, recordID)
	if changed {
		s.holdings = next
		s.persistRecords()
	}
	s.mu.Unlock()

	if changed {
		s.applied("delete_record", models.ChangeRecords, recordID)
	}
	return changed, nil
}

// RefreshPrices refreshes quotes for every distinct held ticker.
func (s *Service) RefreshPrices(ctx context.Context) (models.PriceSnapshot, error) {
	if s.quotes == nil {
		return models.PriceSnapshot{}, errors.New("no quote service configured")
	}
	h := s.Holdings()
	tickers := make([]string, 0, len(h.Positions))
	for _, p := range h.Positions {
		tickers = append(tickers, p.Ticker())
	}
	return s.quotes.Refresh(ctx, tickers)
}

// Wait blocks until background writes finish.
func (s *Service) Wait() {
	s.writer.Wait()
}

// Close stops listening for remote changes and drains pending writes.
func (s *Service) Close() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil
	s.Wait()
}

// persistPositions and persistRecords must be called with mu held so the
// sealed revision order matches the order of in-memory changes.
func (s *Service) persistPositions() {
	s.writer.Put(models.KeyPortfolio, s.holdings.Positions)
}

func (s *Service) persistRecords() {
	s.writer.Put(models.KeyPastRecords, s.holdings.Records)
}

func (s *Service) applied(action, changeType, id string) {
	s.metrics.TransactionApplied(action)
	s.publish(changeType, action, id, false)
}

func (s *Service) rejected(action string, err error) error {
	s.metrics.TransactionRejected(action, common.ErrorCode(err))
	s.logger.Debug().Err(err).Str("action", action).Msg("Transaction rejected")
	return err
}

func (s *Service) publish(changeType, action, id string, remote bool) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.ChangeEvent{
		Type:   changeType,
		Action: action,
		ID:     id,
		Remote: remote,
		At:     s.now().UTC(),
	})
}

// Ensure Service implements PortfolioService
var _ interfaces.PortfolioService = (*Service)(nil)
