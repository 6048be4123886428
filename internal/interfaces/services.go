package interfaces

import (
	"context"

	"github.com/bobmcallan/intellivest/internal/models"
)

// PortfolioService applies user actions to holdings and derives views.
// Mutations update in-memory state synchronously and persist in the background.
type PortfolioService interface {
	// Load reads holdings from the store and subscribes to remote changes
	Load(ctx context.Context) error

	Holdings() models.Holdings
	Overview(ctx context.Context) models.PortfolioOverview
	Ledger() models.LedgerSummary
	Series() []models.SeriesPoint

	AddPosition(ctx context.Context, stock models.NewStock) (models.Position, error)
	SellPosition(ctx context.Context, positionID string, req models.SellRequest) (models.RealizedRecord, error)
	EditPosition(ctx context.Context, positionID string, patch models.PositionPatch) (models.Position, error)
	DeletePosition(ctx context.Context, positionID string) (bool, error)
	EditRecord(ctx context.Context, recordID string, patch models.RecordPatch) (models.RealizedRecord, error)
	DeleteRecord(ctx context.Context, recordID string) (bool, error)

	// RefreshPrices refreshes quotes for every held ticker
	RefreshPrices(ctx context.Context) (models.PriceSnapshot, error)

	// Wait blocks until in-flight persistence writes finish
	Wait()
	Close()
}

// QuoteService owns the price snapshot and the sticky rate-limit flag.
type QuoteService interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context, tickers []string) (models.PriceSnapshot, error)
	Snapshot() models.PriceSnapshot
	Lookup() models.PriceLookup
	LimitReached() bool
	ClearLimit(ctx context.Context)
	Wait()
	Close()
}

// EventPublisher receives change events for fan-out to stream clients.
type EventPublisher interface {
	Publish(event models.ChangeEvent)
}
