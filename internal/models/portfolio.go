// Package models defines data structures for Intellivest
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Exchange is the venue a position trades on. It selects the price-lookup key.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// NormalizeExchange upper-cases an exchange code. Empty defaults to NSE.
func NormalizeExchange(e Exchange) Exchange {
	s := strings.ToUpper(strings.TrimSpace(string(e)))
	if s == "" {
		return ExchangeNSE
	}
	return Exchange(s)
}

// Valid reports whether the exchange is one the quote clients understand.
func (e Exchange) Valid() bool {
	return e == ExchangeNSE || e == ExchangeBSE
}

// Position is an open holding. Quantity is always > 0; a position sold down to
// zero is removed rather than retained.
type Position struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Exchange Exchange  `json:"exchange"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"` // average purchase price per unit
	Date     time.Time `json:"date"`  // acquisition date
}

// Ticker returns the qualified price-lookup key for the position.
func (p Position) Ticker() string {
	return QualifiedTicker(p.Symbol, p.Exchange)
}

// RealizedRecord is a closed-sale snapshot. One is appended per sell and
// records are never merged.
type RealizedRecord struct {
	ID               string    `json:"id"`
	PositionID       string    `json:"position_id,omitempty"` // originating position
	Symbol           string    `json:"symbol"`
	Exchange         Exchange  `json:"exchange"`
	Quantity         float64   `json:"quantity"`
	PurchasePrice    float64   `json:"purchase_price"`
	PurchaseDate     time.Time `json:"purchase_date"`
	SellPrice        float64   `json:"sell_price"`
	SellDate         time.Time `json:"sell_date"`
	Profit           float64   `json:"profit"`
	ProfitPercentage *float64  `json:"profit_percentage"` // nil when purchase price is zero
	DaysHeld         int       `json:"days_held"`
}

// Holdings is the complete mutable state: open positions plus the realized ledger.
type Holdings struct {
	Positions []Position       `json:"positions"`
	Records   []RealizedRecord `json:"records"`
}

// Clone returns a deep copy so transitions never alias their input.
func (h Holdings) Clone() Holdings {
	out := Holdings{
		Positions: make([]Position, len(h.Positions)),
		Records:   make([]RealizedRecord, len(h.Records)),
	}
	copy(out.Positions, h.Positions)
	for i, r := range h.Records {
		if r.ProfitPercentage != nil {
			v := *r.ProfitPercentage
			r.ProfitPercentage = &v
		}
		out.Records[i] = r
	}
	return out
}

// FindPosition returns the index of the position with id, or -1.
func (h Holdings) FindPosition(id string) int {
	for i := range h.Positions {
		if h.Positions[i].ID == id {
			return i
		}
	}
	return -1
}

// FindRecord returns the index of the record with id, or -1.
func (h Holdings) FindRecord(id string) int {
	for i := range h.Records {
		if h.Records[i].ID == id {
			return i
		}
	}
	return -1
}

// NewStock is the input to an add.
type NewStock struct {
	Symbol   string    `json:"symbol"`
	Exchange Exchange  `json:"exchange"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Date     time.Time `json:"date"` // zero means today
}

// PositionPatch replaces the named (non-nil) fields of a position.
type PositionPatch struct {
	Symbol   *string    `json:"symbol,omitempty"`
	Exchange *Exchange  `json:"exchange,omitempty"`
	Quantity *float64   `json:"quantity,omitempty"`
	Price    *float64   `json:"price,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
}

// RecordPatch replaces the named (non-nil) fields of a realized record.
// Derived fields are taken as supplied unless Recompute is set, in which case
// profit, profit percentage and days held are derived from the patched raw fields.
type RecordPatch struct {
	Symbol           *string    `json:"symbol,omitempty"`
	Exchange         *Exchange  `json:"exchange,omitempty"`
	Quantity         *float64   `json:"quantity,omitempty"`
	PurchasePrice    *float64   `json:"purchase_price,omitempty"`
	PurchaseDate     *time.Time `json:"purchase_date,omitempty"`
	SellPrice        *float64   `json:"sell_price,omitempty"`
	SellDate         *time.Time `json:"sell_date,omitempty"`
	Profit           *float64   `json:"profit,omitempty"`
	ProfitPercentage *float64   `json:"profit_percentage,omitempty"`
	DaysHeld         *int       `json:"days_held,omitempty"`
	Recompute        bool       `json:"recompute,omitempty"`
}

// PositionView is a position with its valuation. Price-dependent figures are
// nil when the lookup has no price for the ticker.
type PositionView struct {
	Position
	Invested         float64  `json:"invested"`
	CurrentPrice     *float64 `json:"current_price"`
	CurrentValue     *float64 `json:"current_value"`
	Profit           *float64 `json:"profit"`
	ProfitPercentage *float64 `json:"profit_percentage"`
	DaysHeld         int      `json:"days_held"`
}

// PortfolioView is the whole-portfolio valuation.
type PortfolioView struct {
	AsOf                time.Time      `json:"as_of"`
	TotalInvested       float64        `json:"total_invested"`
	TotalCurrentValue   float64        `json:"total_current_value"` // known prices only
	TotalUnrealized     *float64       `json:"total_unrealized"`     // nil if any price is unavailable
	TotalUnrealizedPct  *float64       `json:"total_unrealized_pct"`
	AnyPriceUnavailable bool           `json:"any_price_unavailable"`
	Positions           []PositionView `json:"positions"`
	BestPerformer       *PositionView  `json:"best_performer"`
	WorstPerformer      *PositionView  `json:"worst_performer"`
	LongestHeld         *PositionView  `json:"longest_held"`
	MostRecent          *PositionView  `json:"most_recent"`
}

// LedgerSummary aggregates the realized ledger.
type LedgerSummary struct {
	Count             int             `json:"count"`
	TotalRealized     float64         `json:"total_realized"`
	TotalProceeds     float64         `json:"total_proceeds"` // Σ quantity*sell_price
	Winners           int             `json:"winners"`
	Losers            int             `json:"losers"`
	BestByPercentage  *RealizedRecord `json:"best_by_percentage"`
	WorstByPercentage *RealizedRecord `json:"worst_by_percentage"`
	BestByProfit      *RealizedRecord `json:"best_by_profit"`
	WorstByProfit     *RealizedRecord `json:"worst_by_profit"`
	LongestHeld       *RealizedRecord `json:"longest_held"`
	MostRecent        *RealizedRecord `json:"most_recent"`
}

// SeriesPoint is one business day of the cumulative realized P/L series.
type SeriesPoint struct {
	Date             time.Time `json:"date"`
	CumulativeProfit float64   `json:"cumulative_profit"`
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (p SeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date             string  `json:"date"`
		CumulativeProfit float64 `json:"cumulative_profit"`
	}{p.Date.Format("2006-01-02"), p.CumulativeProfit})
}

// SellRequest is the input to a sell.
type SellRequest struct {
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Date     time.Time `json:"date"` // zero means today
}

// PortfolioOverview combines the valuation, the ledger and the snapshot state.
type PortfolioOverview struct {
	View          PortfolioView `json:"portfolio"`
	Ledger        LedgerSummary `json:"ledger"`
	PricesUpdated time.Time     `json:"prices_updated"`
	LimitReached  bool          `json:"limit_reached"`
}
