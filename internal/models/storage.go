package models

import (
	"encoding/json"
	"time"
)

// Document keys held in the store.
const (
	KeyPortfolio   = "portfolio"
	KeyPastRecords = "past_records"
	KeyStockPrices = "stock_prices"
)

// Envelope wraps every stored value. Origin identifies the writing process so
// a subscriber can ignore echoes of its own writes.
type Envelope struct {
	Origin    string          `json:"origin"`
	Revision  int64           `json:"revision"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// StoredPrices is the persisted form of the price snapshot plus the sticky limit flag.
type StoredPrices struct {
	Snapshot     PriceSnapshot `json:"snapshot"`
	LimitReached bool          `json:"limit_reached"`
}

// Change event types
const (
	ChangePositions = "positions"
	ChangeRecords   = "records"
	ChangePrices    = "prices"
	ChangeLimit     = "limit"
)

// ChangeEvent is broadcast to stream subscribers when state changes.
type ChangeEvent struct {
	Type   string    `json:"type"`
	Action string    `json:"action"` // add, sell, edit, delete, refresh, sync, clear
	ID     string    `json:"id,omitempty"`
	Remote bool      `json:"remote,omitempty"` // applied from another process
	At     time.Time `json:"at"`
}
