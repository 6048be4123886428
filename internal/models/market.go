package models

import (
	"strings"
	"time"
)

// QualifiedTicker joins a symbol and its exchange, e.g. "RELIANCE.NSE".
func QualifiedTicker(symbol string, exchange Exchange) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "." + string(NormalizeExchange(exchange))
}

// SplitTicker splits a qualified ticker back into symbol and exchange.
// A bare symbol is treated as NSE.
func SplitTicker(ticker string) (string, Exchange) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if i := strings.LastIndex(ticker, "."); i > 0 {
		return ticker[:i], NormalizeExchange(Exchange(ticker[i+1:]))
	}
	return ticker, ExchangeNSE
}

// PriceLookup resolves the current price for a symbol on an exchange.
// ok is false when the price is unavailable, which is a valid outcome.
type PriceLookup interface {
	PriceOf(symbol string, exchange Exchange) (price float64, ok bool)
}

// PriceSnapshot maps qualified tickers to last-known prices. It is replaced
// wholesale on refresh and never partially updated.
type PriceSnapshot struct {
	Prices      map[string]float64 `json:"prices"`
	LastUpdated time.Time          `json:"last_updated"`
}

// Clone returns a copy with its own map.
func (s PriceSnapshot) Clone() PriceSnapshot {
	out := PriceSnapshot{LastUpdated: s.LastUpdated, Prices: make(map[string]float64, len(s.Prices))}
	for k, v := range s.Prices {
		out.Prices[k] = v
	}
	return out
}

// RealTimeQuote holds a live snapshot from a real-time price source
type RealTimeQuote struct {
	Code          string    `json:"code"`
	Close         float64   `json:"close"`          // current/last price
	PreviousClose float64   `json:"previous_close"` // previous day's close
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_p"`
	Timestamp     time.Time `json:"timestamp"`
}
