package interfaces

import "context"

// QuoteFetcher resolves qualified tickers (e.g. "RELIANCE.NSE") to current
// prices. Tickers with no resolvable price are omitted from the result.
// A provider rate limit is reported as common.ErrUpstreamRateLimited.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, tickers []string) (map[string]float64, error)
}
