package quote

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/bobmcallan/intellivest/internal/models"
)

// SnapshotLookup resolves prices from the service's current snapshot.
type SnapshotLookup struct {
	svc *Service
}

func (l SnapshotLookup) PriceOf(symbol string, exchange models.Exchange) (float64, bool) {
	l.svc.mu.RLock()
	defer l.svc.mu.RUnlock()
	p, ok := l.svc.snapshot.Prices[models.QualifiedTicker(symbol, exchange)]
	return p, ok
}

// StaticLookup is a fixed price table keyed by qualified ticker.
type StaticLookup map[string]float64

func (l StaticLookup) PriceOf(symbol string, exchange models.Exchange) (float64, bool) {
	p, ok := l[models.QualifiedTicker(symbol, exchange)]
	return p, ok
}

// Placeholder price range for RandomLookup and RandomFetcher.
const (
	RandomMin = 50.0
	RandomMax = 150.0
)

// RandomLookup returns a uniform placeholder price in [RandomMin, RandomMax)
// for every ticker. It never reports a price as unavailable.
type RandomLookup struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomLookup creates a lookup with a deterministic seed.
func NewRandomLookup(seed uint64) *RandomLookup {
	return &RandomLookup{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *RandomLookup) PriceOf(string, models.Exchange) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RandomMin + l.rng.Float64()*(RandomMax-RandomMin), true
}

// RandomFetcher serves placeholder prices through the normal refresh path.
type RandomFetcher struct {
	lookup *RandomLookup
}

// NewRandomFetcher creates a fetcher with a deterministic seed.
func NewRandomFetcher(seed uint64) *RandomFetcher {
	return &RandomFetcher{lookup: NewRandomLookup(seed)}
}

func (f *RandomFetcher) FetchQuotes(ctx context.Context, tickers []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		sym, ex := models.SplitTicker(t)
		out[models.QualifiedTicker(sym, ex)], _ = f.lookup.PriceOf(sym, ex)
	}
	return out, nil
}
