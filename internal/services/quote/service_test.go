package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/storage/memory"
)

type mockFetcher struct {
	mu      sync.Mutex
	batches [][]string
	prices  map[string]float64
	failOn  int // 1-based batch number that fails; 0 never fails
	err     error
}

func (m *mockFetcher) FetchQuotes(_ context.Context, tickers []string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), tickers...))
	if m.failOn == len(m.batches) {
		return nil, m.err
	}
	out := make(map[string]float64)
	for _, t := range tickers {
		if p, ok := m.prices[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(e models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type+":"+e.Action)
	}
	return out
}

func tickers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SYM%03d.NSE", i)
	}
	return out
}

func TestRefresh_BatchesAtFifty(t *testing.T) {
	all := tickers(120)
	prices := make(map[string]float64)
	for i, tk := range all {
		prices[tk] = float64(100 + i)
	}
	f := &mockFetcher{prices: prices}
	svc := NewService(f, nil, common.NewSilentLogger())

	snap, err := svc.Refresh(context.Background(), all)
	require.NoError(t, err)

	require.Len(t, f.batches, 3)
	assert.Len(t, f.batches[0], 50)
	assert.Len(t, f.batches[1], 50)
	assert.Len(t, f.batches[2], 20)
	assert.Len(t, snap.Prices, 120)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestRefresh_DedupesAndNormalizes(t *testing.T) {
	f := &mockFetcher{prices: map[string]float64{"TCS.NSE": 3500}}
	svc := NewService(f, nil, common.NewSilentLogger())

	_, err := svc.Refresh(context.Background(), []string{"tcs.nse", "TCS.NSE", " TCS.NSE ", ""})
	require.NoError(t, err)
	require.Len(t, f.batches, 1)
	assert.Equal(t, []string{"TCS.NSE"}, f.batches[0])

	p, ok := svc.Lookup().PriceOf("tcs", models.ExchangeNSE)
	assert.True(t, ok)
	assert.Equal(t, 3500.0, p)
}

func TestRefresh_UnresolvedTickersAreOmitted(t *testing.T) {
	f := &mockFetcher{prices: map[string]float64{"INFY.NSE": 1500, "BAD.NSE": -1}}
	svc := NewService(f, nil, common.NewSilentLogger())

	snap, err := svc.Refresh(context.Background(), []string{"INFY.NSE", "BAD.NSE", "GONE.BSE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"INFY.NSE": 1500}, snap.Prices)

	_, ok := svc.Lookup().PriceOf("GONE", models.ExchangeBSE)
	assert.False(t, ok)
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	all := tickers(60)
	prices := make(map[string]float64)
	for _, tk := range all {
		prices[tk] = 10
	}
	f := &mockFetcher{prices: prices}
	svc := NewService(f, nil, common.NewSilentLogger())

	first, err := svc.Refresh(context.Background(), all)
	require.NoError(t, err)

	f.prices = map[string]float64{}
	for _, tk := range all {
		f.prices[tk] = 20
	}
	f.failOn = 4 // second batch of the second refresh
	f.err = errors.New("connection reset")

	_, err = svc.Refresh(context.Background(), all)
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrUpstreamRateLimited))
	assert.False(t, svc.LimitReached())
	assert.Equal(t, first.Prices, svc.Snapshot().Prices, "partial results are discarded")
}

func TestRefresh_RateLimitIsSticky(t *testing.T) {
	f := &mockFetcher{
		prices: map[string]float64{"A.NSE": 1},
		failOn: 1,
		err:    fmt.Errorf("%w: status 429", common.ErrUpstreamRateLimited),
	}
	pub := &recordingPublisher{}
	svc := NewService(f, nil, common.NewSilentLogger(), WithEvents(pub))

	_, err := svc.Refresh(context.Background(), []string{"A.NSE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUpstreamRateLimited))
	assert.True(t, svc.LimitReached())

	_, err = svc.Refresh(context.Background(), []string{"A.NSE"})
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Len(t, f.batches, 1, "no upstream call while the limit flag is set")

	svc.ClearLimit(context.Background())
	assert.False(t, svc.LimitReached())

	snap, err := svc.Refresh(context.Background(), []string{"A.NSE"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Prices["A.NSE"])

	assert.Equal(t, []string{"limit:set", "limit:clear", "prices:refresh"}, pub.types())
}

func TestService_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	f := &mockFetcher{prices: map[string]float64{"HDFCBANK.NSE": 1650.5}}

	svc := NewService(f, store, common.NewSilentLogger())
	fixed := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	_, err := svc.Refresh(ctx, []string{"HDFCBANK.NSE"})
	require.NoError(t, err)
	svc.Close()

	reloaded := NewService(f, store, common.NewSilentLogger())
	require.NoError(t, reloaded.Load(ctx))
	defer reloaded.Close()

	snap := reloaded.Snapshot()
	assert.Equal(t, 1650.5, snap.Prices["HDFCBANK.NSE"])
	assert.True(t, fixed.Equal(snap.LastUpdated))
	assert.False(t, reloaded.LimitReached())
}

func TestService_LimitFlagSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	f := &mockFetcher{failOn: 1, err: common.ErrUpstreamRateLimited}

	svc := NewService(f, store, common.NewSilentLogger())
	_, _ = svc.Refresh(ctx, []string{"X.NSE"})
	svc.Close()

	reloaded := NewService(f, store, common.NewSilentLogger())
	require.NoError(t, reloaded.Load(ctx))
	defer reloaded.Close()
	assert.True(t, reloaded.LimitReached())
}

func TestService_AppliesRemoteChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())

	pub := &recordingPublisher{}
	local := NewService(&mockFetcher{}, store, common.NewSilentLogger(), WithOrigin("local"), WithEvents(pub))
	require.NoError(t, local.Load(ctx))
	defer local.Close()

	remote := NewService(&mockFetcher{prices: map[string]float64{"ITC.BSE": 430}}, store, common.NewSilentLogger(), WithOrigin("remote"))
	_, err := remote.Refresh(ctx, []string{"ITC.BSE"})
	require.NoError(t, err)
	remote.Wait()

	p, ok := local.Lookup().PriceOf("ITC", models.ExchangeBSE)
	assert.True(t, ok)
	assert.Equal(t, 430.0, p)
	assert.Equal(t, []string{"prices:sync"}, pub.types())
}

func TestService_IgnoresOwnEcho(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	pub := &recordingPublisher{}
	svc := NewService(&mockFetcher{prices: map[string]float64{"A.NSE": 5}}, store, common.NewSilentLogger(), WithEvents(pub))
	require.NoError(t, svc.Load(ctx))
	defer svc.Close()

	_, err := svc.Refresh(ctx, []string{"A.NSE"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []string{"prices:refresh"}, pub.types())
}

func TestRandomFetcher_InRange(t *testing.T) {
	f := NewRandomFetcher(7)
	got, err := f.FetchQuotes(context.Background(), []string{"A.NSE", "b", "C.BSE"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for tk, p := range got {
		assert.GreaterOrEqual(t, p, RandomMin, tk)
		assert.Less(t, p, RandomMax, tk)
	}
	_, ok := got["B.NSE"]
	assert.True(t, ok, "bare symbols default to NSE")
}

func TestStaticLookup(t *testing.T) {
	l := StaticLookup{"SBIN.NSE": 800}
	p, ok := l.PriceOf("sbin", "")
	assert.True(t, ok)
	assert.Equal(t, 800.0, p)
	_, ok = l.PriceOf("SBIN", models.ExchangeBSE)
	assert.False(t, ok)
}

func TestRefresh_NoSource(t *testing.T) {
	svc := NewService(nil, nil, common.NewSilentLogger())
	_, err := svc.Refresh(context.Background(), []string{"A.NSE"})
	assert.ErrorIs(t, err, ErrNoSource)
}
