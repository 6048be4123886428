package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/metrics"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/services/quote"
	"github.com/bobmcallan/intellivest/internal/storage"
	"github.com/bobmcallan/intellivest/internal/storage/memory"
)

type fixedFetcher map[string]float64

func (f fixedFetcher) FetchQuotes(_ context.Context, tickers []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, t := range tickers {
		if p, ok := f[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (l *eventLog) Publish(e models.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type+":"+e.Action)
	}
	return out
}

func newTestService(t *testing.T, store *memory.Store, prices map[string]float64, opts ...Option) *Service {
	t.Helper()
	logger := common.NewSilentLogger()
	quotes := quote.NewService(fixedFetcher(prices), nil, logger)
	svc := NewService(store, quotes, logger, opts...)
	require.NoError(t, svc.Load(context.Background()))
	t.Cleanup(svc.Close)
	return svc
}

func TestService_AddSellPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	svc := newTestService(t, store, nil)

	pos, err := svc.AddPosition(ctx, models.NewStock{Symbol: "RELIANCE", Quantity: 10, Price: 100, Date: date(2024, 1, 1)})
	require.NoError(t, err)

	rec, err := svc.SellPosition(ctx, pos.ID, models.SellRequest{Price: 150, Quantity: 4, Date: date(2024, 1, 11)})
	require.NoError(t, err)
	assert.Equal(t, 200.0, rec.Profit)
	svc.Wait()

	raw, found, err := store.Read(ctx, models.KeyPortfolio)
	require.NoError(t, err)
	require.True(t, found)
	var positions []models.Position
	_, _, err = storage.Decode(raw, &positions)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 6.0, positions[0].Quantity)

	raw, found, err = store.Read(ctx, models.KeyPastRecords)
	require.NoError(t, err)
	require.True(t, found)
	var records []models.RealizedRecord
	_, _, err = storage.Decode(raw, &records)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)

	// A fresh service sees the same state.
	reloaded := newTestService(t, store, nil)
	assert.Equal(t, svc.Holdings(), reloaded.Holdings())
}

func TestService_RejectedSellChangesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	m := metrics.NewMetrics()
	svc := newTestService(t, store, nil, WithMetrics(m))

	pos, err := svc.AddPosition(ctx, models.NewStock{Symbol: "A", Quantity: 2, Price: 10, Date: date(2024, 1, 1)})
	require.NoError(t, err)
	before := svc.Holdings()

	_, err = svc.SellPosition(ctx, pos.ID, models.SellRequest{Price: 10, Quantity: 3, Date: date(2024, 1, 2)})
	assert.ErrorIs(t, err, common.ErrInvalidQuantity)
	assert.Equal(t, before, svc.Holdings())

	_, err = svc.SellPosition(ctx, "missing", models.SellRequest{Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	svc := newTestService(t, store, nil)
	store.SetWriteError(errors.New("disk full"))

	pos, err := svc.AddPosition(ctx, models.NewStock{Symbol: "A", Quantity: 1, Price: 10})
	require.NoError(t, err)
	svc.Wait()

	assert.Len(t, svc.Holdings().Positions, 1)
	assert.Equal(t, pos.ID, svc.Holdings().Positions[0].ID)
	_, found, _ := store.Read(ctx, models.KeyPortfolio)
	assert.False(t, found)
}

func TestService_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	svc := newTestService(t, memory.NewStore(common.NewSilentLogger()), nil, WithEvents(events))

	pos, err := svc.AddPosition(ctx, models.NewStock{Symbol: "A", Quantity: 1, Price: 10})
	require.NoError(t, err)

	changed, err := svc.DeletePosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.DeletePosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"positions:add", "positions:delete"}, events.actions())
}

func TestService_EditAndDeleteRecord(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewStore(common.NewSilentLogger()), nil)

	pos, err := svc.AddPosition(ctx, models.NewStock{Symbol: "A", Quantity: 4, Price: 100, Date: date(2024, 1, 1)})
	require.NoError(t, err)
	rec, err := svc.SellPosition(ctx, pos.ID, models.SellRequest{Price: 150, Quantity: 4, Date: date(2024, 1, 2)})
	require.NoError(t, err)
	assert.Empty(t, svc.Holdings().Positions)

	px := 175.0
	edited, err := svc.EditRecord(ctx, rec.ID, models.RecordPatch{SellPrice: &px, Recompute: true})
	require.NoError(t, err)
	assert.Equal(t, 300.0, edited.Profit)
	assert.Equal(t, 300.0, svc.Ledger().TotalRealized)

	changed, err := svc.DeleteRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, svc.Ledger().Count)
	assert.Empty(t, svc.Series())
}

func TestService_OverviewUsesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewStore(common.NewSilentLogger()), map[string]float64{"TCS.NSE": 120})
	svc.now = func() time.Time { return date(2024, 1, 31) }

	_, err := svc.AddPosition(ctx, models.NewStock{Symbol: "tcs", Quantity: 10, Price: 100, Date: date(2024, 1, 1)})
	require.NoError(t, err)

	before := svc.Overview(ctx)
	assert.True(t, before.View.AnyPriceUnavailable)
	assert.True(t, before.PricesUpdated.IsZero())

	snap, err := svc.RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120.0, snap.Prices["TCS.NSE"])

	after := svc.Overview(ctx)
	require.NotNil(t, after.View.TotalUnrealized)
	assert.Equal(t, 200.0, *after.View.TotalUnrealized)
	assert.Equal(t, 30, after.View.Positions[0].DaysHeld)
	assert.False(t, after.PricesUpdated.IsZero())
	assert.False(t, after.LimitReached)
}

func TestService_AppliesRemoteWritesAndIgnoresEchoes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	events := &eventLog{}
	local := newTestService(t, store, nil, WithOrigin("local"), WithEvents(events))
	remote := newTestService(t, store, nil, WithOrigin("remote"))

	_, err := local.AddPosition(ctx, models.NewStock{Symbol: "LOCAL", Quantity: 1, Price: 1})
	require.NoError(t, err)
	local.Wait()

	// remote picked up the local add, then adds its own
	require.Len(t, remote.Holdings().Positions, 1)
	_, err = remote.AddPosition(ctx, models.NewStock{Symbol: "REMOTE", Quantity: 1, Price: 1})
	require.NoError(t, err)
	remote.Wait()

	got := local.Holdings().Positions
	require.Len(t, got, 2)
	assert.Equal(t, "LOCAL", got[0].Symbol)
	assert.Equal(t, "REMOTE", got[1].Symbol)
	assert.Equal(t, []string{"positions:add", "positions:sync"}, events.actions())
}

func TestService_RemoteDeleteClearsState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	svc := newTestService(t, store, nil)

	_, err := svc.AddPosition(ctx, models.NewStock{Symbol: "A", Quantity: 1, Price: 1})
	require.NoError(t, err)
	svc.Wait()

	require.NoError(t, store.Delete(ctx, models.KeyPortfolio))
	assert.Empty(t, svc.Holdings().Positions)
}

func TestService_LoadsBareLegacyValues(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(common.NewSilentLogger())
	legacy, err := json.Marshal([]models.Position{{ID: "old", Symbol: "SBIN", Exchange: models.ExchangeNSE, Quantity: 3, Price: 500, Date: date(2023, 5, 1)}})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, models.KeyPortfolio, legacy))

	svc := newTestService(t, store, nil)
	require.Len(t, svc.Holdings().Positions, 1)
	assert.Equal(t, "old", svc.Holdings().Positions[0].ID)
}

func TestService_NoQuoteService(t *testing.T) {
	svc := NewService(nil, nil, common.NewSilentLogger())
	_, err := svc.RefreshPrices(context.Background())
	assert.Error(t, err)

	ov := svc.Overview(context.Background())
	assert.NotNil(t, ov.View.Positions)
}
