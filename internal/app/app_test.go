package app

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/services/portfolio"
	"github.com/bobmcallan/intellivest/internal/services/quote"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "intellivest.toml")
	content := `
environment = "test"

[storage]
backend = "memory"

[clients.quotes]
source = "random"
batch_size = 10

[logging]
level = "error"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestNewApp_InitializesAllServices verifies that NewApp creates an App with
// every service initialized and non-nil.
func TestNewApp_InitializesAllServices(t *testing.T) {
	a, err := NewApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	defer a.Close()

	if a.Config == nil {
		t.Error("Config is nil")
	}
	if a.Logger == nil {
		t.Error("Logger is nil")
	}
	if a.Store == nil {
		t.Error("Store is nil")
	}
	if a.Metrics == nil {
		t.Error("Metrics is nil")
	}
	if a.Hub == nil {
		t.Error("Hub is nil")
	}
	if a.Fetcher == nil {
		t.Error("Fetcher is nil for the random source")
	}
	if a.QuoteService == nil {
		t.Error("QuoteService is nil")
	}
	if a.PortfolioService == nil {
		t.Error("PortfolioService is nil")
	}
	if a.StartupTime.IsZero() {
		t.Error("StartupTime is zero")
	}
}

func TestNewApp_EndToEndWithRandomPrices(t *testing.T) {
	a, err := NewApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.PortfolioService.AddPosition(ctx, models.NewStock{Symbol: "INFY", Quantity: 2, Price: 100}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	snap, err := a.PortfolioService.RefreshPrices(ctx)
	if err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}
	p, ok := snap.Prices["INFY.NSE"]
	if !ok || p < quote.RandomMin || p >= quote.RandomMax {
		t.Errorf("INFY.NSE price = %v (ok=%v), want within placeholder range", p, ok)
	}

	ov := a.PortfolioService.Overview(ctx)
	if ov.View.TotalUnrealized == nil {
		t.Error("TotalUnrealized is nil after refresh")
	}
}

func TestNewFetcher_MissingSettings(t *testing.T) {
	logger := common.NewSilentLogger()

	cfg := common.NewDefaultConfig()
	cfg.Clients.EODHD.APIKey = ""
	if f := newFetcher(cfg, logger); f != nil {
		t.Errorf("eodhd without a key: got %T, want nil", f)
	}

	cfg.Clients.Quotes.Source = common.QuoteSourcePriceAPI
	if f := newFetcher(cfg, logger); f != nil {
		t.Errorf("priceapi without a url: got %T, want nil", f)
	}

	cfg.Clients.Quotes.PriceAPIURL = "http://localhost:5000"
	if f := newFetcher(cfg, logger); f == nil {
		t.Error("priceapi with a url: got nil")
	}
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) FetchQuotes(_ context.Context, tickers []string) (map[string]float64, error) {
	f.calls.Add(1)
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		out[t] = 1
	}
	return out, nil
}

func TestPriceScheduler_MarketHoursGate(t *testing.T) {
	logger := common.NewSilentLogger()
	fetcher := &countingFetcher{}
	ps := portfolio.NewService(nil, quote.NewService(fetcher, nil, logger), logger)
	if _, err := ps.AddPosition(context.Background(), models.NewStock{Symbol: "TCS", Quantity: 1, Price: 1}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	saturday := time.Date(2026, 3, 7, 11, 0, 0, 0, quote.IST)
	monday := time.Date(2026, 3, 9, 11, 0, 0, 0, quote.IST)

	s := &priceScheduler{portfolio: ps, logger: logger, interval: time.Minute, marketHoursOnly: true, now: func() time.Time { return saturday }}
	if s.tick(context.Background()) {
		t.Error("tick ran outside market hours")
	}
	if got := fetcher.calls.Load(); got != 0 {
		t.Errorf("fetch calls = %d, want 0", got)
	}

	s.now = func() time.Time { return monday }
	if !s.tick(context.Background()) {
		t.Error("tick skipped during market hours")
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}

	s.marketHoursOnly = false
	s.now = func() time.Time { return saturday }
	if !s.tick(context.Background()) {
		t.Error("ungated tick skipped")
	}
}

func TestStartPriceScheduler_DisabledByDefault(t *testing.T) {
	a, err := NewApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	defer a.Close()

	a.StartPriceScheduler()
	if a.schedulerCancel != nil {
		t.Error("scheduler started without a refresh interval")
	}

	a.Config.Clients.Quotes.RefreshInterval = "1h"
	a.StartPriceScheduler()
	if a.schedulerCancel == nil {
		t.Error("scheduler not started with a refresh interval")
	}
}
