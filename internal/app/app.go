package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/intellivest/internal/clients/eodhd"
	"github.com/bobmcallan/intellivest/internal/clients/priceapi"
	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/metrics"
	"github.com/bobmcallan/intellivest/internal/services/portfolio"
	"github.com/bobmcallan/intellivest/internal/services/quote"
	"github.com/bobmcallan/intellivest/internal/storage"
	"github.com/bobmcallan/intellivest/internal/stream"
)

// App holds all initialized services, clients and storage.
// It is the shared core used by both cmd/intellivest-server and cmd/intellivest.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Store            interfaces.DocumentStore
	Metrics          *metrics.Metrics
	Hub              *stream.Hub
	Fetcher          interfaces.QuoteFetcher
	QuoteService     interfaces.QuoteService
	PortfolioService interfaces.PortfolioService
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath returns configPath if set, then INTELLIVEST_CONFIG, then
// intellivest.toml next to the binary, then config/intellivest.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("INTELLIVEST_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "intellivest.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/intellivest.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return New(context.Background(), config, logger)
}

// New initializes storage, the quote source and both services from config,
// then loads persisted state.
func New(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	for _, name := range config.ValidateRequired() {
		logger.Warn().Str("setting", name).Msg("Required setting is missing - some features may be limited")
	}

	store, err := storage.NewDocumentStore(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := metrics.NewMetrics()
	hub := stream.NewHub(logger.WithComponent("stream"), m)
	go hub.Run()

	fetcher := newFetcher(config, logger)

	quoteService := quote.NewService(fetcher, store, logger.WithComponent("quote"),
		quote.WithBatchSize(config.Clients.Quotes.BatchSize),
		quote.WithEvents(hub),
		quote.WithMetrics(m),
	)
	portfolioService := portfolio.NewService(store, quoteService, logger.WithComponent("portfolio"),
		portfolio.WithEvents(hub),
		portfolio.WithMetrics(m),
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Store:            store,
		Metrics:          m,
		Hub:              hub,
		Fetcher:          fetcher,
		QuoteService:     quoteService,
		PortfolioService: portfolioService,
		StartupTime:      startupStart,
	}

	if err := quoteService.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	if err := portfolioService.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// newFetcher builds the configured quote source. It returns nil when the
// source lacks a required setting; refreshes then fail with quote.ErrNoSource.
func newFetcher(config *common.Config, logger *common.Logger) interfaces.QuoteFetcher {
	q := config.Clients.Quotes
	switch q.Source {
	case common.QuoteSourceRandom:
		logger.Warn().Msg("Using random placeholder prices")
		return quote.NewRandomFetcher(uint64(time.Now().UnixNano()))

	case common.QuoteSourcePriceAPI:
		if q.PriceAPIURL == "" {
			return nil
		}
		return priceapi.NewClient(q.PriceAPIURL,
			priceapi.WithLogger(logger),
			priceapi.WithRateLimit(config.Clients.EODHD.RateLimit),
			priceapi.WithTimeout(config.Clients.EODHD.GetTimeout()),
		)

	default:
		e := config.Clients.EODHD
		if e.APIKey == "" {
			return nil
		}
		return eodhd.NewClient(e.APIKey,
			eodhd.WithBaseURL(e.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(e.RateLimit),
			eodhd.WithTimeout(e.GetTimeout()),
		)
	}
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, drain writes, stop stream hub, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		<-a.schedulerDone
		a.schedulerCancel = nil
	}
	if a.PortfolioService != nil {
		a.PortfolioService.Close()
	}
	if a.QuoteService != nil {
		a.QuoteService.Close()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Store = nil
	}
}

// StartPriceScheduler launches the background price refresh goroutine when
// clients.quotes.refresh_interval is set. It is a no-op otherwise.
func (a *App) StartPriceScheduler() {
	interval := a.Config.Clients.Quotes.GetRefreshInterval()
	if interval <= 0 || a.schedulerCancel != nil {
		return
	}
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	a.schedulerDone = make(chan struct{})

	s := &priceScheduler{
		portfolio:       a.PortfolioService,
		logger:          a.Logger.WithComponent("scheduler"),
		interval:        interval,
		marketHoursOnly: a.Config.Clients.Quotes.MarketHoursOnly,
		now:             time.Now,
	}
	go func() {
		defer close(a.schedulerDone)
		s.run(schedulerCtx)
	}()

	a.Logger.Info().
		Dur("interval", interval).
		Bool("market_hours_only", s.marketHoursOnly).
		Msg("Price scheduler started")
}
