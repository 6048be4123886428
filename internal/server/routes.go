package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.Handle("/metrics", s.app.Metrics.Handler())

	// Portfolio
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/positions/", s.routePositions)
	mux.HandleFunc("/api/positions", s.handlePositions)

	// Realized ledger
	mux.HandleFunc("/api/records/series", s.handleRecordSeries)
	mux.HandleFunc("/api/records/chart.png", s.handleRecordChart)
	mux.HandleFunc("/api/records/", s.routeRecords)
	mux.HandleFunc("/api/records", s.handleRecords)

	// Prices
	mux.HandleFunc("/api/prices/refresh", s.handlePricesRefresh)
	mux.HandleFunc("/api/prices/limit", s.handlePricesLimit)
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/stock-prices", s.handleStockPrices)

	// Change stream
	mux.HandleFunc("/api/ws", s.handleStream)
}

// routePositions dispatches /api/positions/{id} and /api/positions/{id}/sell.
func (s *Server) routePositions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/positions/")
	if path == "" {
		s.handlePositions(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handlePosition(w, r, id)
	case "sell":
		s.handlePositionSell(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeRecords dispatches /api/records/{id}.
func (s *Server) routeRecords(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/records/", "")
	if id == "" {
		s.handleRecords(w, r)
		return
	}
	if strings.Contains(strings.TrimPrefix(r.URL.Path, "/api/records/"+id), "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleRecord(w, r, id)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":       cfg.Environment,
		"storage_backend":   cfg.Storage.Backend,
		"storage_address":   cfg.Storage.Address,
		"storage_namespace": cfg.Storage.Namespace,
		"storage_database":  cfg.Storage.Database,
		"quote_source":      cfg.Clients.Quotes.Source,
		"quote_batch_size":  cfg.Clients.Quotes.BatchSize,
		"refresh_interval":  cfg.Clients.Quotes.GetRefreshInterval().String(),
		"market_hours_only": cfg.Clients.Quotes.MarketHoursOnly,
		"eodhd_configured":  cfg.Clients.EODHD.APIKey != "",
		"quotes_configured": s.app.Fetcher != nil,
		"logging_level":     cfg.Logging.Level,
		"uptime":            time.Since(s.app.StartupTime).Round(time.Second).String(),
		"stream_clients":    s.app.Hub.ClientCount(),
	})
}
