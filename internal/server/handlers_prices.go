package server

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.app.QuoteService.Snapshot()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"prices":        snap.Prices,
		"last_updated":  snap.LastUpdated,
		"limit_reached": s.app.QuoteService.LimitReached(),
	})
}

func (s *Server) handlePricesRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	snap, err := s.app.PortfolioService.RefreshPrices(r.Context())
	if errors.Is(err, common.ErrUpstreamRateLimited) {
		WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":         err.Error(),
			"code":          common.ErrorCode(err),
			"limit_reached": true,
		})
		return
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"prices":        snap.Prices,
		"last_updated":  snap.LastUpdated,
		"limit_reached": false,
	})
}

func (s *Server) handlePricesLimit(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	s.app.QuoteService.ClearLimit(r.Context())
	WriteJSON(w, http.StatusOK, map[string]bool{"limit_reached": false})
}

// handleStockPrices is the companion lookup endpoint. It answers
// {symbol: price} keyed exactly as requested; a bare symbol is looked up on NSE.
func (s *Server) handleStockPrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		WriteError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	if s.app.Fetcher == nil {
		WriteError(w, http.StatusInternalServerError, "Failed to fetch stock prices")
		return
	}

	requested := make(map[string][]string) // qualified ticker -> symbols as requested
	tickers := make([]string, 0)
	for _, sym := range strings.Split(raw, ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		ticker := models.QualifiedTicker(models.SplitTicker(sym))
		aliases, seen := requested[ticker]
		if !seen {
			tickers = append(tickers, ticker)
		}
		if !slices.Contains(aliases, sym) {
			requested[ticker] = append(aliases, sym)
		}
	}

	prices, err := s.app.Fetcher.FetchQuotes(r.Context(), tickers)
	if err != nil {
		s.logger.Warn().Err(err).Int("symbols", len(tickers)).Msg("Stock price lookup failed")
		msg := "Failed to fetch stock prices"
		if errors.Is(err, common.ErrUpstreamRateLimited) {
			msg = common.ErrUpstreamRateLimited.Error()
		}
		WriteError(w, http.StatusInternalServerError, msg)
		return
	}

	out := make(map[string]float64, len(prices))
	for ticker, price := range prices {
		if !common.IsPositiveFinite(price) {
			continue
		}
		for _, sym := range requested[strings.ToUpper(ticker)] {
			out[sym] = price
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleStream upgrades to a WebSocket that receives every change event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	s.app.Hub.ServeWS(w, r)
}
