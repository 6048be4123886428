package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
	"github.com/bobmcallan/intellivest/internal/services/portfolio"
)

// Dates cross the API as YYYY-MM-DD strings.

type addPositionRequest struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Date     string  `json:"date"`
}

type sellRequest struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Date     string  `json:"date"`
}

type editPositionRequest struct {
	Symbol   *string  `json:"symbol"`
	Exchange *string  `json:"exchange"`
	Quantity *float64 `json:"quantity"`
	Price    *float64 `json:"price"`
	Date     *string  `json:"date"`
}

type editRecordRequest struct {
	Symbol           *string  `json:"symbol"`
	Exchange         *string  `json:"exchange"`
	Quantity         *float64 `json:"quantity"`
	PurchasePrice    *float64 `json:"purchase_price"`
	PurchaseDate     *string  `json:"purchase_date"`
	SellPrice        *float64 `json:"sell_price"`
	SellDate         *string  `json:"sell_date"`
	Profit           *float64 `json:"profit"`
	ProfitPercentage *float64 `json:"profit_percentage"`
	DaysHeld         *int     `json:"days_held"`
	Recompute        bool     `json:"recompute"`
}

// recordView adds the sale proceeds to a realized record.
type recordView struct {
	models.RealizedRecord
	TotalAmount float64 `json:"total_amount"`
}

// optionalDate parses an empty string as the zero time.
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return common.ParseDate(s)
}

func datePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	d, err := common.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func exchangePtr(s *string) *models.Exchange {
	if s == nil {
		return nil
	}
	e := models.Exchange(*s)
	return &e
}

// --- Portfolio handlers ---

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.PortfolioService.Overview(r.Context()))
}

// handlePositions handles GET (list) and POST (add) on /api/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view := s.app.PortfolioService.Overview(r.Context()).View
		q := r.URL.Query()
		if err := portfolio.SortPositions(view.Positions, q.Get("sort"), q.Get("dir")); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"positions": view.Positions,
			"as_of":     view.AsOf,
		})

	case http.MethodPost:
		var req addPositionRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		date, err := optionalDate(req.Date)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		pos, err := s.app.PortfolioService.AddPosition(r.Context(), models.NewStock{
			Symbol:   req.Symbol,
			Exchange: models.Exchange(req.Exchange),
			Quantity: req.Quantity,
			Price:    req.Price,
			Date:     date,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, pos)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePosition handles PATCH and DELETE on /api/positions/{id}.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPatch:
		var req editPositionRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		date, err := datePtr(req.Date)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		pos, err := s.app.PortfolioService.EditPosition(r.Context(), id, models.PositionPatch{
			Symbol:   req.Symbol,
			Exchange: exchangePtr(req.Exchange),
			Quantity: req.Quantity,
			Price:    req.Price,
			Date:     date,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, pos)

	case http.MethodDelete:
		if _, err := s.app.PortfolioService.DeletePosition(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (s *Server) handlePositionSell(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req sellRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	rec, err := s.app.PortfolioService.SellPosition(r.Context(), id, models.SellRequest{
		Price:    req.Price,
		Quantity: req.Quantity,
		Date:     date,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, recordView{RealizedRecord: rec, TotalAmount: portfolio.TotalAmount(rec)})
}

// --- Realized ledger handlers ---

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	records := s.app.PortfolioService.Holdings().Records
	q := r.URL.Query()
	if err := portfolio.SortRecords(records, q.Get("sort"), q.Get("dir")); err != nil {
		WriteServiceError(w, err)
		return
	}
	views := make([]recordView, len(records))
	for i, rec := range records {
		views[i] = recordView{RealizedRecord: rec, TotalAmount: portfolio.TotalAmount(rec)}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": views,
		"summary": portfolio.SummarizeLedger(records),
	})
}

// handleRecord handles PATCH and DELETE on /api/records/{id}.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPatch:
		var req editRecordRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		purchaseDate, err := datePtr(req.PurchaseDate)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		sellDate, err := datePtr(req.SellDate)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		rec, err := s.app.PortfolioService.EditRecord(r.Context(), id, models.RecordPatch{
			Symbol:           req.Symbol,
			Exchange:         exchangePtr(req.Exchange),
			Quantity:         req.Quantity,
			PurchasePrice:    req.PurchasePrice,
			PurchaseDate:     purchaseDate,
			SellPrice:        req.SellPrice,
			SellDate:         sellDate,
			Profit:           req.Profit,
			ProfitPercentage: req.ProfitPercentage,
			DaysHeld:         req.DaysHeld,
			Recompute:        req.Recompute,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, recordView{RealizedRecord: rec, TotalAmount: portfolio.TotalAmount(rec)})

	case http.MethodDelete:
		if _, err := s.app.PortfolioService.DeleteRecord(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (s *Server) handleRecordSeries(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"points": s.app.PortfolioService.Series(),
	})
}

// handleRecordChart renders the cumulative series as a PNG. A series too
// short to draw is 204 No Content rather than an empty image.
func (s *Server) handleRecordChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	png, err := portfolio.RenderProfitLossChart(s.app.PortfolioService.Series())
	if errors.Is(err, common.ErrInsufficientData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Chart error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
