package portfolio

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// ComputePortfolioView values positions against lookup as of now.
func ComputePortfolioView(positions []models.Position, lookup models.PriceLookup) models.PortfolioView {
	return ComputePortfolioViewAt(positions, lookup, time.Now().UTC())
}

// ComputePortfolioViewAt values positions against lookup. Days held are
// measured to asOf.
//
// A position without a price contributes nothing to TotalCurrentValue and its
// own price-dependent figures are nil. Any such position makes the portfolio
// TotalUnrealized nil; a partial total would be misleading.
func ComputePortfolioViewAt(positions []models.Position, lookup models.PriceLookup, asOf time.Time) models.PortfolioView {
	view := models.PortfolioView{
		AsOf:      asOf,
		Positions: make([]models.PositionView, 0, len(positions)),
	}

	invested := decimal.Zero
	current := decimal.Zero

	for _, p := range positions {
		pv := models.PositionView{
			Position: p,
			Invested: common.Amount(p.Quantity, p.Price),
			DaysHeld: common.DaysBetween(common.Day(p.Date), common.Day(asOf)),
		}
		invested = invested.Add(common.Dec(p.Quantity).Mul(common.Dec(p.Price)))

		price, ok := lookupPrice(lookup, p)
		if !ok {
			view.AnyPriceUnavailable = true
			view.Positions = append(view.Positions, pv)
			continue
		}

		value := common.Dec(p.Quantity).Mul(common.Dec(price))
		current = current.Add(value)

		pv.CurrentPrice = common.Ptr(price)
		pv.CurrentValue = common.Ptr(common.Float(value))
		pv.Profit = common.Ptr(common.Profit(p.Quantity, p.Price, price))
		pv.ProfitPercentage = common.ChangePercentage(p.Price, price)
		view.Positions = append(view.Positions, pv)
	}

	view.TotalInvested = common.Float(invested)
	view.TotalCurrentValue = common.Float(current)

	if !view.AnyPriceUnavailable {
		unrealized := view.TotalCurrentValue - view.TotalInvested
		view.TotalUnrealized = &unrealized
		if view.TotalInvested == 0 {
			view.TotalUnrealizedPct = common.Ptr(0)
		} else {
			view.TotalUnrealizedPct = common.Ptr(common.Float(
				common.Dec(unrealized).Div(invested).Mul(decimal.NewFromInt(100))))
		}
	}

	view.BestPerformer = selectPosition(view.Positions, func(a, b models.PositionView) bool {
		return *a.ProfitPercentage > *b.ProfitPercentage
	}, hasPercentage)
	view.WorstPerformer = selectPosition(view.Positions, func(a, b models.PositionView) bool {
		return *a.ProfitPercentage < *b.ProfitPercentage
	}, hasPercentage)
	view.LongestHeld = selectPosition(view.Positions, func(a, b models.PositionView) bool {
		return a.Date.Before(b.Date)
	}, nil)
	view.MostRecent = selectPosition(view.Positions, func(a, b models.PositionView) bool {
		return a.Date.After(b.Date)
	}, nil)

	return view
}

func lookupPrice(lookup models.PriceLookup, p models.Position) (float64, bool) {
	if lookup == nil {
		return 0, false
	}
	price, ok := lookup.PriceOf(p.Symbol, p.Exchange)
	if !ok || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, false
	}
	return price, true
}

func hasPercentage(v models.PositionView) bool {
	return v.ProfitPercentage != nil
}

// selectPosition reduces left to right keeping the current pick unless a
// candidate is strictly better, so the first encountered wins ties.
// Returns nil when no view passes the filter.
func selectPosition(views []models.PositionView, better func(a, b models.PositionView) bool, filter func(models.PositionView) bool) *models.PositionView {
	var pick *models.PositionView
	for i := range views {
		if filter != nil && !filter(views[i]) {
			continue
		}
		if pick == nil || better(views[i], *pick) {
			v := views[i]
			pick = &v
		}
	}
	return pick
}
