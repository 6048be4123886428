package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// NewRealizedRecord builds the record for selling quantity units of p at
// sellPrice on sellDate, with derived fields filled in.
func NewRealizedRecord(id string, p models.Position, quantity, sellPrice float64, sellDate time.Time) models.RealizedRecord {
	rec := models.RealizedRecord{
		ID:            id,
		PositionID:    p.ID,
		Symbol:        p.Symbol,
		Exchange:      p.Exchange,
		Quantity:      quantity,
		PurchasePrice: p.Price,
		PurchaseDate:  p.Date,
		SellPrice:     sellPrice,
		SellDate:      sellDate,
	}
	return recompute(rec)
}

// recompute derives profit, profit percentage and days held from the raw fields.
// A zero purchase price leaves the percentage nil.
func recompute(r models.RealizedRecord) models.RealizedRecord {
	r.Profit = common.Profit(r.Quantity, r.PurchasePrice, r.SellPrice)
	r.ProfitPercentage = common.ProfitPercentage(r.Profit, r.Quantity, r.PurchasePrice)
	r.DaysHeld = common.DaysBetween(common.Day(r.PurchaseDate), common.Day(r.SellDate))
	return r
}

// TotalAmount is the sale proceeds, quantity*sell price.
func TotalAmount(r models.RealizedRecord) float64 {
	return common.Amount(r.Quantity, r.SellPrice)
}

// SummarizeLedger aggregates realized records. Every selector keeps the first
// encountered record on ties. Records with a nil percentage are skipped by
// the percentage selectors only.
func SummarizeLedger(records []models.RealizedRecord) models.LedgerSummary {
	sum := models.LedgerSummary{Count: len(records)}

	realized := decimal.Zero
	proceeds := decimal.Zero
	for _, r := range records {
		realized = realized.Add(common.Dec(r.Profit))
		proceeds = proceeds.Add(common.Dec(r.Quantity).Mul(common.Dec(r.SellPrice)))
		switch {
		case r.Profit > 0:
			sum.Winners++
		case r.Profit < 0:
			sum.Losers++
		}
	}
	sum.TotalRealized = common.Float(realized)
	sum.TotalProceeds = common.Float(proceeds)

	hasPct := func(r models.RealizedRecord) bool { return r.ProfitPercentage != nil }

	sum.BestByPercentage = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return *a.ProfitPercentage > *b.ProfitPercentage
	}, hasPct)
	sum.WorstByPercentage = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return *a.ProfitPercentage < *b.ProfitPercentage
	}, hasPct)
	sum.BestByProfit = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return a.Profit > b.Profit
	}, nil)
	sum.WorstByProfit = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return a.Profit < b.Profit
	}, nil)
	sum.LongestHeld = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return a.DaysHeld > b.DaysHeld
	}, nil)
	sum.MostRecent = selectRecord(records, func(a, b models.RealizedRecord) bool {
		return a.SellDate.After(b.SellDate)
	}, nil)

	return sum
}

func selectRecord(records []models.RealizedRecord, better func(a, b models.RealizedRecord) bool, filter func(models.RealizedRecord) bool) *models.RealizedRecord {
	var pick *models.RealizedRecord
	for i := range records {
		if filter != nil && !filter(records[i]) {
			continue
		}
		if pick == nil || better(records[i], *pick) {
			r := records[i]
			pick = &r
		}
	}
	return pick
}
