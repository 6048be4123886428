package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// BuildCumulativeSeries turns sell events into one running-total point per
// business day between the first and last sale, forward-filling days without
// a sale. Sales dated on a weekend do not contribute to the total. The result
// never contains a Saturday or Sunday and is strictly increasing in date.
func BuildCumulativeSeries(records []models.RealizedRecord) []models.SeriesPoint {
	points := []models.SeriesPoint{}
	if len(records) == 0 {
		return points
	}

	sorted := make([]models.RealizedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return common.Day(sorted[i].SellDate).Before(common.Day(sorted[j].SellDate))
	})

	running := decimal.Zero
	totals := make(map[time.Time]float64)
	for _, r := range sorted {
		day := common.Day(r.SellDate)
		if !common.IsBusinessDay(day) {
			continue
		}
		running = running.Add(common.Dec(r.Profit))
		totals[day] = common.Float(running)
	}

	start := common.ForwardToBusinessDay(common.Day(sorted[0].SellDate))
	end := common.BackToBusinessDay(common.Day(sorted[len(sorted)-1].SellDate))

	last := 0.0
	for d := start; !d.After(end); d = common.NextBusinessDay(d) {
		if v, ok := totals[d]; ok {
			last = v
		}
		points = append(points, models.SeriesPoint{Date: d, CumulativeProfit: last})
	}
	return points
}
