package portfolio

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

// RenderProfitLossChart renders the cumulative realized P/L series as a PNG
// area chart. A zero line is drawn for reference.
func RenderProfitLossChart(points []models.SeriesPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 data points, got %d", common.ErrInsufficientData, len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	zero := make([]float64, len(points))

	for i, p := range points {
		xValues[i] = p.Date
		yValues[i] = p.CumulativeProfit
	}

	stroke := drawing.ColorFromHex("16a34a") // green-600
	fill := drawing.ColorFromHex("16a34a").WithAlpha(64)
	if yValues[len(yValues)-1] < 0 {
		stroke = drawing.ColorFromHex("dc2626") // red-600
		fill = drawing.ColorFromHex("dc2626").WithAlpha(64)
	}

	pnlSeries := chart.TimeSeries{
		Name: "Net Realized P/L",
		Style: chart.Style{
			StrokeColor: stroke,
			StrokeWidth: 2,
			FillColor:   fill,
		},
		XValues: xValues,
		YValues: yValues,
	}

	zeroSeries := chart.TimeSeries{
		Name: "Break-even",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: zero,
	}

	graph := chart.Chart{
		Title:  "Net Realized Profit/Loss",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("02 Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return axisRupee(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			pnlSeries,
			zeroSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// axisRupee formats a whole-rupee axis label with Indian grouping.
func axisRupee(f float64) string {
	return strings.TrimSuffix(common.FormatRupee(math.Round(f)), ".00")
}
