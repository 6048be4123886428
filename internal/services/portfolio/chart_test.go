package portfolio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

func TestRenderProfitLossChart(t *testing.T) {
	points := []models.SeriesPoint{
		{Date: date(2024, 1, 5), CumulativeProfit: 100},
		{Date: date(2024, 1, 8), CumulativeProfit: 70},
		{Date: date(2024, 1, 9), CumulativeProfit: -25},
	}
	png, err := RenderProfitLossChart(points)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "output is a PNG")
}

func TestRenderProfitLossChart_TooFewPoints(t *testing.T) {
	_, err := RenderProfitLossChart(nil)
	assert.ErrorIs(t, err, common.ErrInsufficientData)

	_, err = RenderProfitLossChart([]models.SeriesPoint{{Date: date(2024, 1, 5), CumulativeProfit: 1}})
	assert.ErrorIs(t, err, common.ErrInsufficientData)
}

func TestAxisRupee(t *testing.T) {
	assert.Equal(t, "₹1,23,456", axisRupee(123456))
	assert.Equal(t, "-₹500", axisRupee(-500))
}
