package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualifiedTicker(t *testing.T) {
	assert.Equal(t, "RELIANCE.NSE", QualifiedTicker("reliance", ""))
	assert.Equal(t, "TCS.BSE", QualifiedTicker(" TCS ", "bse"))

	sym, ex := SplitTicker("tcs.bse")
	assert.Equal(t, "TCS", sym)
	assert.Equal(t, ExchangeBSE, ex)

	sym, ex = SplitTicker("INFY")
	assert.Equal(t, "INFY", sym)
	assert.Equal(t, ExchangeNSE, ex)

	sym, ex = SplitTicker("BAJAJ-AUTO.NSE")
	assert.Equal(t, "BAJAJ-AUTO", sym)
	assert.Equal(t, ExchangeNSE, ex)
}

func TestHoldingsClone_NoAliasing(t *testing.T) {
	pct := 10.0
	h := Holdings{
		Positions: []Position{{ID: "p1", Quantity: 5}},
		Records:   []RealizedRecord{{ID: "r1", ProfitPercentage: &pct}},
	}
	c := h.Clone()
	c.Positions[0].Quantity = 1
	*c.Records[0].ProfitPercentage = 99

	assert.Equal(t, 5.0, h.Positions[0].Quantity)
	assert.Equal(t, 10.0, *h.Records[0].ProfitPercentage)
	assert.Equal(t, 0, h.FindPosition("p1"))
	assert.Equal(t, -1, h.FindRecord("missing"))
}

func TestPositionView_JSONFlattensPosition(t *testing.T) {
	v := PositionView{
		Position: Position{ID: "p1", Symbol: "TCS", Exchange: ExchangeNSE, Quantity: 2, Price: 10},
		Invested: 20,
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "TCS", m["symbol"])
	assert.Nil(t, m["current_price"], "unavailable price serializes as null")
	assert.Contains(t, m, "profit")
}

func TestSeriesPoint_MarshalDate(t *testing.T) {
	p := SeriesPoint{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), CumulativeProfit: 100}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-05","cumulative_profit":100}`, string(data))
}
