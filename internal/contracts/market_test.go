package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupBy(t *testing.T) {
	got, err := ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, GroupByIndustry, got)

	got, err = ParseGroupBy("Sector")
	require.NoError(t, err)
	assert.Equal(t, GroupBySector, got)

	_, err = ParseGroupBy("country")
	assert.Error(t, err)
}

func TestParseYAxis(t *testing.T) {
	got, err := ParseYAxis("")
	require.NoError(t, err)
	assert.Equal(t, YAxisWeek, got)

	got, err = ParseYAxis("rsi")
	require.NoError(t, err)
	assert.Equal(t, YAxisRSI, got)

	_, err = ParseYAxis("volume")
	assert.Error(t, err)
}

func TestParseWeighting(t *testing.T) {
	got, err := ParseWeighting("")
	require.NoError(t, err)
	assert.Equal(t, WeightingCap, got)

	got, err = ParseWeighting("equal")
	require.NoError(t, err)
	assert.Equal(t, WeightingEqual, got)

	_, err = ParseWeighting("harmonic")
	assert.Error(t, err)
}

func TestGroupAggregateProjections(t *testing.T) {
	rsi := 65.0
	rsiEqual := 55.0
	g := GroupAggregate{
		Week:          2.0,
		Momentum:      1.5,
		WeekEqual:     1.0,
		MomentumEqual: 0.5,
		RSI:           &rsi,
		RSIEqual:      &rsiEqual,
	}

	assert.InDelta(t, 1.5, g.MomentumFor(WeightingCap), 1e-12)
	assert.InDelta(t, 0.5, g.MomentumFor(WeightingEqual), 1e-12)

	y, ok := g.YValueFor(YAxisWeek, WeightingCap)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, y, 1e-12)

	y, ok = g.YValueFor(YAxisRSI, WeightingEqual)
	assert.True(t, ok)
	assert.InDelta(t, 55.0, y, 1e-12)

	g.RSI = nil
	_, ok = g.YValueFor(YAxisRSI, WeightingCap)
	assert.False(t, ok)
}

func TestGroupAggregateJSONFieldNames(t *testing.T) {
	// Field names are part of the stored snapshot format
	g := GroupAggregate{
		Name:            "Software",
		TopContributors: []Contributor{{Ticker: "MSFT", Week: 4.2}},
	}

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Contains(t, decoded, "name")
	assert.Contains(t, decoded, "momentum")
	assert.Contains(t, decoded, "weekEqual")
	assert.Contains(t, decoded, "topStocks")
	assert.NotContains(t, decoded, "rsi") // omitted when absent
}
