package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/pulse/internal/contracts"
)

func fp(v float64) *float64 { return &v }

func techRows() []contracts.InstrumentRow {
	return []contracts.InstrumentRow{
		{Ticker: "A", Sector: "Technology", Industry: "Software", MarketCap: 2e9, Week: 5, Month: 2, RSI: fp(60)},
		{Ticker: "B", Sector: "Technology", Industry: "Software", MarketCap: 1e9, Week: -3, Month: 1},
	}
}

func TestAggregateWeightedAndEqual(t *testing.T) {
	results := Aggregate(techRows(), Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)

	g := results[0]
	assert.Equal(t, "Software", g.Name)
	assert.Equal(t, 2, g.StockCount)
	assert.InDelta(t, 3e9, g.MarketCap, 1)

	// week = (5*2e9 + -3*1e9) / 3e9
	assert.InDelta(t, 2.3333333, g.Week, 1e-6)
	assert.InDelta(t, 1.0, g.WeekEqual, 1e-9)

	// month = (2*2e9 + 1*1e9) / 3e9
	assert.InDelta(t, 5.0/3.0, g.Month, 1e-9)
	assert.InDelta(t, 1.5, g.MonthEqual, 1e-9)

	assert.InDelta(t, g.Week-g.Month, g.Momentum, 1e-12)
	assert.InDelta(t, g.WeekEqual-g.MonthEqual, g.MomentumEqual, 1e-12)
}

func TestAggregateRSIUsesOwnDenominators(t *testing.T) {
	// Only A carries an RSI value; its denominators must exclude B.
	results := Aggregate(techRows(), Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)

	g := results[0]
	require.NotNil(t, g.RSI)
	require.NotNil(t, g.RSIEqual)
	assert.InDelta(t, 60, *g.RSI, 1e-9)
	assert.InDelta(t, 60, *g.RSIEqual, 1e-9)
}

func TestAggregateRSIAbsentEverywhere(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "A", Industry: "Software", MarketCap: 1e9, Week: 1, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].RSI)
	assert.Nil(t, results[0].RSIEqual)
}

func TestAggregateExcludesIneligibleRows(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "A", Industry: "Software", MarketCap: 1e9, Week: 5, Month: 2},
		{Ticker: "Z", Industry: "Software", MarketCap: 0, Week: 100, Month: 0},  // zero cap
		{Ticker: "N", Industry: "", MarketCap: 1e9, Week: 50, Month: 0},         // empty group key
		{Ticker: "M", Industry: "Software", MarketCap: -5, Week: 100, Month: 0}, // negative cap
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].StockCount)
	assert.InDelta(t, 5, results[0].Week, 1e-9)
}

func TestAggregateOmitsEmptyGroups(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "Z", Industry: "Ghost Town", MarketCap: 0, Week: 1, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	assert.Empty(t, results)
}

func TestAggregateTickerGrouping(t *testing.T) {
	results := Aggregate(techRows(), Options{GroupBy: contracts.GroupByTicker})
	require.Len(t, results, 2)

	for _, g := range results {
		assert.Equal(t, 1, g.StockCount)
		// Singleton groups collapse to the row's own figures
		assert.InDelta(t, g.WeekEqual, g.Week, 1e-12)
		// Single-ticker momentum quarters the monthly figure
		assert.InDelta(t, g.Week-g.Month/4, g.Momentum, 1e-12)
		assert.InDelta(t, g.WeekEqual-g.MonthEqual/4, g.MomentumEqual, 1e-12)
	}
}

func TestAggregateSortsByMomentumDescending(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "L", Industry: "Laggards", MarketCap: 1e9, Week: -1, Month: 3},
		{Ticker: "W", Industry: "Winners", MarketCap: 1e9, Week: 8, Month: 1},
		{Ticker: "M", Industry: "Middlers", MarketCap: 1e9, Week: 2, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 3)
	assert.Equal(t, "Winners", results[0].Name)
	assert.Equal(t, "Middlers", results[1].Name)
	assert.Equal(t, "Laggards", results[2].Name)
}

func TestAggregateMomentumTiesKeepEncounterOrder(t *testing.T) {
	// Identical momentum in both groups; the first-encountered group wins.
	rows := []contracts.InstrumentRow{
		{Ticker: "A", Industry: "First", MarketCap: 1e9, Week: 3, Month: 1},
		{Ticker: "B", Industry: "Second", MarketCap: 5e9, Week: 3, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].Name)
	assert.Equal(t, "Second", results[1].Name)
}

func TestAggregateSectorFilter(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "A", Sector: "Technology", Industry: "Software", MarketCap: 1e9, Week: 1, Month: 1},
		{Ticker: "X", Sector: "Energy", Industry: "Oil & Gas Integrated", MarketCap: 1e9, Week: 9, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry, SectorFilter: "Technology"})
	require.Len(t, results, 1)
	assert.Equal(t, "Software", results[0].Name)

	// Filter is ignored on the sector dimension itself
	results = Aggregate(rows, Options{GroupBy: contracts.GroupBySector, SectorFilter: "Technology"})
	assert.Len(t, results, 2)
}

func TestAggregateIndustryFilterAppliesToTickerGrouping(t *testing.T) {
	rows := []contracts.InstrumentRow{
		{Ticker: "A", Sector: "Technology", Industry: "Software", MarketCap: 1e9, Week: 1, Month: 1},
		{Ticker: "B", Sector: "Technology", Industry: "Semiconductors", MarketCap: 1e9, Week: 2, Month: 1},
	}

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByTicker, IndustryFilter: "Software"})
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Name)

	// Industry filter does not apply to group dimensions
	results = Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry, IndustryFilter: "Software"})
	assert.Len(t, results, 2)
}

func TestTopContributors(t *testing.T) {
	rows := make([]contracts.InstrumentRow, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, contracts.InstrumentRow{
			Ticker:    fmt.Sprintf("T%d", i),
			Industry:  "Software",
			MarketCap: 1e9,
			Week:      float64(i),
			Month:     1,
		})
	}
	// Tie with T6 on week; T6 was encountered first
	rows = append(rows, contracts.InstrumentRow{
		Ticker: "TIE", Industry: "Software", MarketCap: 1e9, Week: 6, Month: 1,
	})

	results := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)

	top := results[0].TopContributors
	require.Len(t, top, DefaultTopN)
	assert.Equal(t, "T6", top[0].Ticker)
	assert.Equal(t, "TIE", top[1].Ticker)
	assert.Equal(t, "T5", top[2].Ticker)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Week, top[i].Week)
	}
}

func TestTopContributorsConfigurableLimit(t *testing.T) {
	results := Aggregate(techRows(), Options{GroupBy: contracts.GroupByIndustry, TopN: 1})
	require.Len(t, results, 1)
	require.Len(t, results[0].TopContributors, 1)
	assert.Equal(t, "A", results[0].TopContributors[0].Ticker)
}

func TestAggregateIdempotent(t *testing.T) {
	rows := techRows()
	first := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	second := Aggregate(rows, Options{GroupBy: contracts.GroupByIndustry})
	assert.Equal(t, first, second)
}

func TestWeightedWeekWithinMemberRange(t *testing.T) {
	results := Aggregate(techRows(), Options{GroupBy: contracts.GroupByIndustry})
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Week, -3.0)
	assert.LessOrEqual(t, results[0].Week, 5.0)
}
