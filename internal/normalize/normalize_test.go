package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfeed/pulse/internal/contracts"
)

func TestMarketCap(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"billions", "1.5B", 1_500_000_000},
		{"millions", "250.3M", 250_300_000},
		{"thousands", "900K", 900_000},
		{"plain number", "12345", 12345},
		{"empty", "", 0},
		{"placeholder", "-", 0},
		{"garbage", "N/A", 0},
		{"commas stripped", "1,234.5M", 1_234_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MarketCap(tt.raw), 1e-6)
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"positive", "2.50%", 2.5},
		{"negative", "-3.25%", -3.25},
		{"no suffix", "1.75", 1.75},
		{"empty", "", 0},
		{"placeholder", "-", 0},
		{"garbage", "abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percent(tt.raw), 1e-9)
		})
	}
}

func TestOptionalFloat(t *testing.T) {
	assert.Nil(t, optionalFloat(""))
	assert.Nil(t, optionalFloat("-"))
	assert.Nil(t, optionalFloat("n/a"))

	v := optionalFloat("55.2")
	if assert.NotNil(t, v) {
		assert.InDelta(t, 55.2, *v, 1e-9)
	}
}

func TestRows(t *testing.T) {
	views := contracts.RawViews{
		Overview: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "XOM", "Sector": "Energy", "Industry": "Oil & Gas Integrated", "Market Cap": "450.2B"},
			{"Ticker": "CVX", "Sector": "Energy", "Industry": "Oil & Gas Integrated", "Market Cap": "280.1B"},
			{"Ticker": "", "Sector": "Energy"},       // no identity
			{"Ticker": "ORPHAN", "Sector": "Energy"}, // no performance row
		}},
		Performance: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "XOM", "Performance (Week)": "2.50%", "Performance (Month)": "-1.00%"},
			{"Ticker": "CVX", "Performance (Week)": "-", "Performance (Month)": ""},
		}},
		Technical: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "XOM", "RSI": "61.3"},
			{"Ticker": "CVX", "RSI": "-"},
		}},
	}

	rows, stats := Rows(views)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.MissingTicker)
	assert.Equal(t, 1, stats.MissingPerformance)

	if assert.Len(t, rows, 2) {
		xom := rows[0]
		assert.Equal(t, "XOM", xom.Ticker)
		assert.InDelta(t, 450_200_000_000, xom.MarketCap, 1)
		assert.InDelta(t, 2.5, xom.Week, 1e-9)
		assert.InDelta(t, -1.0, xom.Month, 1e-9)
		if assert.NotNil(t, xom.RSI) {
			assert.InDelta(t, 61.3, *xom.RSI, 1e-9)
		}

		cvx := rows[1]
		assert.InDelta(t, 0, cvx.Week, 1e-9) // placeholder degrades to zero
		assert.Nil(t, cvx.RSI)               // placeholder RSI stays absent
	}
}

func TestRowsFallsBackToRSI14Column(t *testing.T) {
	views := contracts.RawViews{
		Overview: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "AAPL", "Market Cap": "3000B"},
		}},
		Performance: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "AAPL", "Performance (Week)": "1.00%", "Performance (Month)": "2.00%"},
		}},
		Technical: contracts.Table{Rows: []contracts.RawRow{
			{"Ticker": "AAPL", "RSI (14)": "48.8"},
		}},
	}

	rows, _ := Rows(views)
	if assert.Len(t, rows, 1) && assert.NotNil(t, rows[0].RSI) {
		assert.InDelta(t, 48.8, *rows[0].RSI, 1e-9)
	}
}
