// Package normalize converts raw provider strings into clean numeric
// fields. Parse failures never abort a run: bad values default to zero
// or mark the row absent, and are counted for observability.
package normalize

import (
	"strconv"
	"strings"

	"github.com/quantfeed/pulse/internal/contracts"
)

// MarketCap parses a capitalization string with a magnitude suffix
// (B, M, K). All non-numeric characters except the decimal point are
// stripped before parsing. Empty or unparseable input yields 0.
func MarketCap(raw string) float64 {
	if raw == "" {
		return 0
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}

	switch {
	case strings.HasSuffix(raw, "B"):
		return value * 1_000_000_000
	case strings.HasSuffix(raw, "M"):
		return value * 1_000_000
	case strings.HasSuffix(raw, "K"):
		return value * 1_000
	}
	return value
}

// Percent parses a percent string. The provider uses "-" as a
// placeholder for missing data; it and the empty string yield 0.
func Percent(raw string) float64 {
	if raw == "" || raw == "-" {
		return 0
	}

	value, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return 0
	}
	return value
}

// optionalFloat parses a numeric column where absence matters, like
// RSI. Placeholder and unparseable values stay nil instead of becoming
// a misleading zero.
func optionalFloat(raw string) *float64 {
	if raw == "" || raw == "-" {
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return nil
	}
	return &value
}

// Raw provider column names
const (
	colTicker    = "Ticker"
	colSector    = "Sector"
	colIndustry  = "Industry"
	colMarketCap = "Market Cap"
	colPerfWeek  = "Performance (Week)"
	colPerfMonth = "Performance (Month)"
	colRSI       = "RSI"
	colRSI14     = "RSI (14)"
)

// Stats counts rows excluded during normalization
type Stats struct {
	Total              int
	MissingTicker      int
	MissingPerformance int
}

type perfEntry struct {
	week  float64
	month float64
}

// Rows joins the raw view tables by ticker identity and produces
// normalized instrument rows. A row needs an identity and a matching
// performance record; everything else degrades to zero/absent.
func Rows(views contracts.RawViews) ([]contracts.InstrumentRow, Stats) {
	var stats Stats

	perf := make(map[string]perfEntry, len(views.Performance.Rows))
	for _, row := range views.Performance.Rows {
		ticker := row[colTicker]
		if ticker == "" {
			continue
		}
		perf[ticker] = perfEntry{
			week:  Percent(row[colPerfWeek]),
			month: Percent(row[colPerfMonth]),
		}
	}

	rsi := make(map[string]*float64, len(views.Technical.Rows))
	for _, row := range views.Technical.Rows {
		ticker := row[colTicker]
		if ticker == "" {
			continue
		}
		raw, ok := row[colRSI]
		if !ok {
			raw = row[colRSI14]
		}
		rsi[ticker] = optionalFloat(raw)
	}

	rows := make([]contracts.InstrumentRow, 0, len(views.Overview.Rows))
	for _, row := range views.Overview.Rows {
		stats.Total++

		ticker := row[colTicker]
		if ticker == "" {
			stats.MissingTicker++
			continue
		}

		p, ok := perf[ticker]
		if !ok {
			stats.MissingPerformance++
			continue
		}

		rows = append(rows, contracts.InstrumentRow{
			Ticker:    ticker,
			Sector:    row[colSector],
			Industry:  row[colIndustry],
			MarketCap: MarketCap(row[colMarketCap]),
			Week:      p.week,
			Month:     p.month,
			RSI:       rsi[ticker],
		})
	}

	return rows, stats
}
