package contracts

import (
	"fmt"
	"strings"
)

// GroupBy selects the grouping dimension for aggregation
type GroupBy string

const (
	GroupBySector   GroupBy = "sector"
	GroupByIndustry GroupBy = "industry"
	GroupByTicker   GroupBy = "ticker"
)

// ParseGroupBy parses a groupBy query value, defaulting to industry
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(s) {
	case "":
		return GroupByIndustry, nil
	case "sector":
		return GroupBySector, nil
	case "industry":
		return GroupByIndustry, nil
	case "ticker":
		return GroupByTicker, nil
	default:
		return "", fmt.Errorf("invalid groupBy %q (valid: sector, industry, ticker)", s)
	}
}

// YAxis selects the vertical axis of the momentum matrix
type YAxis string

const (
	YAxisWeek YAxis = "week"
	YAxisRSI  YAxis = "rsi"
)

// ParseYAxis parses a yAxis query value, defaulting to week
func ParseYAxis(s string) (YAxis, error) {
	switch strings.ToLower(s) {
	case "":
		return YAxisWeek, nil
	case "week":
		return YAxisWeek, nil
	case "rsi":
		return YAxisRSI, nil
	default:
		return "", fmt.Errorf("invalid yAxis %q (valid: week, rsi)", s)
	}
}

// Weighting selects between capitalization-weighted and equal-weighted figures
type Weighting string

const (
	WeightingCap   Weighting = "weighted"
	WeightingEqual Weighting = "equal"
)

// ParseWeighting parses a weighting query value, defaulting to cap-weighted
func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(s) {
	case "", "weighted", "cap":
		return WeightingCap, nil
	case "equal":
		return WeightingEqual, nil
	default:
		return "", fmt.Errorf("invalid weighting %q (valid: weighted, equal)", s)
	}
}

// InstrumentRow is one normalized record for a single instrument at a
// point in time. Rows with MarketCap <= 0 or without performance data
// are excluded from aggregation.
type InstrumentRow struct {
	Ticker    string
	Sector    string
	Industry  string
	MarketCap float64
	Week      float64  // weekly performance, percent
	Month     float64  // monthly performance, percent
	RSI       *float64 // 14-day RSI, nil when the provider has no value
}

// Contributor is one of a group's top constituents by weekly performance
type Contributor struct {
	Ticker string  `json:"ticker"`
	Week   float64 `json:"week"`
}

// GroupAggregate holds the computed statistics for one group at one
// point in time. Instances are immutable once computed; a fresh
// aggregation run always produces a new set.
//
// JSON field names match the persisted snapshot format, which predates
// this implementation.
type GroupAggregate struct {
	Name string `json:"name"`

	// Capitalization-weighted
	Week     float64  `json:"week"`
	Month    float64  `json:"month"`
	Momentum float64  `json:"momentum"`
	RSI      *float64 `json:"rsi,omitempty"`

	// Equal-weighted
	WeekEqual     float64  `json:"weekEqual"`
	MonthEqual    float64  `json:"monthEqual"`
	MomentumEqual float64  `json:"momentumEqual"`
	RSIEqual      *float64 `json:"rsiEqual,omitempty"`

	MarketCap       float64       `json:"marketCap"`
	StockCount      int           `json:"stockCount"`
	TopContributors []Contributor `json:"topStocks"`
}

// MomentumFor returns the momentum figure for the given weighting mode
func (g GroupAggregate) MomentumFor(w Weighting) float64 {
	if w == WeightingEqual {
		return g.MomentumEqual
	}
	return g.Momentum
}

// YValueFor returns the display value for the given axis and weighting.
// The second return is false when the group has no value on that axis.
func (g GroupAggregate) YValueFor(axis YAxis, w Weighting) (float64, bool) {
	if axis == YAxisRSI {
		v := g.RSI
		if w == WeightingEqual {
			v = g.RSIEqual
		}
		if v == nil {
			return 0, false
		}
		return *v, true
	}
	if w == WeightingEqual {
		return g.WeekEqual, true
	}
	return g.Week, true
}
