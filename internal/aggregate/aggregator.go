// Package aggregate computes per-group performance statistics from
// normalized instrument rows.
package aggregate

import (
	"sort"

	"github.com/quantfeed/pulse/internal/contracts"
)

// DefaultTopN is the number of top contributors kept per group
const DefaultTopN = 5

// tickerMonthFraction quarters the monthly performance when computing
// single-ticker momentum (week - month/4). Grouped momentum compares a
// week against a full month; for a single instrument that difference
// collapses toward zero, so the monthly figure is scaled to roughly one
// week of trend to keep ticker-level momentum in the same dynamic range
// as group-level momentum.
const tickerMonthFraction = 4

// Options controls one aggregation run
type Options struct {
	GroupBy        contracts.GroupBy
	SectorFilter   string
	IndustryFilter string
	TopN           int // top contributors per group; 0 means DefaultTopN
}

// group accumulates statistics for one group key in encounter order
type group struct {
	name     string
	totalCap float64

	weightedWeek  float64
	weightedMonth float64
	sumWeek       float64
	sumMonth      float64
	count         int

	// RSI runs on its own denominators: not every member has a value
	weightedRSI float64
	rsiCap      float64
	sumRSI      float64
	rsiCount    int

	members []contracts.Contributor
}

// Aggregate groups eligible rows and computes weighted and
// equal-weighted statistics per group. Output is sorted by momentum
// descending; ties keep group encounter order. Groups with no eligible
// members are omitted entirely.
func Aggregate(rows []contracts.InstrumentRow, opts Options) []contracts.GroupAggregate {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	groups := make(map[string]*group)
	var order []string

	for _, row := range rows {
		if row.MarketCap <= 0 {
			continue
		}
		if opts.SectorFilter != "" && opts.GroupBy != contracts.GroupBySector && row.Sector != opts.SectorFilter {
			continue
		}
		if opts.IndustryFilter != "" && opts.GroupBy == contracts.GroupByTicker && row.Industry != opts.IndustryFilter {
			continue
		}

		name := groupKey(row, opts.GroupBy)
		if name == "" {
			continue
		}

		g, ok := groups[name]
		if !ok {
			g = &group{name: name}
			groups[name] = g
			order = append(order, name)
		}

		g.totalCap += row.MarketCap
		g.count++
		g.weightedWeek += row.Week * row.MarketCap
		g.weightedMonth += row.Month * row.MarketCap
		g.sumWeek += row.Week
		g.sumMonth += row.Month

		if row.RSI != nil {
			g.weightedRSI += *row.RSI * row.MarketCap
			g.rsiCap += row.MarketCap
			g.sumRSI += *row.RSI
			g.rsiCount++
		}

		g.members = append(g.members, contracts.Contributor{Ticker: row.Ticker, Week: row.Week})
	}

	results := make([]contracts.GroupAggregate, 0, len(order))
	for _, name := range order {
		g := groups[name]
		if g.totalCap <= 0 || g.count == 0 {
			continue
		}
		results = append(results, g.finalize(opts.GroupBy, topN))
	}

	// Momentum descending, stable on ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Momentum > results[j].Momentum
	})

	return results
}

// groupKey returns the group label for a row under the chosen dimension
func groupKey(row contracts.InstrumentRow, by contracts.GroupBy) string {
	switch by {
	case contracts.GroupBySector:
		return row.Sector
	case contracts.GroupByTicker:
		return row.Ticker
	default:
		return row.Industry
	}
}

// finalize turns the accumulated sums into one GroupAggregate
func (g *group) finalize(by contracts.GroupBy, topN int) contracts.GroupAggregate {
	week := g.weightedWeek / g.totalCap
	month := g.weightedMonth / g.totalCap
	weekEqual := g.sumWeek / float64(g.count)
	monthEqual := g.sumMonth / float64(g.count)

	momentum := week - month
	momentumEqual := weekEqual - monthEqual
	if by == contracts.GroupByTicker {
		// Singleton groups: weighted and equal figures coincide, so a
		// plain week-month momentum would compare near-equal numbers.
		momentum = week - month/tickerMonthFraction
		momentumEqual = weekEqual - monthEqual/tickerMonthFraction
	}

	agg := contracts.GroupAggregate{
		Name:            g.name,
		Week:            week,
		Month:           month,
		Momentum:        momentum,
		WeekEqual:       weekEqual,
		MonthEqual:      monthEqual,
		MomentumEqual:   momentumEqual,
		MarketCap:       g.totalCap,
		StockCount:      g.count,
		TopContributors: topContributors(g.members, topN),
	}

	if g.rsiCount > 0 && g.rsiCap > 0 {
		rsi := g.weightedRSI / g.rsiCap
		rsiEqual := g.sumRSI / float64(g.rsiCount)
		agg.RSI = &rsi
		agg.RSIEqual = &rsiEqual
	}

	return agg
}

// topContributors returns up to n members sorted by weekly performance
// descending, ties keeping original order.
func topContributors(members []contracts.Contributor, n int) []contracts.Contributor {
	sorted := make([]contracts.Contributor, len(members))
	copy(sorted, members)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Week > sorted[j].Week
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
