// Package finviz fetches screener view tables from the Finviz Elite
// CSV export API.
package finviz

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/pkg/config"
	"github.com/quantfeed/pulse/pkg/httputil"
	"github.com/quantfeed/pulse/pkg/logger"
)

// View identifies one export view of the screener
type View string

// The six views fetched on every refresh
const (
	ViewOverview    View = "111"
	ViewValuation   View = "121"
	ViewFinancial   View = "131"
	ViewPerformance View = "141"
	ViewCustom      View = "161"
	ViewTechnical   View = "171"
)

// Client handles communication with the Finviz export API. Successive
// view fetches are throttled with a fixed minimum delay to respect the
// provider's rate limits.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	filter     string
}

// NewClient creates a new Finviz client from config
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	limit := rate.Inf
	if cfg.Finviz.FetchDelay > 0 {
		limit = rate.Every(cfg.Finviz.FetchDelay)
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    cfg.Finviz.BaseURL,
		apiKey:     cfg.Finviz.APIKey,
		filter:     cfg.Finviz.Filter,
	}
}

// FetchView fetches and parses one export view
func (c *Client) FetchView(ctx context.Context, view View) (contracts.Table, error) {
	if c.apiKey == "" {
		return contracts.Table{}, fmt.Errorf("FINVIZ_API_KEY is not configured")
	}

	// Fixed-delay throttle between successive export calls
	if err := c.limiter.Wait(ctx); err != nil {
		return contracts.Table{}, err
	}

	params := url.Values{}
	params.Set("v", string(view))
	params.Set("f", c.filter)
	params.Set("auth", c.apiKey)

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	c.logger.WithField("view", string(view)).Debug("Fetching Finviz view")

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return contracts.Table{}, fmt.Errorf("%w: view %s: %v", contracts.ErrUpstreamFetch, view, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contracts.Table{}, fmt.Errorf("%w: view %s: unexpected status code %d", contracts.ErrUpstreamFetch, view, resp.StatusCode)
	}

	table, err := parseCSV(resp.Body)
	if err != nil {
		return contracts.Table{}, fmt.Errorf("%w: view %s: %v", contracts.ErrUpstreamFetch, view, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"view": string(view),
		"rows": len(table.Rows),
	}).Debug("Fetched Finviz view")

	return table, nil
}

// FetchAll fetches all six views in order. A failure on any view
// aborts the whole fetch so a partial snapshot is never built.
func (c *Client) FetchAll(ctx context.Context) (contracts.RawViews, error) {
	var views contracts.RawViews

	fetches := []struct {
		view View
		dest *contracts.Table
	}{
		{ViewOverview, &views.Overview},
		{ViewValuation, &views.Valuation},
		{ViewFinancial, &views.Financial},
		{ViewPerformance, &views.Performance},
		{ViewTechnical, &views.Technical},
		{ViewCustom, &views.Custom},
	}

	for _, f := range fetches {
		table, err := c.FetchView(ctx, f.view)
		if err != nil {
			return contracts.RawViews{}, err
		}
		*f.dest = table
	}

	return views, nil
}

// parseCSV reads an export response into a Table: first record is the
// header, remaining records become column-keyed rows. Short records
// are tolerated; their missing columns stay unset.
func parseCSV(r io.Reader) (contracts.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // provider rows occasionally vary in width

	header, err := reader.Read()
	if err != nil {
		return contracts.Table{}, fmt.Errorf("read header: %w", err)
	}

	table := contracts.Table{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return contracts.Table{}, fmt.Errorf("read record: %w", err)
		}

		row := make(contracts.RawRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
