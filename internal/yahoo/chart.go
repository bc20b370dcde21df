package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	_ "time/tzdata"

	"resty.dev/v3"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
	"marketingest/internal/table"
)

// DefaultBaseURL is the production chart API host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Columns of a bars artifact
var Columns = []string{"Datetime", "Open", "High", "Low", "Close", "Volume"}

const datetimeLayout = "2006-01-02 15:04:05-07:00"

// ChartResponse represents the Yahoo Finance chart API response
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartResult holds the bars for one symbol
type ChartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []Quote `json:"quote"`
	} `json:"indicators"`
}

// Quote holds parallel OHLCV series; missing samples are null
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// ChartError is returned in the body of failed chart requests
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// BarsFetcher fetches intraday OHLCV bars for a ticker
type BarsFetcher struct {
	client   *resty.Client
	limiter  *ratelimit.Limiter
	interval string
	span     string
}

// NewBarsFetcher creates a bars fetcher for the given bar interval ("1m")
// and lookback range ("7d")
func NewBarsFetcher(baseURL, interval, span string, limiter *ratelimit.Limiter) *BarsFetcher {
	return &BarsFetcher{
		client:   fetcher.NewHTTPClient(baseURL).SetHeaders(fetcher.BrowserHeaders).SetHeader("Accept", "application/json"),
		limiter:  limiter,
		interval: interval,
		span:     span,
	}
}

// Fetch retrieves the bars for item.Key. A symbol the source has no data for
// yields an empty table rather than an error.
func (f *BarsFetcher) Fetch(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.SourceYahoo); err != nil {
		return nil, fetcher.NewTimeoutError(err)
	}

	var result ChartResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("symbol", item.Key).
		SetQueryParams(map[string]string{
			"interval": f.interval,
			"range":    f.span,
		}).
		SetResult(&result).
		Get("/v8/finance/chart/{symbol}")

	if err == nil && resp.StatusCode() == http.StatusNotFound {
		// Unknown or delisted symbols come back as 404 with a chart error body
		var notFound ChartResponse
		if json.Unmarshal([]byte(resp.String()), &notFound) == nil && notFound.Chart.Error != nil {
			return table.New(Columns...), nil
		}
	}
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	if result.Chart.Error != nil {
		return nil, fetcher.NewUpstreamFormatError("chart error for %s: %s: %s",
			item.Key, result.Chart.Error.Code, result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 {
		return nil, fetcher.NewUpstreamFormatError("chart result missing for %s", item.Key)
	}

	return toTable(item.Key, result.Chart.Result[0])
}

// toTable flattens the parallel series into rows, skipping samples with no close
func toTable(symbol string, r ChartResult) (*table.Table, error) {
	t := table.New(Columns...)
	if len(r.Timestamp) == 0 {
		return t, nil
	}

	if len(r.Indicators.Quote) == 0 {
		return nil, fetcher.NewUpstreamFormatError("quote series missing for %s", symbol)
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n || len(q.Volume) != n {
		return nil, fetcher.NewUpstreamFormatError("quote series for %s do not match %d timestamps", symbol, n)
	}

	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	for i, ts := range r.Timestamp {
		if q.Close[i] == nil {
			continue
		}
		err := t.Append(
			time.Unix(ts, 0).In(loc).Format(datetimeLayout),
			formatFloat(q.Open[i]),
			formatFloat(q.High[i]),
			formatFloat(q.Low[i]),
			formatFloat(q.Close[i]),
			formatInt(q.Volume[i]),
		)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
