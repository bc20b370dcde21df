package alphavantage

import (
	"context"
	"maps"
	"slices"

	"resty.dev/v3"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
	"marketingest/internal/table"
)

// DefaultBaseURL is the production query endpoint
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Columns of a daily bars artifact
var Columns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// DailyResponse represents the AlphaVantage TIME_SERIES_DAILY response.
// Throttling and bad requests still return 200 with a message field set.
type DailyResponse struct {
	MetaData struct {
		Symbol        string `json:"2. Symbol"`
		LastRefreshed string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	TimeSeries   map[string]DailyBar `json:"Time Series (Daily)"`
	Note         string              `json:"Note"`
	Information  string              `json:"Information"`
	ErrorMessage string              `json:"Error Message"`
}

// DailyBar is one day of prices, all values as strings
type DailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// DailyFetcher fetches daily OHLCV bars from AlphaVantage
type DailyFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewDailyFetcher creates a new daily bars fetcher
func NewDailyFetcher(apiKey, baseURL string, limiter *ratelimit.Limiter) *DailyFetcher {
	return &DailyFetcher{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
	}
}

// Fetch retrieves the compact daily series for item.Key, oldest first
func (f *DailyFetcher) Fetch(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.SourceAlphaVantage); err != nil {
		return nil, fetcher.NewTimeoutError(err)
	}

	var result DailyResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   f.apiKey,
			"function": "TIME_SERIES_DAILY",
			"symbol":   item.Key,
		}).
		SetResult(&result).
		Get("")

	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	switch {
	case result.Note != "":
		return nil, throttled(result.Note)
	case result.Information != "":
		return nil, throttled(result.Information)
	case result.ErrorMessage != "":
		return nil, fetcher.NewUpstreamFormatError("%s: %s", item.Key, result.ErrorMessage)
	case result.TimeSeries == nil:
		return nil, fetcher.NewUpstreamFormatError("time series missing for %s", item.Key)
	}

	t := table.New(Columns...)
	for _, day := range slices.Sorted(maps.Keys(result.TimeSeries)) {
		bar := result.TimeSeries[day]
		if err := t.Append(day, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// throttled reports an in-body quota message. AlphaVantage answers 200 when
// the per-minute or daily quota is spent.
func throttled(message string) *fetcher.FetchError {
	fe := fetcher.NewRateLimitError(0, 0)
	fe.Message = message
	return fe
}
