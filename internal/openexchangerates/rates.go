package openexchangerates

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"resty.dev/v3"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
	"marketingest/internal/table"
)

// DefaultBaseURL is the production API root
const DefaultBaseURL = "https://openexchangerates.org/api"

// Columns of a rates artifact
var Columns = []string{"Currency", "Rate"}

// LatestResponse represents the latest.json response
type LatestResponse struct {
	Base      string             `json:"base"`
	Timestamp int64              `json:"timestamp"`
	Rates     map[string]float64 `json:"rates"`
}

// ErrorResponse is the body returned with non-2xx statuses
type ErrorResponse struct {
	Error       bool   `json:"error"`
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// RatesFetcher fetches the latest exchange rates relative to a base currency.
// The item key is the base currency code.
type RatesFetcher struct {
	appID   string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewRatesFetcher creates a new exchange-rate fetcher
func NewRatesFetcher(appID, baseURL string, limiter *ratelimit.Limiter) *RatesFetcher {
	return &RatesFetcher{
		appID:   appID,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
	}
}

// Fetch retrieves rates for base item.Key, one row per currency sorted by code
func (f *RatesFetcher) Fetch(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.SourceOpenExchangeRates); err != nil {
		return nil, fetcher.NewTimeoutError(err)
	}

	var result LatestResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"app_id": f.appID,
			"base":   strings.ToUpper(item.Key),
		}).
		SetResult(&result).
		Get("/latest.json")

	if checkErr := fetcher.CheckResponse(resp, err); checkErr != nil {
		var fe *fetcher.FetchError
		if err == nil && errors.As(checkErr, &fe) {
			var body ErrorResponse
			if json.Unmarshal([]byte(resp.String()), &body) == nil && body.Message != "" {
				fe.Message = body.Message
			}
		}
		return nil, checkErr
	}

	if result.Base == "" || result.Rates == nil {
		return nil, fetcher.NewUpstreamFormatError("latest rates for %s missing base or rates", item.Key)
	}

	return ToTable(result), nil
}

// ToTable converts a rates response into a Currency,Rate table
func ToTable(r LatestResponse) *table.Table {
	t := table.New(Columns...)
	for _, currency := range slices.Sorted(maps.Keys(r.Rates)) {
		t.Rows = append(t.Rows, []string{
			currency,
			strconv.FormatFloat(r.Rates[currency], 'f', -1, 64),
		})
	}
	return t
}
