package coinmarketcap

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"resty.dev/v3"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
	"marketingest/internal/scrape"
	"marketingest/internal/table"
)

// DefaultURL is the listing page sorted by market cap
const DefaultURL = "https://coinmarketcap.com/"

// Columns of a listing artifact
var Columns = []string{"Rank", "Name", "Symbol", "Price", "24h Change", "Market Cap", "24h Volume"}

// Cell positions in a listing row
const (
	cellName      = 2
	cellPrice     = 3
	cellChange24h = 4
	cellMarketCap = 7
	cellVolume24h = 8
	minCells      = cellVolume24h + 1
)

// ItemKey names the single work item of a top-N scrape
func ItemKey(limit int) string {
	return fmt.Sprintf("top%d", limit)
}

// TopFetcher scrapes the top cryptocurrencies by market cap
type TopFetcher struct {
	client  *resty.Client
	url     string
	limit   int
	limiter *ratelimit.Limiter
}

// NewTopFetcher creates a fetcher for the first limit rows of the listing page
func NewTopFetcher(url string, limit int, limiter *ratelimit.Limiter) *TopFetcher {
	return &TopFetcher{
		client:  fetcher.NewHTMLClient(""),
		url:     url,
		limit:   limit,
		limiter: limiter,
	}
}

// Fetch downloads the listing page and extracts the top rows
func (f *TopFetcher) Fetch(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.SourceCoinMarketCap); err != nil {
		return nil, fetcher.NewTimeoutError(err)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		Get(f.url)
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return ParseListing(resp.String(), f.limit)
}

// ParseListing reads the first limit body rows of the listing table. Rows
// with too few cells are skipped but still count toward the limit.
func ParseListing(page string, limit int) (*table.Table, error) {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, fetcher.NewUpstreamFormatError("%v", err)
	}

	var rows []*html.Node
	for _, body := range scrape.FindAll(doc, atom.Tbody) {
		rows = append(rows, scrape.FindAll(body, atom.Tr)...)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		return nil, fetcher.NewUpstreamFormatError("no listing rows found, page layout may have changed")
	}

	t := table.New(Columns...)
	for i, row := range rows {
		rank := i + 1
		cells := scrape.Children(row, atom.Td)
		if len(cells) < minCells {
			continue
		}

		name, symbol := nameAndSymbol(cells[cellName], rank)
		err := t.Append(
			strconv.Itoa(rank),
			name,
			symbol,
			scrape.Text(cells[cellPrice]),
			scrape.Text(cells[cellChange24h]),
			scrape.Text(cells[cellMarketCap]),
			scrape.Text(cells[cellVolume24h]),
		)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// nameAndSymbol reads the first two paragraphs of the name cell
func nameAndSymbol(cell *html.Node, rank int) (string, string) {
	name := fmt.Sprintf("Crypto %d", rank)
	symbol := "N/A"

	if p := scrape.Find(cell, atom.P); p != nil {
		if text := scrape.Text(p); text != "" {
			name = text
		}
	}
	if paragraphs := scrape.FindAll(cell, atom.P); len(paragraphs) > 1 {
		symbol = scrape.Text(paragraphs[1])
	}
	return name, symbol
}
