package wikipedia

import (
	"context"
	"strings"

	"golang.org/x/net/html/atom"
	"resty.dev/v3"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
	"marketingest/internal/scrape"
)

// DefaultURL is the S&P 500 constituents listing
const DefaultURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

const constituentsTableID = "constituents"

// SP500Lister reads ticker symbols from the S&P 500 constituents page
type SP500Lister struct {
	client  *resty.Client
	url     string
	limiter *ratelimit.Limiter
}

// NewSP500Lister creates a lister for the page at url
func NewSP500Lister(url string, limiter *ratelimit.Limiter) *SP500Lister {
	return &SP500Lister{
		client:  fetcher.NewHTMLClient(""),
		url:     url,
		limiter: limiter,
	}
}

// ListSymbols returns up to limit symbols in page order. Class-share dots are
// replaced with dashes ("BRK.B" becomes "BRK-B"). A limit of zero or less
// returns every symbol.
func (l *SP500Lister) ListSymbols(ctx context.Context, limit int) ([]string, error) {
	if err := l.limiter.Wait(ctx, ratelimit.SourceWikipedia); err != nil {
		return nil, fetcher.NewTimeoutError(err)
	}

	resp, err := l.client.R().
		SetContext(ctx).
		Get(l.url)
	if err := fetcher.CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return ParseSymbols(resp.String(), limit)
}

// ParseSymbols extracts symbols from the first cell of each constituents row
func ParseSymbols(page string, limit int) ([]string, error) {
	doc, err := scrape.Parse(page)
	if err != nil {
		return nil, fetcher.NewUpstreamFormatError("%v", err)
	}

	tbl := scrape.FindByID(doc, constituentsTableID)
	if tbl == nil {
		return nil, fetcher.NewUpstreamFormatError("table %q not found", constituentsTableID)
	}

	var symbols []string
	for _, row := range scrape.FindAll(tbl, atom.Tr) {
		cells := scrape.Children(row, atom.Td)
		if len(cells) == 0 {
			continue
		}

		symbol := strings.ReplaceAll(scrape.Text(cells[0]), ".", "-")
		if symbol == "" {
			continue
		}
		symbols = append(symbols, symbol)
		if limit > 0 && len(symbols) == limit {
			break
		}
	}

	if len(symbols) == 0 {
		return nil, fetcher.NewUpstreamFormatError("table %q has no symbols", constituentsTableID)
	}
	return symbols, nil
}
