package fetcher

import (
	"context"

	"marketingest/internal/table"
)

// Fetcher is the core interface that all data sources must implement.
// Each fetcher knows how to retrieve the data for one kind of subject
// (a ticker, an exchange-rate base, a ranked listing) and returns it as a table.
//
// Implementations must be safe to call concurrently and must not retry
// internally; the coordinator owns the retry policy so that every attempt is
// accounted for in the batch report.
type Fetcher interface {
	// Fetch retrieves the data for a single item.
	// A successful fetch with no rows is not an error: return an empty table.
	// Failures should be returned as *FetchError so they can be classified.
	Fetch(ctx context.Context, item Item) (*table.Table, error)
}
