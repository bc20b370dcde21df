package sink

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"marketingest/internal/table"
)

// Sink defines the behaviour expected from any storage back-end an artifact
// can be written to (local directory, object storage, ...).
//
// Implementations must be safe for concurrent use and idempotent: storing the
// same key twice overwrites the artifact and returns the same location.
// Failures should be returned as *SinkError.
type Sink interface {
	// Store persists the table under key and returns where it was written
	Store(ctx context.Context, key string, payload *table.Table) (string, error)
}

// KeyPlaceholder is replaced by the work item key in a KeyTemplate
const KeyPlaceholder = "{key}"

// KeyTemplate derives a deterministic storage key from a work item key,
// e.g. "yfinance-data/{key}.csv"
type KeyTemplate string

// Validate checks that the template references the item key
func (t KeyTemplate) Validate() error {
	if !strings.Contains(string(t), KeyPlaceholder) {
		return errors.Newf("key template %q must contain %s", string(t), KeyPlaceholder)
	}
	return nil
}

// Key returns the storage key for an item key
func (t KeyTemplate) Key(itemKey string) string {
	return strings.ReplaceAll(string(t), KeyPlaceholder, itemKey)
}
