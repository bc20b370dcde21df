package table

import (
	"bytes"
	"encoding/csv"

	"github.com/cockroachdb/errors"
)

// Table is the payload a fetcher hands to a sink: a header row plus data rows.
// A Table is owned by the task that fetched it and is never shared.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. The row must have one value per column.
func (t *Table) Append(row ...string) error {
	if len(row) != len(t.Columns) {
		return errors.Newf("row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table carries no data rows. A nil table is empty.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// CSV encodes the table with a header row
func (t *Table) CSV() ([]byte, error) {
	if t == nil {
		return nil, errors.New("nil table")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, errors.Wrap(err, "failed to write csv header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, errors.Newf("row %d has %d values, want %d", i, len(row), len(t.Columns))
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrapf(err, "failed to write csv row %d", i)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush csv")
	}
	return buf.Bytes(), nil
}
