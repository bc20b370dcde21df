package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
)

// Format selects how a report is written
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.Newf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Write renders the report to w in the given format
func (r *BatchReport) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatYAML:
		return r.WriteYAML(w)
	default:
		return r.WriteTable(w)
	}
}

// WriteTable renders one row per item followed by a summary line
func (r *BatchReport) WriteTable(w io.Writer) error {
	data := pterm.TableData{{"KEY", "STATUS", "ATTEMPTS", "ROWS", "LOCATION / ERROR"}}
	for _, o := range r.Outcomes {
		detail := o.Location
		if detail == "" {
			detail = o.Error
		}
		data = append(data, []string{
			o.Key,
			string(o.Status),
			strconv.Itoa(o.Attempts),
			strconv.Itoa(o.Rows),
			detail,
		})
	}

	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render report table")
	}

	_, err = fmt.Fprintf(w, "%s\n%s: %d total, %d succeeded, %d failed (run %s, %s)\n",
		rendered, r.Overall(), r.Total(), r.Succeeded, r.Failed, r.RunID,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return err
}
