package report

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Overall classifies a whole batch
type Overall string

const (
	OverallSuccess Overall = "success"
	OverallPartial Overall = "partial"
	OverallFailure Overall = "failure"
)

// Process exit codes for callers that wrap a batch run
const (
	ExitOK      = 0
	ExitError   = 1
	ExitPartial = 2
	ExitFailure = 3
)

// Overall returns success when nothing failed, failure when nothing
// succeeded, and partial otherwise. An empty batch is a success.
func (r *BatchReport) Overall() Overall {
	switch {
	case r.Failed == 0:
		return OverallSuccess
	case r.Succeeded == 0:
		return OverallFailure
	default:
		return OverallPartial
	}
}

// ExitCode maps the overall result to a process exit code
func (r *BatchReport) ExitCode() int {
	switch r.Overall() {
	case OverallSuccess:
		return ExitOK
	case OverallPartial:
		return ExitPartial
	default:
		return ExitFailure
	}
}

// Summary is the serializable form of a BatchReport
type Summary struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Status    Overall       `json:"status" yaml:"status"`
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Items     []ItemOutcome `json:"items" yaml:"items"`
}

// Summary returns the serializable form of the report
func (r *BatchReport) Summary() Summary {
	items := r.Outcomes
	if items == nil {
		items = []ItemOutcome{}
	}
	return Summary{
		RunID:     r.RunID,
		Status:    r.Overall(),
		Total:     r.Total(),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Items:     items,
	}
}

// WriteJSON writes the summary as indented JSON
func (r *BatchReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r.Summary()), "failed to encode report as json")
}

// WriteYAML writes the summary as YAML
func (r *BatchReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Summary()); err != nil {
		return errors.Wrap(err, "failed to encode report as yaml")
	}
	return errors.Wrap(enc.Close(), "failed to flush yaml encoder")
}
