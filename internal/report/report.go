// Package report holds the outcome of a batch run: one ItemOutcome per work
// item, in input order, plus summary counts.
package report

import (
	"time"
)

// Status is the terminal state of a single work item
type Status string

const (
	// StatusSuccess means the payload was fetched and stored
	StatusSuccess Status = "success"
	// StatusFetchFailed means the fetcher returned a terminal error
	StatusFetchFailed Status = "fetch_failed"
	// StatusEmpty means the source answered with no data; nothing was stored
	StatusEmpty Status = "empty"
	// StatusStoreFailed means the payload was fetched but the sink rejected it
	StatusStoreFailed Status = "store_failed"
	// StatusCancelled means the item was never started because the batch was cancelled
	StatusCancelled Status = "cancelled"
)

// ItemOutcome is the result of processing one work item
type ItemOutcome struct {
	Key    string `json:"key" yaml:"key"`
	Status Status `json:"status" yaml:"status"`
	// Location is where the artifact was stored, set only on success
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	// Error describes why the item did not succeed
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// ErrorKind is the classified fetch or sink error kind
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	// Attempts counts fetch attempts, including retries
	Attempts int           `json:"attempts" yaml:"attempts"`
	Rows     int           `json:"rows,omitempty" yaml:"rows,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the item reached the sink successfully
func (o ItemOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// BatchReport is the aggregate, order-preserving record of a run.
// It is assembled once every outcome is known and not modified afterwards.
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []ItemOutcome
	Succeeded  int
	Failed     int
}

// New assembles a report from outcomes that are already in input order
func New(runID string, startedAt, finishedAt time.Time, outcomes []ItemOutcome) *BatchReport {
	r := &BatchReport{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		if o.Succeeded() {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
	return r
}

// Total returns the number of work items in the batch
func (r *BatchReport) Total() int {
	return len(r.Outcomes)
}

// Count returns how many items ended with the given status
func (r *BatchReport) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Outcome returns the outcome for key, if present
func (r *BatchReport) Outcome(key string) (ItemOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Key == key {
			return o, true
		}
	}
	return ItemOutcome{}, false
}
