package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"marketingest/internal/fetcher"
	"marketingest/internal/report"
	"marketingest/internal/retry"
	"marketingest/internal/sink"
	"marketingest/internal/table"
)

const (
	// DefaultConcurrency bounds simultaneous fetch+store tasks
	DefaultConcurrency = 5
	// DefaultItemTimeout bounds a single fetch+store task, retries included
	DefaultItemTimeout = 30 * time.Second
	// DefaultKeyTemplate is used when no key template is configured
	DefaultKeyTemplate sink.KeyTemplate = "{key}.csv"
)

// ErrInvalidConfiguration is returned by Run when the coordinator cannot
// start. It is the only error that aborts a batch.
var ErrInvalidConfiguration = errors.New("invalid coordinator configuration")

// Coordinator drives fetch→store for a batch of work items on a bounded
// worker pool and aggregates the per-item outcomes into a report
type Coordinator struct {
	fetcher     fetcher.Fetcher
	sink        sink.Sink
	concurrency int
	itemTimeout time.Duration
	policy      retry.Policy
	keys        sink.KeyTemplate
	logger      *zap.Logger
	now         func() time.Time
	newRunID    func() string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithConcurrency sets the maximum number of in-flight tasks
func WithConcurrency(n int) Option {
	return func(c *Coordinator) { c.concurrency = n }
}

// WithItemTimeout sets the deadline for each fetch+store task. Zero disables it.
func WithItemTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.itemTimeout = d }
}

// WithRetryPolicy sets the policy consulted after a failed fetch
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithKeyTemplate sets how storage keys are derived from item keys
func WithKeyTemplate(t sink.KeyTemplate) Option {
	return func(c *Coordinator) { c.keys = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new Coordinator with the given fetcher and sink
func New(f fetcher.Fetcher, s sink.Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     f,
		sink:        s,
		concurrency: DefaultConcurrency,
		itemTimeout: DefaultItemTimeout,
		policy:      retry.Default(),
		keys:        DefaultKeyTemplate,
		logger:      zap.NewNop(),
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// validate reports every configuration problem at once
func (c *Coordinator) validate() error {
	var problems []string
	if c.fetcher == nil {
		problems = append(problems, "fetcher is required")
	}
	if c.sink == nil {
		problems = append(problems, "sink is required")
	}
	if c.concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if c.itemTimeout < 0 {
		problems = append(problems, "item timeout must not be negative")
	}
	if err := c.keys.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.Mark(
			errors.Newf("invalid coordinator configuration: %s", strings.Join(problems, "; ")),
			ErrInvalidConfiguration,
		)
	}
	return nil
}

// Run processes every item and returns a report with exactly one outcome per
// item, in input order, whatever order the tasks complete in.
//
// Fetch and store failures are recorded in the report and never returned.
// When ctx is cancelled no further items are started; running items finish
// their current attempt and the rest are recorded as cancelled.
func (c *Coordinator) Run(ctx context.Context, items []fetcher.Item) (*report.BatchReport, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	runID := c.newRunID()
	log := c.logger.With(zap.String("run_id", runID))
	startedAt := c.now()

	log.Info("batch started",
		zap.Int("items", len(items)),
		zap.Int("concurrency", c.concurrency),
		zap.Duration("item_timeout", c.itemTimeout))

	// One slot per item, each written by exactly one task
	outcomes := make([]report.ItemOutcome, len(items))
	dispatched := 0

	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			outcomes[i] = c.process(ctx, item, log)
		})
		dispatched++
	}
	p.Wait()

	for i := dispatched; i < len(items); i++ {
		outcomes[i] = cancelledOutcome(items[i])
	}

	r := report.New(runID, startedAt, c.now(), outcomes)

	log.Info("batch finished",
		zap.Int("total", r.Total()),
		zap.Int("succeeded", r.Succeeded),
		zap.Int("failed", r.Failed),
		zap.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)))

	return r, nil
}

// process runs fetch→store for one item and classifies the result
func (c *Coordinator) process(ctx context.Context, item fetcher.Item, log *zap.Logger) report.ItemOutcome {
	// The pool may have been waiting for a free slot while the batch was cancelled
	if ctx.Err() != nil {
		return cancelledOutcome(item)
	}

	start := c.now()
	log = log.With(zap.String("key", item.Key))

	// Detach from batch cancellation so a running task is never cut off
	// mid-write; the item timeout still bounds it.
	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if c.itemTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), c.itemTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	defer cancel()

	out := report.ItemOutcome{Key: item.Key}
	finish := func(status report.Status, err error, kind string) report.ItemOutcome {
		out.Status = status
		out.Duration = c.now().Sub(start)
		if err != nil {
			out.Error = err.Error()
			out.ErrorKind = kind
			log.Warn("item failed",
				zap.String("status", string(status)),
				zap.String("error_kind", kind),
				zap.Int("attempts", out.Attempts),
				zap.Error(err))
		} else {
			log.Debug("item finished",
				zap.String("status", string(status)),
				zap.Int("attempts", out.Attempts),
				zap.Int("rows", out.Rows),
				zap.Duration("duration", out.Duration))
		}
		return out
	}

	payload, attempts, err := c.fetchWithRetry(ctx, taskCtx, item, log)
	out.Attempts = attempts
	if err != nil {
		return finish(report.StatusFetchFailed, err, string(fetcher.KindOf(err)))
	}

	if payload.Empty() {
		out.Error = "source returned no data"
		return finish(report.StatusEmpty, nil, "")
	}
	out.Rows = payload.Len()

	key := c.keys.Key(item.Key)
	location, err := c.storeOnce(taskCtx, key, payload)
	if err != nil {
		return finish(report.StatusStoreFailed, err, string(sink.KindOf(err)))
	}

	out.Location = location
	return finish(report.StatusSuccess, nil, "")
}

// fetchWithRetry calls the fetcher until it succeeds or the policy gives up.
// It returns the number of attempts made.
func (c *Coordinator) fetchWithRetry(batchCtx, taskCtx context.Context, item fetcher.Item, log *zap.Logger) (*table.Table, int, error) {
	for attempt := 1; ; attempt++ {
		payload, err := c.fetchOnce(taskCtx, item)
		if err == nil {
			return payload, attempt, nil
		}

		decision := c.policy.Next(fetcher.KindOf(err), attempt)
		if !decision.Retry {
			return nil, attempt, err
		}

		delay := decision.Delay
		var fe *fetcher.FetchError
		if errors.As(err, &fe) && fe.RetryAfter > delay {
			delay = fe.RetryAfter
		}

		log.Debug("retrying fetch",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-batchCtx.Done():
			return nil, attempt, errors.Wrap(err, "batch cancelled before retry")
		case <-taskCtx.Done():
			return nil, attempt, fetcher.NewTimeoutError(taskCtx.Err())
		}
	}
}

type fetchResult struct {
	payload *table.Table
	err     error
}

// fetchOnce makes a single fetch attempt bounded by ctx. A fetcher that
// ignores its context is reported as timed out at the deadline, but the worker
// slot stays held until the call actually returns.
func (c *Coordinator) fetchOnce(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	done := make(chan fetchResult, 1)
	go func() {
		var (
			res fetchResult
			pc  panics.Catcher
		)
		pc.Try(func() { res.payload, res.err = c.fetcher.Fetch(ctx, item) })
		if r := pc.Recovered(); r != nil {
			res.err = errors.Wrap(r.AsError(), "fetcher panicked")
		}
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fetcher.NewTimeoutError(res.err)
		}
		return res.payload, res.err
	case <-ctx.Done():
		<-done
		return nil, fetcher.NewTimeoutError(ctx.Err())
	}
}

type storeResult struct {
	location string
	err      error
}

// storeOnce hands the payload to the sink, bounded by ctx. A write still
// running at the deadline is awaited before the slot is released and is
// reported as a timeout even if it lands; sinks overwrite by key, so a re-run
// is safe.
func (c *Coordinator) storeOnce(ctx context.Context, key string, payload *table.Table) (string, error) {
	done := make(chan storeResult, 1)
	go func() {
		var (
			res storeResult
			pc  panics.Catcher
		)
		pc.Try(func() { res.location, res.err = c.sink.Store(ctx, key, payload) })
		if r := pc.Recovered(); r != nil {
			res.err = errors.Wrap(r.AsError(), "sink panicked")
		}
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", storeTimeout(key, res.err)
		}
		return res.location, res.err
	case <-ctx.Done():
		<-done
		return "", storeTimeout(key, ctx.Err())
	}
}

func storeTimeout(key string, cause error) error {
	return &sink.SinkError{Kind: sink.KindUnavailable, Key: key, Message: "timeout", Cause: cause}
}

func cancelledOutcome(item fetcher.Item) report.ItemOutcome {
	return report.ItemOutcome{
		Key:    item.Key,
		Status: report.StatusCancelled,
		Error:  "batch cancelled before item started",
	}
}
