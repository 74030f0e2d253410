// Package queen drives the fetch-filter-download pipeline: it turns record
// sources into fetch tasks, applies the declarative filter spec, enumerates
// the survivors, and submits one download task per record, tracking
// everything in a hierarchical status tree.
package queen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pixie/internal/download"
	"pixie/internal/errkind"
	"pixie/internal/illust"
	"pixie/internal/query"
	"pixie/internal/taskqueue"
)

// Source produces one record stream per invocation. The callable form lets
// a retried fetch restart the stream from the beginning.
type Source struct {
	Name   string
	Stream func(ctx context.Context) (*illust.Stream, error)
}

// FromRecords wraps an in-memory record slice as a Source.
func FromRecords(name string, records []illust.Illust) Source {
	return Source{
		Name: name,
		Stream: func(context.Context) (*illust.Stream, error) {
			return illust.FromSlice(records), nil
		},
	}
}

// Downloader is the slice of the download orchestrator the driver needs.
type Downloader interface {
	Record(ctx context.Context, record illust.Illust, opts download.Options) ([]download.PageResult, error)
}

// Options configure one fetch task. The filter spec is applied in a fixed
// order: OrderBy, LimitBefore, Filter, Exclude, LimitAfter.
type Options struct {
	OrderBy     []string
	LimitBefore int
	Filter      []query.Predicate[illust.Illust]
	Exclude     []query.Predicate[illust.Illust]
	LimitAfter  int

	// Download carries the per-record download options. When Download.Order
	// is zero the driver injects the record's 1-based enumeration position.
	Download download.Options

	// FetchMaxTries bounds FetchAndDownload's whole-fetch retries; zero or
	// one means a single attempt. Independent of Download.MaxTries.
	FetchMaxTries int
}

// ChildStatus is one record's download state inside a fetch task.
type ChildStatus struct {
	IllustID int64
	Status   taskqueue.Status
	Err      error
}

// TaskStatus is one fetch task's state with its children.
type TaskStatus struct {
	Name     string
	Status   taskqueue.Status
	Err      error
	Children []ChildStatus
}

type trackedChild struct {
	illustID int64
	result   *taskqueue.TaskResult
}

type trackedTask struct {
	name     string
	result   *taskqueue.TaskResult
	children []trackedChild
}

// Queen owns the status tree and submits work to the task queue.
type Queen struct {
	queue      *taskqueue.Queue
	downloader Downloader
	logger     *slog.Logger

	mu    sync.Mutex
	tasks []*trackedTask
}

// New builds a driver over a task queue and a download orchestrator.
func New(queue *taskqueue.Queue, downloader Downloader, logger *slog.Logger) *Queen {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Queen{
		queue:      queue,
		downloader: downloader,
		logger:     logger.With("component", "queen"),
	}
}

// AddFetchTask enqueues one fetch task per source. Each fetch streams its
// records through the filter spec and submits one download task per
// survivor; fetch and downloads proceed concurrently on the worker pool.
func (q *Queen) AddFetchTask(ctx context.Context, opts Options, sources ...Source) []*taskqueue.TaskResult {
	return q.submit(ctx, opts, false, sources)
}

// FetchAndDownload behaves like AddFetchTask but retries the whole fetch up
// to FetchMaxTries attempts on any non-fatal error, annotating an exhausted
// failure with the source it was fetching.
func (q *Queen) FetchAndDownload(ctx context.Context, opts Options, sources ...Source) []*taskqueue.TaskResult {
	return q.submit(ctx, opts, true, sources)
}

func (q *Queen) submit(ctx context.Context, opts Options, retryFetch bool, sources []Source) []*taskqueue.TaskResult {
	results := make([]*taskqueue.TaskResult, 0, len(sources))
	for _, source := range sources {
		source := source
		tracked := &trackedTask{name: source.Name}
		// Enqueue never blocks, so the handle is set before the task is
		// visible to Status readers.
		tracked.result = q.queue.Enqueue(func() (any, error) {
			return q.runFetch(ctx, tracked, source, opts, retryFetch)
		})
		q.mu.Lock()
		q.tasks = append(q.tasks, tracked)
		q.mu.Unlock()

		results = append(results, tracked.result)
	}
	return results
}

func (q *Queen) runFetch(ctx context.Context, tracked *trackedTask, source Source, opts Options, retry bool) (any, error) {
	maxTries := 1
	if retry && opts.FetchMaxTries > 1 {
		maxTries = opts.FetchMaxTries
	}

	var lastErr error
	for attempt := 1; attempt <= maxTries; attempt++ {
		submitted, err := q.fetchOnce(ctx, tracked, source, opts)
		if err == nil {
			return submitted, nil
		}
		lastErr = err
		q.logger.Warn("fetch attempt failed",
			"source", source.Name, "attempt", attempt, "error", err)
		if errkind.Fatal(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, errkind.Wrap(errkind.ErrFetch, "queen", source.Name, "fetch exhausted retries", lastErr)
}

// fetchOnce streams the source through the filter spec, enumerates the
// survivors from 1 and submits their download tasks.
func (q *Queen) fetchOnce(ctx context.Context, tracked *trackedTask, source Source, opts Options) (int, error) {
	stream, err := source.Stream(ctx)
	if err != nil {
		return 0, err
	}

	pipeline := applySpec(query.From(stream.Seq()), opts)
	survivors := pipeline.Collect()
	if err := stream.Err(); err != nil {
		return 0, err
	}

	for i, record := range survivors {
		record := record
		downloadOpts := opts.Download
		if downloadOpts.Order == 0 {
			downloadOpts.Order = i + 1
		}
		result := q.queue.Enqueue(func() (any, error) {
			return q.downloadRecord(ctx, record, downloadOpts)
		})
		q.mu.Lock()
		tracked.children = append(tracked.children, trackedChild{illustID: record.ID, result: result})
		q.mu.Unlock()
	}
	q.logger.Info("fetch complete", "source", source.Name, "submitted", len(survivors))
	return len(survivors), nil
}

// downloadRecord runs one record download and fails the task when any page
// failed, keeping the page results as the task value either way.
func (q *Queen) downloadRecord(ctx context.Context, record illust.Illust, opts download.Options) (any, error) {
	results, err := q.downloader.Record(ctx, record, opts)
	if err != nil {
		return nil, err
	}
	var pageErrs []error
	for _, page := range results {
		if page.Failed() {
			pageErrs = append(pageErrs, page.Err)
		}
	}
	if len(pageErrs) > 0 {
		return results, errors.Join(pageErrs...)
	}
	return results, nil
}

func applySpec(pipeline query.Pipeline[illust.Illust], opts Options) query.Pipeline[illust.Illust] {
	if len(opts.OrderBy) > 0 {
		pipeline = pipeline.OrderBy(opts.OrderBy...)
	}
	if opts.LimitBefore > 0 {
		pipeline = pipeline.Limit(opts.LimitBefore)
	}
	for _, predicate := range opts.Filter {
		pipeline = pipeline.Filter(predicate)
	}
	for _, predicate := range opts.Exclude {
		pipeline = pipeline.Exclude(predicate)
	}
	if opts.LimitAfter > 0 {
		pipeline = pipeline.Limit(opts.LimitAfter)
	}
	return pipeline
}

// Status returns an immutable snapshot of the task tree.
func (q *Queen) Status() []TaskStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]TaskStatus, 0, len(q.tasks))
	for _, tracked := range q.tasks {
		status := TaskStatus{
			Name:   tracked.name,
			Status: tracked.result.Status(),
			Err:    tracked.result.Err(),
		}
		for _, child := range tracked.children {
			status.Children = append(status.Children, ChildStatus{
				IllustID: child.illustID,
				Status:   child.result.Status(),
				Err:      child.result.Err(),
			})
		}
		snapshot = append(snapshot, status)
	}
	return snapshot
}

// AllDone reports whether every fetch task and every submitted download has
// reached a terminal state.
func (q *Queen) AllDone() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, tracked := range q.tasks {
		if !tracked.result.Status().Terminal() {
			return false
		}
		for _, child := range tracked.children {
			if !child.result.Status().Terminal() {
				return false
			}
		}
	}
	return true
}

// Failures lists every terminal failure in the tree, fetch and download
// alike, formatted for a final report.
func (q *Queen) Failures() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var failures []string
	for _, tracked := range q.tasks {
		if err := tracked.result.Err(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", tracked.name, err))
		}
		for _, child := range tracked.children {
			if err := child.result.Err(); err != nil {
				failures = append(failures, fmt.Sprintf("%s illust %d: %v", tracked.name, child.illustID, err))
			}
		}
	}
	return failures
}
