package taskqueue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pixie/internal/errkind"
)

// DefaultWorkerWait is the period at which idle workers re-check the halt
// signal.
const DefaultWorkerWait = 200 * time.Millisecond

// Task is one unit of work. The returned error marks the task failed; a
// panic inside the task is recovered and captured the same way.
type Task func() (any, error)

type job struct {
	fn     Task
	result *TaskResult
}

// Queue is an unbounded FIFO task queue served by a pool of worker
// goroutines. The zero value is not usable; construct with New.
type Queue struct {
	workerWait time.Duration
	logger     *slog.Logger

	lifecycle sync.Mutex // guards running, haltCh, wg
	running   bool
	haltCh    chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex // guards pending
	pending []*job
	wake    chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkerWait overrides the idle poll period.
func WithWorkerWait(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.workerWait = d
		}
	}
}

// WithLogger attaches a logger for worker bookkeeping failures.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger.With("component", "taskqueue")
		}
	}
}

// New constructs an empty queue with no workers running.
func New(opts ...Option) *Queue {
	q := &Queue{
		workerWait: DefaultWorkerWait,
		logger:     slog.New(slog.DiscardHandler),
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SpawnWorkers starts exactly n workers. It fails when workers are already
// running; call HaltWorkers first.
func (q *Queue) SpawnWorkers(n int) error {
	if n <= 0 {
		return errkind.Wrap(errkind.ErrConfiguration, "taskqueue", "spawn", fmt.Sprintf("worker count %d", n), nil)
	}
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	if q.running {
		return fmt.Errorf("taskqueue: workers already spawned")
	}
	q.running = true
	q.haltCh = make(chan struct{})
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.worker(q.haltCh)
	}
	return nil
}

// HaltWorkers signals all workers to stop after their current task and
// blocks until they exit. Queued but unstarted tasks stay queued. Safe to
// call with no workers running; idempotent.
func (q *Queue) HaltWorkers() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	if !q.running {
		return
	}
	close(q.haltCh)
	q.wg.Wait()
	q.running = false
}

// Running reports whether a worker pool is active.
func (q *Queue) Running() bool {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()
	return q.running
}

// Len reports the number of queued, unstarted tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Enqueue appends a task and returns its result handle immediately. The
// queue is unbounded, so Enqueue never blocks; the task runs on whichever
// worker next becomes free, FIFO relative to other enqueues.
func (q *Queue) Enqueue(fn Task) *TaskResult {
	result := newTaskResult(q)
	q.mu.Lock()
	q.pending = append(q.pending, &job{fn: fn, result: result})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return result
}

func (q *Queue) dequeue() *job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	return next
}

func (q *Queue) worker(haltCh <-chan struct{}) {
	defer q.wg.Done()
	for {
		select {
		case <-haltCh:
			return
		default:
		}

		next := q.dequeue()
		if next == nil {
			select {
			case <-haltCh:
				return
			case <-q.wake:
			case <-time.After(q.workerWait):
			}
			continue
		}
		q.execute(next)
	}
}

// execute runs one task, capturing its outcome on the result handle. An
// error escaping the queue's own bookkeeping is logged and swallowed so the
// worker stays alive.
func (q *Queue) execute(next *job) {
	defer func() {
		if recovered := recover(); recovered != nil {
			q.logger.Error("unhandled error in worker", "panic", fmt.Sprint(recovered))
		}
	}()

	next.result.markStarted()
	value, err := runTask(next.fn)
	if err != nil {
		next.result.markFailure(err)
		return
	}
	next.result.markSuccess(value)
}

func runTask(fn Task) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			if e, ok := recovered.(error); ok {
				err = fmt.Errorf("task panic: %w", e)
				return
			}
			err = fmt.Errorf("task panic: %v", recovered)
		}
	}()
	return fn()
}
