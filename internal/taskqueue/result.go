package taskqueue

import (
	"context"
	"sync"
	"time"

	"pixie/internal/errkind"
)

// Status is the lifecycle of a submitted task.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// TaskResult tracks one submitted task. It is created at enqueue time and
// written by exactly one worker; any number of goroutines may read it or
// block on Get.
type TaskResult struct {
	queue *Queue

	mu         sync.Mutex
	status     Status
	value      any
	err        error
	finishedAt time.Time

	done chan struct{}
}

func newTaskResult(q *Queue) *TaskResult {
	return &TaskResult{
		queue:  q,
		status: StatusPending,
		done:   make(chan struct{}),
	}
}

// Queue returns the queue the task was submitted to.
func (r *TaskResult) Queue() *Queue {
	return r.queue
}

// Status returns the current lifecycle state.
func (r *TaskResult) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Value returns the task's return value once it succeeded, nil otherwise.
func (r *TaskResult) Value() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Err returns the captured task error, nil while non-terminal or on
// success.
func (r *TaskResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// FinishedAt reports when the task reached a terminal state.
func (r *TaskResult) FinishedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt, !r.finishedAt.IsZero()
}

// Ready reports whether the task has finished, successfully or not.
func (r *TaskResult) Ready() bool {
	return r.Status().Terminal()
}

// Successful reports whether the task finished without error.
func (r *TaskResult) Successful() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusSuccess
}

// Failed reports whether the task finished with an error.
func (r *TaskResult) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusFailure
}

// Get blocks until the task is terminal and returns its value, propagating
// the captured task error. A context deadline or cancellation surfaces as
// an errkind.ErrTimeout-tagged error.
func (r *TaskResult) Get(ctx context.Context) (any, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.err
}

// Wait blocks until the task is terminal without propagating the task's own
// error. Only deadline and cancellation errors are returned.
func (r *TaskResult) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errkind.Wrap(errkind.ErrTimeout, "taskqueue", "wait", "task not finished", ctx.Err())
	}
}

// markStarted transitions Pending → Started. Later transitions win if the
// worker raced ahead; a terminal state is never overwritten.
func (r *TaskResult) markStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusPending {
		r.status = StatusStarted
	}
}

func (r *TaskResult) markSuccess(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = StatusSuccess
	r.value = value
	r.err = nil
	r.finishedAt = time.Now()
	close(r.done)
}

func (r *TaskResult) markFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = StatusFailure
	r.value = nil
	r.err = err
	r.finishedAt = time.Now()
	close(r.done)
}
