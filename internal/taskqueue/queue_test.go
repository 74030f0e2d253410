package taskqueue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pixie/internal/errkind"
	"pixie/internal/taskqueue"
)

func TestEnqueueWithoutWorkersNeverStarts(t *testing.T) {
	q := taskqueue.New()
	result := q.Enqueue(func() (any, error) { return "ran", nil })
	q.HaltWorkers() // no workers were spawned; must be a no-op

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := result.Get(ctx); !errors.Is(err, errkind.ErrTimeout) {
		t.Fatalf("Get on unstarted task = %v, want timeout", err)
	}
	if got := result.Status(); got != taskqueue.StatusPending {
		t.Fatalf("status = %v, want pending", got)
	}
}

func TestSuccessCapturesReturnValue(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))
	if err := q.SpawnWorkers(2); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()

	result := q.Enqueue(func() (any, error) { return 42, nil })
	value, err := result.Get(testCtx(t))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != 42 {
		t.Fatalf("value = %v, want 42", value)
	}
	if !result.Successful() || result.Failed() {
		t.Fatal("result flags inconsistent with success")
	}
	if _, ok := result.FinishedAt(); !ok {
		t.Fatal("finished task has no completion timestamp")
	}
}

func TestFailureCapturesError(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))
	if err := q.SpawnWorkers(1); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()

	boom := errors.New("boom")
	result := q.Enqueue(func() (any, error) { return nil, boom })

	if err := result.Wait(testCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if _, err := result.Get(testCtx(t)); !errors.Is(err, boom) {
		t.Fatalf("Get propagated %v, want original task error", err)
	}
	if result.Status() != taskqueue.StatusFailure {
		t.Fatalf("status = %v, want failure", result.Status())
	}
}

func TestPanicIsCapturedAsFailure(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))
	if err := q.SpawnWorkers(1); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()

	result := q.Enqueue(func() (any, error) { panic("kaboom") })
	if err := result.Wait(testCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !result.Failed() {
		t.Fatal("panicking task did not record failure")
	}

	// The worker survived the panic and still serves tasks.
	follow := q.Enqueue(func() (any, error) { return "alive", nil })
	if value, err := follow.Get(testCtx(t)); err != nil || value != "alive" {
		t.Fatalf("follow-up task = (%v, %v), want (alive, nil)", value, err)
	}
}

func TestTaskFailureDoesNotAffectSiblings(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))
	if err := q.SpawnWorkers(3); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()

	var results []*taskqueue.TaskResult
	for i := 0; i < 10; i++ {
		i := i
		results = append(results, q.Enqueue(func() (any, error) {
			if i%3 == 0 {
				return nil, errors.New("induced")
			}
			return i, nil
		}))
	}
	for i, result := range results {
		if err := result.Wait(testCtx(t)); err != nil {
			t.Fatalf("task %d never finished: %v", i, err)
		}
		if i%3 == 0 && !result.Failed() {
			t.Fatalf("task %d should have failed", i)
		}
		if i%3 != 0 && !result.Successful() {
			t.Fatalf("task %d should have succeeded: %v", i, result.Err())
		}
	}
}

func TestFIFOOrderOnSingleWorker(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))

	var mu sync.Mutex
	var order []int
	var results []*taskqueue.TaskResult
	for i := 0; i < 8; i++ {
		i := i
		results = append(results, q.Enqueue(func() (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}))
	}

	if err := q.SpawnWorkers(1); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()

	for _, result := range results {
		if err := result.Wait(testCtx(t)); err != nil {
			t.Fatalf("task did not finish: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order %v is not FIFO", order)
		}
	}
}

func TestSpawnTwiceFails(t *testing.T) {
	q := taskqueue.New()
	if err := q.SpawnWorkers(1); err != nil {
		t.Fatalf("first SpawnWorkers failed: %v", err)
	}
	defer q.HaltWorkers()
	if err := q.SpawnWorkers(1); err == nil {
		t.Fatal("second SpawnWorkers should fail while workers are running")
	}
}

func TestHaltIsIdempotentAndRestartable(t *testing.T) {
	q := taskqueue.New(taskqueue.WithWorkerWait(5 * time.Millisecond))
	if err := q.SpawnWorkers(2); err != nil {
		t.Fatalf("SpawnWorkers failed: %v", err)
	}
	q.HaltWorkers()
	q.HaltWorkers()
	if q.Running() {
		t.Fatal("queue still running after halt")
	}

	// A halted queue can spawn a fresh pool and drain what is left.
	result := q.Enqueue(func() (any, error) { return "later", nil })
	if err := q.SpawnWorkers(1); err != nil {
		t.Fatalf("respawn failed: %v", err)
	}
	defer q.HaltWorkers()
	if value, err := result.Get(testCtx(t)); err != nil || value != "later" {
		t.Fatalf("post-restart task = (%v, %v)", value, err)
	}
}

func TestSpawnRejectsNonPositiveCount(t *testing.T) {
	q := taskqueue.New()
	if err := q.SpawnWorkers(0); !errors.Is(err, errkind.ErrConfiguration) {
		t.Fatalf("SpawnWorkers(0) = %v, want configuration error", err)
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
