package runbeam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSubmitTimeout bounds how long a single background announcement
// may spend in the transport before it is abandoned.
const DefaultSubmitTimeout = 30 * time.Second

// Submission is the handle returned by Post and Patch. It resolves once
// the background worker has attempted delivery. Holding or dropping the
// handle has no effect on delivery.
type Submission struct {
	done chan struct{}
	err  error
}

// Wait blocks until the announcement has been attempted or the context
// is cancelled. It returns the transport error of the attempt, if any.
func (s *Submission) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed once the announcement has been attempted.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Err returns the transport error of the attempt. It is only meaningful
// after Done is closed; before that it returns nil.
func (s *Submission) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Submission) resolve(err error) {
	s.err = err
	close(s.done)
}

// submissionJob is one queued announcement.
type submissionJob struct {
	fn     func(ctx context.Context) error
	sub    *Submission
	logger StructuredLogger
	op     string
	runID  uuid.UUID
}

// submissionWorker is a single-goroutine FIFO executor. Exactly one
// worker exists per process at a time; using one goroutine bounds
// outbound connections to the collector and keeps announcements
// enqueued by the same goroutine in dispatch order.
type submissionWorker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*submissionJob
	closed bool
	done   chan struct{}
}

func newSubmissionWorker() *submissionWorker {
	w := &submissionWorker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// enqueue appends a job. Returns false if the worker is already
// shutting down, in which case the caller must retry on a fresh worker.
func (w *submissionWorker) enqueue(j *submissionJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, j)
	w.cond.Signal()
	return true
}

func (w *submissionWorker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 && w.closed {
			w.mu.Unlock()
			return
		}
		j := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.dispatch(j)
	}
}

// dispatch performs one announcement. Transport failures never leave
// the worker: they are logged, recorded on the handle, and dropped.
func (w *submissionWorker) dispatch(j *submissionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSubmitTimeout)
	err := attempt(ctx, j.fn)
	cancel()

	if err != nil && j.logger != nil {
		j.logger.Error("failed to submit run",
			"op", j.op, "run_id", j.runID.String(), "error", err)
	}
	j.sub.resolve(err)
}

// attempt invokes the transport call, converting a panic into an error
// so a misbehaving Transport cannot take down the worker.
func attempt(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runbeam: panic during submission: %v", r)
		}
	}()
	return fn(ctx)
}

// shutdown closes the queue and blocks until every queued job has been
// attempted. Idempotent.
func (w *submissionWorker) shutdown() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}

// Process-wide worker state. The worker is created lazily on first
// Post/Patch and torn down by AwaitAll; initialization is guarded so
// concurrent first use creates exactly one worker.
var (
	workerMu     sync.Mutex
	globalWorker *submissionWorker
)

func ensureWorker() *submissionWorker {
	workerMu.Lock()
	defer workerMu.Unlock()
	if globalWorker == nil {
		globalWorker = newSubmissionWorker()
	}
	return globalWorker
}

// submit enqueues an announcement onto the shared worker and returns
// its handle immediately. If the worker races with an AwaitAll teardown
// the job lands on the replacement worker.
func submit(fn func(ctx context.Context) error, logger StructuredLogger, op string, runID uuid.UUID) *Submission {
	j := &submissionJob{
		fn:     fn,
		sub:    &Submission{done: make(chan struct{})},
		logger: logger,
		op:     op,
		runID:  runID,
	}
	for {
		if ensureWorker().enqueue(j) {
			return j.sub
		}
	}
}

// AwaitAll blocks until every pending announcement has been attempted,
// then resets the worker so a later Post or Patch transparently starts
// a fresh one. Safe to call from process-exit hooks, concurrently, and
// repeatedly; with nothing pending it returns immediately.
func AwaitAll() {
	workerMu.Lock()
	w := globalWorker
	globalWorker = nil
	workerMu.Unlock()
	if w != nil {
		w.shutdown()
	}
}
