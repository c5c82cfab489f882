package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

// Job is one enqueued task invocation.
type Job struct {
	ID         uuid.UUID
	Task       string
	Payload    []byte
	Attempt    int
	EnqueuedAt time.Time
}

// Result reports the outcome of a job after its last attempt.
type Result struct {
	JobID    uuid.UUID
	Task     string
	Attempts int
	Duration time.Duration
	Err      error
}

// QueueOption configures a LocalQueue.
type QueueOption func(*LocalQueue)

// WithWorkers sets the number of concurrent workers. Defaults to 1.
func WithWorkers(n int) QueueOption {
	return func(q *LocalQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBuffer sets how many jobs may wait for a worker. Defaults to 64.
func WithBuffer(n int) QueueOption {
	return func(q *LocalQueue) {
		if n >= 0 {
			q.buffer = n
		}
	}
}

// WithRetry sets the attempts per job and the delay between them.
func WithRetry(attempts int, delay time.Duration) QueueOption {
	return func(q *LocalQueue) {
		if attempts > 0 {
			q.attempts = attempts
		}
		q.retryDelay = delay
	}
}

// WithResultHandler receives every finished job.
func WithResultHandler(fn func(Result)) QueueOption {
	return func(q *LocalQueue) {
		q.onResult = fn
	}
}

// WithQueueLogger sets the queue logger.
func WithQueueLogger(l *logger.Logger) QueueOption {
	return func(q *LocalQueue) {
		q.log = l
	}
}

// LocalQueue is an in-process Registrar backed by a worker pool.
type LocalQueue struct {
	workers    int
	buffer     int
	attempts   int
	retryDelay time.Duration
	onResult   func(Result)
	log        *logger.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	jobs     chan Job
	cancelFn context.CancelFunc
	wg       sync.WaitGroup
	running  bool

	// sendMu is held for reading by every Enqueue in progress. stopping
	// closes first and turns new sends away; drain closes once no send
	// is in flight and tells idle workers to exit.
	sendMu   sync.RWMutex
	stopping chan struct{}
	drain    chan struct{}
	stopOnce sync.Once
}

var _ Registrar = (*LocalQueue)(nil)

// NewLocalQueue creates a stopped queue.
func NewLocalQueue(opts ...QueueOption) *LocalQueue {
	q := &LocalQueue{
		workers:  1,
		buffer:   64,
		attempts: 1,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = logger.WithComponent("taskqueue")
	}
	q.jobs = make(chan Job, q.buffer)
	q.stopping = make(chan struct{})
	q.drain = make(chan struct{})
	return q
}

// Register adds a handler. Names are unique.
func (q *LocalQueue) Register(name string, h Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.handlers[name]; exists {
		return errors.New(errors.ErrCodeRegistrationConflict, fmt.Sprintf("task %s is already registered", name))
	}
	q.handlers[name] = h
	q.log.Debug("task registered", logger.Fields(logger.FieldTaskID, name))
	return nil
}

// Tasks returns the registered task names.
func (q *LocalQueue) Tasks() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}
	return names
}

// Enqueue encodes payload as JSON and schedules the task. It blocks while
// the buffer is full, until ctx is done or the queue stops.
func (q *LocalQueue) Enqueue(ctx context.Context, task string, payload any) (uuid.UUID, error) {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	if q.isStopping() {
		return uuid.Nil, errStopped()
	}
	q.mu.RLock()
	_, known := q.handlers[task]
	q.mu.RUnlock()
	if !known {
		return uuid.Nil, errors.Validation(fmt.Sprintf("task %s is not registered", task))
	}

	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return uuid.Nil, errors.Validation(fmt.Sprintf("payload for %s: %v", task, err)).WithCause(err)
		}
	}

	job := Job{ID: uuid.New(), Task: task, Payload: raw, EnqueuedAt: time.Now()}
	select {
	case q.jobs <- job:
		return job.ID, nil
	case <-q.stopping:
		return uuid.Nil, errStopped()
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

func errStopped() error {
	return errors.New(errors.ErrCodeInvalidInput, "queue is stopped")
}

func (q *LocalQueue) isStopping() bool {
	select {
	case <-q.stopping:
		return true
	default:
		return false
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *LocalQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isStopping() {
		return errStopped()
	}
	if q.running {
		return nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	q.cancelFn = cancel
	q.running = true
	for range q.workers {
		q.wg.Add(1)
		go q.work(workCtx)
	}
	q.log.Info("task queue started", logger.Fields("workers", q.workers))
	return nil
}

// Stop turns new jobs away, lets the workers finish what was accepted and
// waits for them until ctx is done, then cancels whatever is still running.
// Enqueue calls blocked on a full buffer return an error.
func (q *LocalQueue) Stop(ctx context.Context) error {
	first := false
	q.stopOnce.Do(func() {
		first = true
		close(q.stopping)
	})
	if !first {
		return nil
	}

	// Wait for in-flight sends so that drain sees every accepted job.
	q.sendMu.Lock()
	close(q.drain)
	q.sendMu.Unlock()

	q.mu.Lock()
	running := q.running
	cancel := q.cancelFn
	q.mu.Unlock()

	if !running {
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		q.log.Info("task queue stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (q *LocalQueue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.run(ctx, job)
		case <-q.drain:
			for {
				select {
				case job := <-q.jobs:
					q.run(ctx, job)
				default:
					return
				}
			}
		}
	}
}

func (q *LocalQueue) run(ctx context.Context, job Job) {
	q.mu.RLock()
	h := q.handlers[job.Task]
	q.mu.RUnlock()

	start := time.Now()
	var err error
	for job.Attempt = 1; job.Attempt <= q.attempts; job.Attempt++ {
		if err = q.attempt(ctx, h, job); err == nil || ctx.Err() != nil {
			break
		}
		if job.Attempt < q.attempts {
			fields := logger.ErrorFields(job.Task, err)
			fields[logger.FieldTaskID] = job.ID.String()
			fields["attempt"] = job.Attempt
			q.log.Warn("task attempt failed", fields)
			select {
			case <-time.After(q.retryDelay):
			case <-ctx.Done():
			}
		}
	}
	attempts := min(job.Attempt, q.attempts)

	res := Result{JobID: job.ID, Task: job.Task, Attempts: attempts, Duration: time.Since(start), Err: err}
	fields := logger.Fields(
		logger.FieldTaskID, job.ID.String(),
		logger.FieldOperation, job.Task,
		"attempts", attempts,
		logger.FieldDuration, res.Duration.Milliseconds(),
	)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		q.log.Error("task failed", fields)
	} else {
		q.log.Debug("task done", fields)
	}
	if q.onResult != nil {
		q.onResult(res)
	}
}

// attempt runs h once, turning a panic into an error.
func (q *LocalQueue) attempt(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("task %s panicked: %w", job.Task, e)
				return
			}
			err = fmt.Errorf("task %s panicked: %v", job.Task, r)
		}
	}()
	return h(ctx, job.Payload)
}
