package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	ErrClosed = eris.New("tasks: queue closed")
	ErrFull   = eris.New("tasks: queue full")
)

// Task is a unit of background work. Run must be idempotent: it is retried
// until it succeeds or the attempts run out.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	// OnFailure is called once per task that exhausted its attempts.
	OnFailure func(name string, err error)
}

// Queue is a bounded worker pool with at-least-once delivery.
type Queue struct {
	opts   Options
	tasks  chan Task
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(opts Options, logger *zap.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		opts:   opts,
		tasks:  make(chan Task, opts.QueueSize),
		logger: logger,
	}
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a task, blocking while the queue is full.
func (q *Queue) Submit(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "tasks: submit %s", task.Name)
	}
}

// TrySubmit enqueues a task only if there is room right now.
func (q *Queue) TrySubmit(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return eris.Wrapf(ErrFull, "tasks: submit %s", task.Name)
	}
}

// Close stops intake and waits for queued tasks to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.execute(task)
	}
}

func (q *Queue) execute(task Task) {
	var err error
	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		err = q.runOnce(task)
		if err == nil {
			return
		}
		q.logger.Warn("background task attempt failed",
			zap.String("task", task.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < q.opts.MaxAttempts {
			time.Sleep(time.Duration(attempt) * q.opts.Backoff)
		}
	}

	q.logger.Error("background task gave up",
		zap.String("task", task.Name),
		zap.String("reason", "attempts_exhausted"),
		zap.Error(err),
	)
	if q.opts.OnFailure != nil {
		q.opts.OnFailure(task.Name, err)
	}
}

func (q *Queue) runOnce(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("tasks: panic in %s: %v", task.Name, r)
		}
	}()
	return task.Run(context.Background())
}
