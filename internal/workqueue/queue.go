// Package workqueue serializes background writes. Jobs run one at a time on a
// single worker in submission order, and every submission returns a Future
// that carries the job's outcome.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed    = errors.New("work queue is closed")
	ErrQueueFull = errors.New("work queue is full")
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// Job is one unit of background work. The context it receives is never
// cancelled: a job that was accepted always runs to completion.
type Job func(ctx context.Context) error

// Observer is told about every job the queue accepts and finishes.
type Observer interface {
	Enqueued(name string, depth int)
	Finished(name, id string, waited, ran time.Duration, err error)
}

type Option func(*Queue)

// WithObserver adds an observer. Observers run on the worker goroutine and
// must not block.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		if o != nil {
			q.observers = append(q.observers, o)
		}
	}
}

type task struct {
	future *Future
	run    Job
}

type Queue struct {
	mu        sync.RWMutex
	closed    bool
	jobs      chan *task
	done      chan struct{} // closed once the worker has drained the queue
	closeOnce sync.Once
	observers []Observer
}

// New starts a queue holding at most capacity pending jobs.
func New(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		jobs: make(chan *task, capacity),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.work()
	return q
}

// Submit enqueues fn under name. It never blocks: a full queue fails with
// ErrQueueFull and a closed one with ErrClosed.
func (q *Queue) Submit(name string, fn Job) (*Future, error) {
	if fn == nil {
		return nil, fmt.Errorf("job %q: nil function", name)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}
	f := &Future{
		id:        id.String(),
		name:      name,
		submitted: time.Now(),
		done:      make(chan struct{}),
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrClosed
	}
	select {
	case q.jobs <- &task{future: f, run: fn}:
	default:
		return nil, fmt.Errorf("%w: job %q", ErrQueueFull, name)
	}
	for _, o := range q.observers {
		o.Enqueued(name, len(q.jobs))
	}
	return f, nil
}

// Depth is the number of jobs waiting to run.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Close stops accepting jobs, waits for the queued ones to finish and
// returns. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	<-q.done
}

func (q *Queue) work() {
	defer close(q.done)
	for t := range q.jobs {
		started := time.Now()
		err := runJob(t.run)
		finished := time.Now()
		t.future.complete(err)
		for _, o := range q.observers {
			o.Finished(t.future.name, t.future.id, started.Sub(t.future.submitted), finished.Sub(started), err)
		}
	}
}

func runJob(fn Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(context.Background())
}
