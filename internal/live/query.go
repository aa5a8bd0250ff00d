// Package live provides query results that re-evaluate themselves whenever
// the tables they read from change.
package live

import (
	"context"
	"sync"
)

// Source announces table changes. database.Notifier implements it.
type Source interface {
	Subscribe(tables ...string) (<-chan struct{}, func())
}

// Loader evaluates a query once.
type Loader[T any] func(ctx context.Context) (T, error)

// Update is one evaluation delivered to a watcher.
type Update[T any] struct {
	Value T
	Err   error
}

// Query is a change-notified query. All watchers share one loader goroutine,
// which runs only while at least one watcher is attached.
type Query[T any] struct {
	source  Source
	tables  []string
	load    Loader[T]
	refresh chan struct{}

	mu       sync.Mutex
	watchers map[int]chan Update[T]
	nextID   int
	latest   *Update[T]
	cancel   context.CancelFunc
	loopCtx  context.Context
}

// New builds a query that re-runs load after every change to tables. No
// tables means any change.
func New[T any](source Source, load Loader[T], tables ...string) *Query[T] {
	return &Query[T]{
		source:   source,
		tables:   tables,
		load:     load,
		refresh:  make(chan struct{}, 1),
		watchers: make(map[int]chan Update[T]),
	}
}

// Get evaluates the query once, without watching.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	return q.load(ctx)
}

// Watch delivers the current value and every re-evaluation until ctx is done,
// then closes the channel. A slow reader only ever sees the latest value.
func (q *Query[T]) Watch(ctx context.Context) <-chan Update[T] {
	ch := make(chan Update[T], 1)

	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.watchers[id] = ch
	if q.cancel == nil {
		q.start()
	} else if q.latest != nil {
		deliver(ch, *q.latest)
	}
	q.mu.Unlock()

	go func() {
		<-ctx.Done()
		q.unwatch(id)
	}()
	return ch
}

// Refresh forces a re-evaluation for the current watchers.
func (q *Query[T]) Refresh() {
	select {
	case q.refresh <- struct{}{}:
	default:
	}
}

// Watchers reports how many watchers are attached.
func (q *Query[T]) Watchers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.watchers)
}

func (q *Query[T]) unwatch(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.watchers[id]
	if !ok {
		return
	}
	delete(q.watchers, id)
	close(ch)
	if len(q.watchers) == 0 && q.cancel != nil {
		q.cancel()
		q.cancel = nil
		q.loopCtx = nil
		q.latest = nil
	}
}

// start must be called with q.mu held.
func (q *Query[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.loopCtx = ctx

	changes, unsubscribe := q.source.Subscribe(q.tables...)
	go q.run(ctx, changes, unsubscribe)
}

func (q *Query[T]) run(ctx context.Context, changes <-chan struct{}, unsubscribe func()) {
	defer unsubscribe()

	q.evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				q.shutdown(ctx)
				return
			}
			q.evaluate(ctx)
		case <-q.refresh:
			q.evaluate(ctx)
		}
	}
}

// shutdown closes every watcher of the loop started with ctx after its source
// went away. A later Watch starts over.
func (q *Query[T]) shutdown(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loopCtx != ctx {
		return
	}
	for id, ch := range q.watchers {
		delete(q.watchers, id)
		close(ch)
	}
	q.cancel()
	q.cancel = nil
	q.loopCtx = nil
	q.latest = nil
}

func (q *Query[T]) evaluate(ctx context.Context) {
	value, err := q.load(ctx)
	update := Update[T]{Value: value, Err: err}

	q.mu.Lock()
	defer q.mu.Unlock()
	// A stopped loop must not publish into a newer generation of watchers.
	if ctx.Err() != nil || q.loopCtx != ctx {
		return
	}
	q.latest = &update
	for _, ch := range q.watchers {
		deliver(ch, update)
	}
}

// deliver replaces any undelivered value in ch with u.
func deliver[T any](ch chan Update[T], u Update[T]) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
