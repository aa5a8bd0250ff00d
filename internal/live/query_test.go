package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[int]chan struct{}{}}
}

func (s *fakeSource) Subscribe(tables ...string) (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *fakeSource) change() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// closeAll ends every subscription the way a closed Notifier does.
func (s *fakeSource) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *fakeSource) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func next[T any](t *testing.T, ch <-chan Update[T]) Update[T] {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update[T]{}
}

// waitFor reads updates until one satisfies match.
func waitFor[T any](t *testing.T, ch <-chan Update[T], match func(Update[T]) bool) Update[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			require.True(t, ok, "channel closed")
			if match(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching update")
		}
	}
}

func TestWatchDeliversInitialValueAndChanges(t *testing.T) {
	source := newFakeSource()
	var value atomic.Int64
	value.Store(1)
	q := New(source, func(context.Context) (int64, error) { return value.Load(), nil }, "observations")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := q.Watch(ctx)
	assert.Equal(t, int64(1), next(t, updates).Value)

	value.Store(2)
	source.change()
	u := waitFor(t, updates, func(u Update[int64]) bool { return u.Value == 2 })
	assert.NoError(t, u.Err)
}

func TestWatchersShareLoaderAndLateWatcherGetsLatest(t *testing.T) {
	source := newFakeSource()
	var loads atomic.Int32
	q := New(source, func(context.Context) (string, error) {
		loads.Add(1)
		return "bird", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := q.Watch(ctx)
	assert.Equal(t, "bird", next(t, first).Value)

	second := q.Watch(ctx)
	assert.Equal(t, "bird", next(t, second).Value)

	assert.Equal(t, 1, source.subscribers())
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 2, q.Watchers())
}

func TestLoaderStopsWhenLastWatcherLeaves(t *testing.T) {
	source := newFakeSource()
	q := New(source, func(context.Context) (int, error) { return 7, nil })

	ctx, cancel := context.WithCancel(context.Background())
	updates := q.Watch(ctx)
	next(t, updates)

	cancel()
	require.Eventually(t, func() bool { return source.subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)

	_, ok := <-updates
	assert.False(t, ok, "channel must be closed after ctx is done")
	assert.Equal(t, 0, q.Watchers())

	// Watching again restarts the loader.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	again := q.Watch(ctx2)
	assert.Equal(t, 7, next(t, again).Value)
}

func TestLoaderErrorsAreDelivered(t *testing.T) {
	source := newFakeSource()
	boom := errors.New("boom")
	q := New(source, func(context.Context) (int, error) { return 0, boom })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := next(t, q.Watch(ctx))
	assert.ErrorIs(t, u.Err, boom)
}

func TestRefreshReevaluates(t *testing.T) {
	source := newFakeSource()
	var value atomic.Int64
	q := New(source, func(context.Context) (int64, error) { return value.Load(), nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := q.Watch(ctx)
	next(t, updates)

	value.Store(5)
	q.Refresh()
	waitFor(t, updates, func(u Update[int64]) bool { return u.Value == 5 })
}

func TestPagedGrowsWindow(t *testing.T) {
	source := newFakeSource()
	items := []int{1, 2, 3, 4, 5}
	var mu sync.Mutex
	p := NewPaged(source, 2, func(_ context.Context, limit, offset int) ([]int, error) {
		mu.Lock()
		defer mu.Unlock()
		end := offset + limit
		if end > len(items) {
			end = len(items)
		}
		return append([]int(nil), items[offset:end]...), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := p.Watch(ctx)
	page := next(t, updates).Value
	assert.Equal(t, []int{1, 2}, page.Items)
	assert.True(t, page.HasMore)

	p.LoadMore()
	page = waitFor(t, updates, func(u Update[Page[int]]) bool { return len(u.Value.Items) == 4 }).Value
	assert.Equal(t, []int{1, 2, 3, 4}, page.Items)
	assert.True(t, page.HasMore)

	p.LoadMore()
	page = waitFor(t, updates, func(u Update[Page[int]]) bool { return len(u.Value.Items) == 5 }).Value
	assert.False(t, page.HasMore)
	assert.Equal(t, 6, p.Window())

	mu.Lock()
	items = append([]int{0}, items...)
	mu.Unlock()
	source.change()
	page = waitFor(t, updates, func(u Update[Page[int]]) bool { return len(u.Value.Items) == 6 }).Value
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, page.Items)
	assert.False(t, page.HasMore)
}

func TestWatchersCloseWhenSourceCloses(t *testing.T) {
	source := newFakeSource()
	var value atomic.Int64
	q := New(source, func(context.Context) (int64, error) { return value.Load(), nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := q.Watch(ctx)
	assert.Equal(t, int64(0), next(t, updates).Value)

	source.closeAll()
	select {
	case _, ok := <-updates:
		assert.False(t, ok, "watcher must be closed once the source is gone")
	case <-time.After(2 * time.Second):
		t.Fatal("watcher still open after the source closed")
	}
	assert.Equal(t, 0, q.Watchers())

	// A later watcher starts a fresh loop instead of reading a stale value.
	value.Store(9)
	again := q.Watch(ctx)
	assert.Equal(t, int64(9), next(t, again).Value)
}
