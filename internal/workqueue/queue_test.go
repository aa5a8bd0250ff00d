package workqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	q := New(16)
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	var last *Future
	for i := range 10 {
		f, err := q.Submit("append", func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
		last = f
	}

	require.NoError(t, last.Wait(waitCtx(t)))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestJobsNeverOverlap(t *testing.T) {
	q := New(64)
	defer q.Close()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
	)
	futures := make([]*Future, 0, 20)
	for range 20 {
		f, err := q.Submit("overlap", func(context.Context) error {
			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for _, f := range futures {
		require.NoError(t, f.Wait(waitCtx(t)))
	}
	assert.Equal(t, 1, maxSeen)
}

func TestFutureCarriesJobError(t *testing.T) {
	q := New(4)
	defer q.Close()

	boom := errors.New("boom")
	f, err := q.Submit("fail", func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, f.Wait(waitCtx(t)), boom)
	<-f.Done()
	assert.ErrorIs(t, f.Err(), boom)
	assert.Equal(t, "fail", f.Name())
	assert.NotEmpty(t, f.ID())
}

func TestPanickingJobBecomesError(t *testing.T) {
	q := New(4)
	defer q.Close()

	f, err := q.Submit("panic", func(context.Context) error { panic("kaput") })
	require.NoError(t, err)
	err = f.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")

	// The worker survives.
	f, err = q.Submit("after", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, f.Wait(waitCtx(t)))
}

func TestSubmitFailsWhenFull(t *testing.T) {
	q := New(1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	blocker, err := q.Submit("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	_, err = q.Submit("queued", func(context.Context) error { return nil })
	require.NoError(t, err)

	_, err = q.Submit("overflow", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	assert.NoError(t, blocker.Wait(waitCtx(t)))
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	q := New(8)

	release := make(chan struct{})
	var ran []string
	var mu sync.Mutex
	record := func(name string) Job {
		return func(context.Context) error {
			if name == "first" {
				<-release
			}
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}
	}
	first, err := q.Submit("first", record("first"))
	require.NoError(t, err)
	second, err := q.Submit("second", record("second"))
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	require.Eventually(t, func() bool {
		q.mu.RLock()
		defer q.mu.RUnlock()
		return q.closed
	}, 2*time.Second, time.Millisecond)
	_, err = q.Submit("late", record("late"))
	assert.ErrorIs(t, err, ErrClosed)

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after draining")
	}

	assert.NoError(t, first.Err())
	assert.NoError(t, second.Err())
	assert.Equal(t, []string{"first", "second"}, ran)

	q.Close()
}

func TestWaitGivesUpWithoutCancellingJob(t *testing.T) {
	q := New(4)
	defer q.Close()

	release := make(chan struct{})
	f, err := q.Submit("slow", func(ctx context.Context) error {
		<-release
		return ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.Canceled)
	assert.NoError(t, f.Err())

	close(release)
	assert.NoError(t, f.Wait(waitCtx(t)))
}

type recordingObserver struct {
	mu       sync.Mutex
	enqueued []string
	finished []error
}

func (o *recordingObserver) Enqueued(name string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enqueued = append(o.enqueued, name)
}

func (o *recordingObserver) Finished(_, _ string, _, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}

func TestObserverSeesEveryJob(t *testing.T) {
	obs := &recordingObserver{}
	q := New(4, WithObserver(obs))

	boom := errors.New("boom")
	_, err := q.Submit("ok", func(context.Context) error { return nil })
	require.NoError(t, err)
	_, err = q.Submit("bad", func(context.Context) error { return boom })
	require.NoError(t, err)
	q.Close()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"ok", "bad"}, obs.enqueued)
	require.Len(t, obs.finished, 2)
	assert.NoError(t, obs.finished[0])
	assert.ErrorIs(t, obs.finished[1], boom)
}

func TestCompletedFuture(t *testing.T) {
	f := Completed("noop", nil)
	select {
	case <-f.Done():
	default:
		t.Fatal("completed future must be done")
	}
	assert.NoError(t, f.Wait(context.Background()))
	assert.Empty(t, f.ID())
}
