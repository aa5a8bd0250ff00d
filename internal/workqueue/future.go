package workqueue

import (
	"context"
	"time"
)

// Future is the pending outcome of a submitted job.
type Future struct {
	id        string
	name      string
	submitted time.Time
	done      chan struct{}
	err       error
}

// Completed returns a future that is already done with err. It stands in for
// writes that need no background work.
func Completed(name string, err error) *Future {
	f := &Future{name: name, submitted: time.Now(), done: make(chan struct{})}
	f.complete(err)
	return f
}

// ID is a time-ordered identifier, empty for futures built by Completed.
func (f *Future) ID() string   { return f.id }
func (f *Future) Name() string { return f.name }

// Done is closed when the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the job's error once Done is closed, nil before.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is done. Giving up on the wait
// does not cancel the job.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}
