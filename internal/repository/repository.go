// Package repository orchestrates field-notes reads and writes on top of the
// storage gateway. Writes are validated synchronously, then run as one atomic
// unit each on the shared write queue; reads are live queries that follow
// committed changes.
package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// DefaultPageSize is the number of observations loaded per page.
const DefaultPageSize = 15

type Option func(*options)

type options struct {
	pageSize int
	logger   zerolog.Logger
}

func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{pageSize: DefaultPageSize, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// writer submits gateway units to the write queue.
type writer struct {
	gateway *database.Gateway
	queue   *workqueue.Queue
	logger  zerolog.Logger
}

func (w writer) submit(name string, fn func(context.Context, *database.Tx) error) (*workqueue.Future, error) {
	future, err := w.queue.Submit(name, func(ctx context.Context) error {
		return w.gateway.WithTx(ctx, fn)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue %s: %w", name, err)
	}
	w.logger.Debug().Str("job", name).Str("id", future.ID()).Msg("write queued")
	return future, nil
}

func requireKey(key model.Key) error {
	if key.IsZero() {
		return &model.ValidationError{Field: "key", Reason: "must not be empty"}
	}
	return nil
}

func requireTags(tags []model.Tag) error {
	for _, t := range tags {
		if t.IsZero() {
			return &model.ValidationError{Field: "tag", Reason: "must be built with NewTag"}
		}
	}
	return nil
}
