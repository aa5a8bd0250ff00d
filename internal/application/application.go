// Package application wires storage, the write queue, the repositories and
// the recorder into one explicitly owned handle.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/export"
	"github.com/fieldnotes-md/fieldnotes/internal/filesystem"
	"github.com/fieldnotes-md/fieldnotes/internal/logging"
	"github.com/fieldnotes-md/fieldnotes/internal/metrics"
	"github.com/fieldnotes-md/fieldnotes/internal/repository"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

// App holds everything a front end needs. Close must be called once.
type App struct {
	Config       config.Config
	Logger       zerolog.Logger
	Metrics      metrics.ProviderInterface
	Gateway      *database.Gateway
	Observations *repository.ObservationRepository
	Tags         *repository.TagRepository
	Recorder     *usecase.Recorder
	Media        *filesystem.MediaStore

	db    *database.Context
	queue *workqueue.Queue
}

type Option func(*openOptions)

type openOptions struct {
	location usecase.LocationProvider
	logOut   io.Writer
}

// WithLocationProvider sets where new observations get their position from.
func WithLocationProvider(p usecase.LocationProvider) Option {
	return func(o *openOptions) { o.location = p }
}

// WithLogOutput redirects logs, stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(o *openOptions) { o.logOut = w }
}

// Open opens the database described by conf and starts the write queue.
func Open(conf config.Config, opts ...Option) (*App, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(conf.Log, o.logOut)

	dbCtx, err := database.CreateDatabase(conf.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	provider := metrics.NewProvider(conf.Metrics)
	queue := workqueue.New(conf.Queue.Capacity,
		workqueue.WithObserver(logging.NewJobLogger(logger)),
		workqueue.WithObserver(provider),
	)

	gateway := database.NewGateway(dbCtx)
	repoOpts := []repository.Option{
		repository.WithPageSize(conf.PageSize),
		repository.WithLogger(logger),
	}
	observations := repository.NewObservationRepository(gateway, queue, repoOpts...)
	tags := repository.NewTagRepository(gateway, queue, repoOpts...)

	media := filesystem.NewMediaStore(conf.MediaDir, nil)
	recorderOpts := []usecase.RecorderOption{
		usecase.WithMediaProvider(media),
		usecase.WithLogger(logger),
	}
	if o.location != nil {
		recorderOpts = append(recorderOpts, usecase.WithLocationProvider(o.location))
	}

	logger.Debug().Str("database", dbCtx.Path).Int("queue", conf.Queue.Capacity).Msg("field notes opened")

	return &App{
		Config:       conf,
		Logger:       logger,
		Metrics:      provider,
		Gateway:      gateway,
		Observations: observations,
		Tags:         tags,
		Recorder:     usecase.NewRecorder(observations, tags, recorderOpts...),
		Media:        media,
		db:           dbCtx,
		queue:        queue,
	}, nil
}

// Close waits for queued writes to finish, then closes the database.
func (a *App) Close() error {
	a.queue.Close()
	if err := database.CloseDatabase(a.db); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Export writes a snapshot of everything stored to w.
func (a *App) Export(ctx context.Context, w io.Writer) (export.Stats, error) {
	return export.Export(ctx, w, a.Gateway)
}

// Import replays a snapshot written by Export.
func (a *App) Import(ctx context.Context, r io.Reader) (export.Stats, error) {
	stats, err := export.Import(ctx, r, export.SinkFuncs{
		Tags:         a.Tags.Insert,
		Observations: a.Observations.WriteDown,
	})
	if err != nil && !errors.Is(err, workqueue.ErrClosed) {
		a.Logger.Warn().Err(err).Int("failed", stats.Failed).Msg("import finished with errors")
	}
	return stats, err
}
