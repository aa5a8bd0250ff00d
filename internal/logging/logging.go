// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
)

// New returns a logger writing to w (stderr when nil) at conf.Level.
func New(conf config.Log, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if conf.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// JobLogger reports finished write jobs. It satisfies workqueue.Observer.
type JobLogger struct {
	logger zerolog.Logger
}

func NewJobLogger(logger zerolog.Logger) *JobLogger {
	return &JobLogger{logger: logger.With().Str("component", "workqueue").Logger()}
}

func (j *JobLogger) Enqueued(name string, depth int) {
	j.logger.Trace().Str("job", name).Int("depth", depth).Msg("job enqueued")
}

func (j *JobLogger) Finished(name, id string, waited, ran time.Duration, err error) {
	if err != nil {
		j.logger.Warn().Err(err).Str("job", name).Str("id", id).Dur("ran", ran).Msg("background write failed")
		return
	}
	j.logger.Debug().Str("job", name).Str("id", id).Dur("waited", waited).Dur("ran", ran).Msg("background write done")
}
