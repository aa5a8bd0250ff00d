package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes-md/fieldnotes/internal/database"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/workqueue"
)

var t0 = time.Date(2024, 5, 11, 6, 30, 0, 0, time.UTC)

type fixture struct {
	gateway      *database.Gateway
	observations *ObservationRepository
	tags         *TagRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbCtx, err := database.CreateDatabase(filepath.Join(t.TempDir(), "fieldnotes.db"))
	require.NoError(t, err)

	queue := workqueue.New(32)
	t.Cleanup(func() {
		queue.Close()
		_ = database.CloseDatabase(dbCtx)
	})

	gateway := database.NewGateway(dbCtx)
	return &fixture{
		gateway:      gateway,
		observations: NewObservationRepository(gateway, queue, WithPageSize(2)),
		tags:         NewTagRepository(gateway, queue),
	}
}

// waiter blocks on writes submitted through the repositories. It takes the
// (future, error) pair straight from a write method.
type waiter struct{ t *testing.T }

func await(t *testing.T) waiter { return waiter{t: t} }

func (w waiter) result(f *workqueue.Future, err error) error {
	w.t.Helper()
	require.NoError(w.t, err, "submission must be accepted")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func (w waiter) ok(f *workqueue.Future, err error) {
	w.t.Helper()
	require.NoError(w.t, w.result(f, err))
}

func clockAt(at time.Time) model.Clock {
	return model.ClockFunc(func() time.Time { return at })
}

func notice(t *testing.T, at time.Time, suspicion string) *model.Detailed {
	t.Helper()
	d, err := model.NoticeNew(clockAt(at), suspicion, "")
	require.NoError(t, err)
	return d
}

func mustTag(t *testing.T, content string) model.Tag {
	t.Helper()
	tag, err := model.NewTag(content)
	require.NoError(t, err)
	return tag
}

func mustAttachment(t *testing.T, path string, typ model.AttachmentType, owner model.Key) model.Attachment {
	t.Helper()
	a, err := model.NewAttachment(path, typ, owner)
	require.NoError(t, err)
	return a
}
