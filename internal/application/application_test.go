package application

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
	"github.com/fieldnotes-md/fieldnotes/internal/usecase"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	conf := config.Default()
	conf.DataDir = dir
	conf.Database = filepath.Join(dir, "fieldnotes.db")
	conf.MediaDir = filepath.Join(dir, "media")
	conf.Queue.Capacity = 16
	return conf
}

type here struct{}

func (here) CurrentLocation(context.Context) (*model.Location, error) {
	return model.NewLocation(48.1, 11.5)
}

func TestOpenSubmitClose(t *testing.T) {
	var logs bytes.Buffer
	app, err := Open(testConfig(t), WithLocationProvider(here{}), WithLogOutput(&logs))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := app.Recorder.Submit(ctx, usecase.Submission{
		Suspicion: "Erithacus rubecula",
		Tags:      []string{"bird/songbird"},
	})
	require.NoError(t, err)
	require.NoError(t, receipt.Write.Wait(ctx))

	detailed, err := app.Observations.Detail(ctx, receipt.Key)
	require.NoError(t, err)
	require.NotNil(t, detailed.Location())
	assert.Equal(t, 48.1, detailed.Location().Latitude)
	assert.True(t, detailed.HasTag("songbird"))

	attachment, future, err := app.Recorder.Capture(ctx, receipt.Key, model.Audio)
	require.NoError(t, err)
	require.NoError(t, future.Wait(ctx))
	assert.Equal(t, app.Media.Dir(), filepath.Dir(attachment.Path()))

	found, err := app.Observations.Find(ctx, receipt.Key)
	require.NoError(t, err)
	assert.True(t, found.RecordingsAttached())

	require.NoError(t, app.Close())
}

func TestCloseFinishesQueuedWrites(t *testing.T) {
	conf := testConfig(t)
	app, err := Open(conf, WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	start := time.Date(2024, 5, 11, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		at := start.Add(time.Duration(i) * time.Second)
		d, err := model.NoticeNew(model.ClockFunc(func() time.Time { return at }), "Turdus merula", "")
		require.NoError(t, err)
		_, err = app.Observations.WriteDown(d)
		require.NoError(t, err)
	}
	require.NoError(t, app.Close())

	reopened, err := Open(conf, WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Observations.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
}

func TestExportImportBetweenApps(t *testing.T) {
	ctx := context.Background()
	src, err := Open(testConfig(t), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer src.Close()

	receipt, err := src.Recorder.Submit(ctx, usecase.Submission{Suspicion: "Sitta europaea", Tags: []string{"bird"}})
	require.NoError(t, err)
	require.NoError(t, receipt.Write.Wait(ctx))

	var snapshot bytes.Buffer
	_, err = src.Export(ctx, &snapshot)
	require.NoError(t, err)

	dst, err := Open(testConfig(t), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer dst.Close()

	stats, err := dst.Import(ctx, &snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Observations)

	detailed, err := dst.Observations.Detail(ctx, receipt.Key)
	require.NoError(t, err)
	assert.True(t, detailed.HasTag("bird"))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	conf := testConfig(t)
	conf.PageSize = 0
	_, err := Open(conf)
	assert.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	conf := testConfig(t)
	conf.Database = config.MemoryDatabase
	app, err := Open(conf, WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer app.Close()

	n, err := app.Observations.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
