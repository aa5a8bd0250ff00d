package mcp

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes-md/fieldnotes/internal/application"
	"github.com/fieldnotes-md/fieldnotes/internal/config"
	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	conf := config.Default()
	conf.DataDir = dir
	conf.Database = filepath.Join(dir, "fieldnotes.db")
	conf.MediaDir = filepath.Join(dir, "media")
	conf.PageSize = 2

	app, err := application.Open(conf, application.WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return NewServer(app, "test")
}

func ptr[T any](v T) *T { return &v }

func note(t *testing.T, s *Server, in NoteInput) string {
	t.Helper()
	_, out, err := s.handleNote(context.Background(), nil, in)
	require.NoError(t, err)
	return out.Key
}

func TestNoteAndShow(t *testing.T) {
	s := newTestServer(t)
	key := note(t, s, NoteInput{
		Suspicion:  "Lanius collurio",
		Comment:    ptr("on the hedge"),
		Determined: ptr(true),
		Tags:       []string{"bird/shrike"},
		Latitude:   ptr(47.0),
		Longitude:  ptr(8.0),
		Image:      ptr("/photos/shrike.jpg"),
	})

	_, out, err := s.handleShow(context.Background(), nil, KeyInput{Key: key})
	require.NoError(t, err)
	assert.Equal(t, "Lanius collurio", out.Observation.Suspicion)
	assert.Equal(t, "on the hedge", out.Observation.Comment)
	assert.True(t, out.Observation.Determined)
	assert.True(t, out.Observation.ImagesAttached)
	assert.False(t, out.Observation.RecordingsAttached)
	require.NotNil(t, out.Observation.Location)
	assert.Equal(t, 47.0, out.Observation.Location.Latitude)
	assert.Equal(t, []string{"bird/shrike"}, out.Tags)
	assert.Equal(t, []AttachmentInfo{{Path: "/photos/shrike.jpg", Type: "IMAGE"}}, out.Attachments)
}

func TestNoteRejectsHalfALocation(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleNote(context.Background(), nil, NoteInput{Suspicion: "Pica pica", Latitude: ptr(1.0)})
	assert.Error(t, err)
}

func TestNoteRejectsBlankSuspicion(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleNote(context.Background(), nil, NoteInput{Suspicion: " "})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListPagesAndFilters(t *testing.T) {
	s := newTestServer(t)
	note(t, s, NoteInput{Suspicion: "Parus major", Tags: []string{"bird/songbird"}})
	note(t, s, NoteInput{Suspicion: "Vulpes vulpes", Tags: []string{"mammal"}})
	note(t, s, NoteInput{Suspicion: "Cyanistes caeruleus", Tags: []string{"bird"}})

	_, first, err := s.handleList(context.Background(), nil, ListInput{})
	require.NoError(t, err)
	assert.Len(t, first.Observations, 2)
	assert.True(t, first.HasMore)

	_, all, err := s.handleList(context.Background(), nil, ListInput{Pages: ptr(2)})
	require.NoError(t, err)
	assert.Len(t, all.Observations, 3)
	assert.False(t, all.HasMore)

	_, birds, err := s.handleList(context.Background(), nil, ListInput{Tags: []string{"bird"}, Pages: ptr(5)})
	require.NoError(t, err)
	var names []string
	for _, o := range birds.Observations {
		names = append(names, o.Suspicion)
	}
	assert.ElementsMatch(t, []string{"Parus major", "Cyanistes caeruleus"}, names)

	_, _, err = s.handleList(context.Background(), nil, ListInput{Tags: []string{"reptile"}})
	assert.Error(t, err)
}

func TestRenameRetagAndTags(t *testing.T) {
	s := newTestServer(t)
	key := note(t, s, NoteInput{Suspicion: "Corvus corone", Tags: []string{"bird"}, Audio: ptr("/calls/crow.m4a")})

	_, renamed, err := s.handleRename(context.Background(), nil, RenameInput{Key: key, Suspicion: "Corvus frugilegus"})
	require.NoError(t, err)
	assert.NotEqual(t, key, renamed.Key)

	_, _, err = s.handleShow(context.Background(), nil, KeyInput{Key: key})
	assert.Error(t, err, "old key must be gone")

	_, _, err = s.handleRetag(context.Background(), nil, RetagInput{Key: renamed.Key, Tags: []string{"bird/corvid", "field"}})
	require.NoError(t, err)
	_, _, err = s.handleTag(context.Background(), nil, TagInput{Key: renamed.Key, Tag: "winter"})
	require.NoError(t, err)

	_, shown, err := s.handleShow(context.Background(), nil, KeyInput{Key: renamed.Key})
	require.NoError(t, err)
	assert.Equal(t, []string{"bird/corvid", "field", "winter"}, shown.Tags)
	assert.True(t, shown.Observation.RecordingsAttached, "attachments follow the rename")

	_, tags, err := s.handleTags(context.Background(), nil, TagsInput{})
	require.NoError(t, err)
	var paths []string
	for _, tag := range tags.Tags {
		paths = append(paths, tag.Path)
	}
	assert.Equal(t, []string{"bird", "bird/corvid", "field", "winter"}, paths)
}

func TestAttachAndDetach(t *testing.T) {
	s := newTestServer(t)
	key := note(t, s, NoteInput{Suspicion: "Rana temporaria"})

	_, _, err := s.handleAttach(context.Background(), nil, AttachInput{Key: key, Path: "/calls/frog1.m4a", Type: "audio"})
	require.NoError(t, err)
	_, _, err = s.handleAttach(context.Background(), nil, AttachInput{Key: key, Path: "/calls/frog2.m4a", Type: "AUDIO"})
	require.NoError(t, err)
	_, _, err = s.handleAttach(context.Background(), nil, AttachInput{Key: key, Path: "/x", Type: "VIDEO"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, _, err = s.handleDetach(context.Background(), nil, DetachInput{Paths: []string{"/calls/frog1.m4a"}})
	require.NoError(t, err)
	_, shown, err := s.handleShow(context.Background(), nil, KeyInput{Key: key})
	require.NoError(t, err)
	assert.True(t, shown.Observation.RecordingsAttached)

	_, _, err = s.handleDetach(context.Background(), nil, DetachInput{Paths: []string{"/calls/frog2.m4a"}})
	require.NoError(t, err)
	_, shown, err = s.handleShow(context.Background(), nil, KeyInput{Key: key})
	require.NoError(t, err)
	assert.False(t, shown.Observation.RecordingsAttached)
	assert.Empty(t, shown.Attachments)

	_, _, err = s.handleDetach(context.Background(), nil, DetachInput{})
	assert.Error(t, err)
}
