package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

func fixedClock() model.Clock {
	return model.ClockFunc(func() time.Time {
		return time.Date(2024, 5, 11, 6, 30, 0, 0, time.UTC)
	})
}

func TestNewMediaFileNaming(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	store := NewMediaStore(dir, fixedClock())

	tests := []struct {
		typ  model.AttachmentType
		want *regexp.Regexp
	}{
		{typ: model.Image, want: regexp.MustCompile(`^IMG_20240511_063000_\d+\.jpg$`)},
		{typ: model.Audio, want: regexp.MustCompile(`^AUD_20240511_063000_\d+\.m4a$`)},
	}

	for _, tt := range tests {
		path, err := store.NewMediaFile(context.Background(), tt.typ)
		if err != nil {
			t.Fatalf("NewMediaFile(%v) returned error: %v", tt.typ, err)
		}
		if !filepath.IsAbs(path) {
			t.Fatalf("expected absolute path, got %q", path)
		}
		if filepath.Dir(path) != dir {
			t.Fatalf("expected file in %q, got %q", dir, path)
		}
		if !tt.want.MatchString(filepath.Base(path)) {
			t.Fatalf("unexpected file name %q", filepath.Base(path))
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected file to exist at %s: %v", path, err)
		}
		if info.Size() != 0 {
			t.Fatalf("expected empty file, got %d bytes", info.Size())
		}
	}
}

func TestNewMediaFileNamesAreUnique(t *testing.T) {
	store := NewMediaStore(t.TempDir(), fixedClock())

	first, err := store.NewMediaFile(context.Background(), model.Image)
	if err != nil {
		t.Fatalf("first NewMediaFile: %v", err)
	}
	second, err := store.NewMediaFile(context.Background(), model.Image)
	if err != nil {
		t.Fatalf("second NewMediaFile: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths within the same second, got %q twice", first)
	}
}

func TestNewMediaFileRejectsUnknownType(t *testing.T) {
	store := NewMediaStore(t.TempDir(), fixedClock())
	if _, err := store.NewMediaFile(context.Background(), model.AttachmentType(99)); err == nil {
		t.Fatal("expected error for unknown attachment type")
	}
}

func TestNewMediaFileHonoursCancelledContext(t *testing.T) {
	store := NewMediaStore(t.TempDir(), fixedClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.NewMediaFile(ctx, model.Image); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDeleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_x.jpg")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if !FileExists(path) {
		t.Fatal("expected file to exist")
	}
	if err := DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if FileExists(path) {
		t.Fatal("expected file to be removed")
	}
	if err := DeleteFile(path); err != nil {
		t.Fatalf("DeleteFile on missing file should be a no-op, got %v", err)
	}
}
