// Package filesystem creates the media files that attachments refer to.
// Only the path of a file ever reaches the database.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldnotes-md/fieldnotes/internal/model"
)

const stampLayout = "20060102_150405"

// MediaStore hands out new, empty media files under one directory.
type MediaStore struct {
	dir   string
	clock model.Clock

	ensureOnce sync.Once
	ensureErr  error
}

// NewMediaStore returns a store rooted at dir. A nil clock uses the system clock.
func NewMediaStore(dir string, clock model.Clock) *MediaStore {
	if clock == nil {
		clock = model.SystemClock
	}
	return &MediaStore{dir: dir, clock: clock}
}

func (s *MediaStore) Dir() string {
	return s.dir
}

// ensureDir creates the media directory the first time it is needed.
func (s *MediaStore) ensureDir() error {
	s.ensureOnce.Do(func() {
		s.ensureErr = os.MkdirAll(s.dir, 0o750)
	})
	return s.ensureErr
}

// NewMediaFile creates an empty file named after the capture time, for
// example IMG_20240511_063000_123456.jpg, and returns its absolute path.
func (s *MediaStore) NewMediaFile(ctx context.Context, typ model.AttachmentType) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prefix, ext, err := naming(typ)
	if err != nil {
		return "", err
	}
	if err := s.ensureDir(); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	pattern := prefix + "_" + s.clock.Now().Format(stampLayout) + "_*" + ext
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close media file: %w", err)
	}

	path, err := filepath.Abs(f.Name())
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path: %w", err)
	}
	return path, nil
}

func naming(typ model.AttachmentType) (prefix, ext string, err error) {
	switch typ {
	case model.Image:
		return "IMG", ".jpg", nil
	case model.Audio:
		return "AUD", ".m4a", nil
	default:
		return "", "", fmt.Errorf("no media naming for attachment type %v", typ)
	}
}

// DeleteFile removes a file if it exists.
func DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// FileExists reports whether the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
