// Package imagestore validates submitted inspection images and writes them
// into a dated on-disk layout under the data directory.
package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"
)

// ErrUnsupportedFormat is returned for payloads that are not JPEG or PNG.
var ErrUnsupportedFormat = fmt.Errorf("imagestore: unsupported image format")

// Detect validates the payload as a decodable JPEG or PNG without decoding
// the full pixel data. It returns the format name and MIME type.
func Detect(data []byte) (format, mimeType string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("imagestore: empty image payload")
	}
	_, format, err = image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	switch format {
	case "jpeg":
		return format, "image/jpeg", nil
	case "png":
		return format, "image/png", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Store writes validated images beneath a root directory.
type Store struct {
	root string
	now  func() time.Time
}

// New creates a store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Save writes the image under <root>/<date>/task<N>/station<NN>_<HHMMSS>.<ext>
// and returns the absolute file path. The payload must already be
// validated by Detect.
func (s *Store) Save(data []byte, jobType, stationID int, format string) (string, error) {
	ext := "jpg"
	if format == "png" {
		ext = "png"
	}

	now := s.now()
	dir := filepath.Join(s.root, now.Format("2006-01-02"), fmt.Sprintf("task%d", jobType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("imagestore: create directory: %w", err)
	}

	name := fmt.Sprintf("station%02d_%s.%s", stationID, now.Format("150405"), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("imagestore: write image: %w", err)
	}
	return path, nil
}
