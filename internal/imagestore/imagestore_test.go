package imagestore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patrol/internal/imagestore"
	"patrol/internal/testsupport"
)

func TestDetectRecognizesFormats(t *testing.T) {
	format, mime, err := imagestore.Detect(testsupport.TinyPNG(t))
	if err != nil {
		t.Fatalf("Detect png failed: %v", err)
	}
	if format != "png" || mime != "image/png" {
		t.Fatalf("unexpected png detection: %q %q", format, mime)
	}

	format, mime, err = imagestore.Detect(testsupport.TinyJPEG(t))
	if err != nil {
		t.Fatalf("Detect jpeg failed: %v", err)
	}
	if format != "jpeg" || mime != "image/jpeg" {
		t.Fatalf("unexpected jpeg detection: %q %q", format, mime)
	}
}

func TestDetectRejectsGarbage(t *testing.T) {
	if _, _, err := imagestore.Detect([]byte("not an image")); !errors.Is(err, imagestore.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, _, err := imagestore.Detect(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestSaveUsesDatedLayout(t *testing.T) {
	root := t.TempDir()
	fixed := time.Date(2026, 3, 15, 9, 30, 45, 0, time.Local)
	store := imagestore.New(root).WithClock(func() time.Time { return fixed })

	path, err := store.Save(testsupport.TinyJPEG(t), 2, 7, "jpeg")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	want := filepath.Join(root, "2026-03-15", "task2", "station07_093045.jpg")
	if path != want {
		t.Fatalf("unexpected path: got %q want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
}

func TestSavePNGExtension(t *testing.T) {
	store := imagestore.New(t.TempDir())
	path, err := store.Save(testsupport.TinyPNG(t), 3, 12, "png")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Fatalf("expected .png extension, got %q", path)
	}
}
