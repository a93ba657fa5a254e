package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8}, 0o644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(path) {
		t.Errorf("expected %s to exist", path)
	}
	if FileExists(filepath.Join(dir, "missing.jpg")) {
		t.Error("a missing file must not report as existing")
	}
	if FileExists(dir) {
		t.Error("a directory must not report as an existing file")
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp"} {
		if !IsImageFile(name) {
			t.Errorf("expected %s to be an image file", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.json"} {
		if IsImageFile(name) {
			t.Errorf("expected %s to not be an image file", name)
		}
	}
}

func TestOverlayFilename(t *testing.T) {
	got := OverlayFilename("shots/photo.jpg", "out", "png")
	want := filepath.Join("out", "photo_detections.png")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
