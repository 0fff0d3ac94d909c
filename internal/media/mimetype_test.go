package media

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDetectMimetypePNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.png")
	writeTestImage(t, src, 4, 4)

	mime, err := DetectMimetype(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("expected image/png, got %q", mime)
	}
}

func TestDetectMimetypeMissingFile(t *testing.T) {
	_, err := DetectMimetype(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, ErrMimetype) {
		t.Errorf("expected ErrMimetype, got %v", err)
	}
}
