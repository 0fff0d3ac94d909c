package media

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// ErrMimetype is returned when MIME type detection fails.
var ErrMimetype = errors.New("mimetype detection failed")

// DetectMimetype returns the MIME type (e.g. "image/png" or "video/mp4")
// of the file at path, detected from its content. It fails with ErrMimetype
// only when the file itself cannot be read; unrecognized content detects as
// "application/octet-stream".
func DetectMimetype(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMimetype, path, err)
	}
	return mtype.String(), nil
}
