// Package media implements the derivation pipelines for images and videos:
// thumbnails, animated GIF previews and HLS renditions, plus the geometry
// resolution and filter-chain building they share.
package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// ImageConverter derives thumbnails from still images through the image
// codec. It is stateless; the zero value is ready to use.
type ImageConverter struct{}

// NewImageConverter creates a new ImageConverter.
func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

// ImageThumbnailOptions configures still-image thumbnail creation.
type ImageThumbnailOptions struct {
	// Size is the target thumbnail size.
	Size Size
	// CropToFit scales the image to cover Size and center-crops the
	// overflow, producing exactly Size. When false the image is scaled
	// to fit within Size instead.
	CropToFit bool
}

// CreateThumbnail creates a thumbnail for a still image. With CropToFit
// the output is exactly opts.Size, centered and cropped, resized with
// Lanczos resampling. Orientation metadata is not consulted; callers
// wanting upright thumbnails pre-rotate using ReadOrientation.
func (c *ImageConverter) CreateThumbnail(input, output string, opts ImageThumbnailOptions) error {
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrThumbnail, err)
	}

	img, err := imaging.Open(input)
	if err != nil {
		return fmt.Errorf("%w: open image %q: %w", ErrThumbnail, input, err)
	}

	if opts.CropToFit {
		img = imaging.Fill(img, opts.Size.Width, opts.Size.Height, imaging.Center, imaging.Lanczos)
	} else {
		img = imaging.Fit(img, opts.Size.Width, opts.Size.Height, imaging.Lanczos)
	}

	if err := imaging.Save(img, output); err != nil {
		return fmt.Errorf("%w: save thumbnail to %q: %w", ErrThumbnail, output, err)
	}
	return nil
}

// ReadOrientation reads the EXIF Orientation tag of an image file and
// returns the clockwise rotation needed to present it upright. An image
// without EXIF data or without an Orientation tag needs no rotation; an
// unreadable file or an out-of-range tag value fails with ErrOrientation.
func (c *ImageConverter) ReadOrientation(path string) (Angle, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted internal code
	if err != nil {
		return Angle0, fmt.Errorf("%w: open image %q: %w", ErrOrientation, path, err)
	}
	defer func() { _ = f.Close() }()

	meta, err := exif.Decode(f)
	if err != nil {
		// goexif reports a missing EXIF block as a decode error; treat
		// it the same as an image that simply carries no metadata.
		return Angle0, nil
	}

	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return Angle0, nil
	}
	raw, err := tag.Int(0)
	if err != nil {
		return Angle0, fmt.Errorf("%w: read orientation tag from %q: %w", ErrOrientation, path, err)
	}

	return AngleFromEXIF(raw)
}
