package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crowdstory/media-converter/internal/transcoder"
)

// Static errors for the video derivation pipelines. Each wraps the
// lower-level cause without losing it, so callers can match the pipeline
// kind with errors.Is and still reach the transcoder diagnostics with
// errors.As.
var (
	// ErrThumbnail is returned when thumbnail creation fails.
	ErrThumbnail = errors.New("thumbnail creation failed")
	// ErrGIFPreview is returned when GIF preview creation fails.
	ErrGIFPreview = errors.New("gif preview creation failed")
	// ErrStream is returned when HLS conversion fails.
	ErrStream = errors.New("hls conversion failed")
)

// Default parameters for video derivation.
const (
	// DefaultThumbnailTimestamp is the default frame capture offset in seconds.
	DefaultThumbnailTimestamp = 1.0
	// DefaultGIFFPS is the default GIF preview frame rate.
	DefaultGIFFPS = 10
	// DefaultSegmentSeconds is the default HLS segment duration.
	DefaultSegmentSeconds = 10
)

// VideoConverter derives artifacts from video sources through an injected
// transcoder. Each method is a synchronous, blocking pipeline owning its
// own intermediate artifacts; no state is shared between calls. Callers
// running conversions concurrently must use distinct output paths.
type VideoConverter struct {
	runner transcoder.Runner
	logger *slog.Logger
}

// NewVideoConverter creates a VideoConverter using the given runner.
// A nil logger falls back to slog.Default().
func NewVideoConverter(runner transcoder.Runner, logger *slog.Logger) *VideoConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoConverter{runner: runner, logger: logger}
}

// ThumbnailOptions configures single-frame extraction.
type ThumbnailOptions struct {
	// Timestamp is the capture offset in seconds from the start.
	Timestamp float64
	// Size is the optional target size; the frame is scaled to cover it
	// and center-cropped to fill it exactly.
	Size *Size
	// AutoRotate probes the source and applies the rotation its metadata
	// calls for.
	AutoRotate bool
}

// CreateThumbnail extracts a single frame at the configured timestamp and
// writes it as a JPEG still to output.
func (v *VideoConverter) CreateThumbnail(ctx context.Context, input, output string, opts ThumbnailOptions) error {
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrThumbnail, err)
	}

	angle := Angle0
	if opts.AutoRotate {
		var err error
		angle, err = v.probeRotation(ctx, input)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrThumbnail, err)
		}
	}
	chain := BuildChain(angle, opts.Size, true)

	args := []string{
		"-y", "-noautorotate",
		"-ss", formatSeconds(opts.Timestamp),
		"-i", input,
		"-map_metadata", "-1", "-map_metadata:s:v:0", "-1",
	}
	if !chain.Empty() {
		args = append(args, "-vf", chain.String())
	}
	args = append(args,
		"-frames:v", "1",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-an",
		output,
	)

	if err := v.runner.Run(ctx, args); err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}
	return nil
}

// GIFOptions configures animated preview creation.
type GIFOptions struct {
	// Start is the clip window offset in seconds.
	Start float64
	// Duration is the clip window length in seconds.
	Duration float64
	// FPS is the preview frame rate. Zero or negative uses DefaultGIFFPS.
	FPS int
	// Size is the optional target size (cover-scale then center-crop).
	Size *Size
	// AutoRotate probes the source and applies its rotation metadata.
	AutoRotate bool
}

// CreateGIFPreview creates an optimized GIF preview of a clip window using
// a two-pass palette workflow: pass one generates a color palette from the
// window, pass two encodes the frames against it. The intermediate palette
// file (the output path with a .png extension) is removed before returning
// whether or not the second pass succeeded; a failed removal is logged and
// never masks the pipeline error.
func (v *VideoConverter) CreateGIFPreview(ctx context.Context, input, output string, opts GIFOptions) error {
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrGIFPreview, err)
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultGIFFPS
	}

	angle := Angle0
	if opts.AutoRotate {
		var err error
		angle, err = v.probeRotation(ctx, input)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrGIFPreview, err)
		}
	}

	chain := Rotation(angle).WithFPS(opts.FPS)
	if opts.Size != nil {
		chain = chain.CropToFit(*opts.Size)
	}
	vf := chain.String()

	palette := strings.TrimSuffix(output, filepath.Ext(output)) + ".png"

	window := []string{
		"-y", "-noautorotate",
		"-ss", formatSeconds(opts.Start),
		"-t", formatSeconds(opts.Duration),
	}

	paletteArgs := append(append([]string{}, window...),
		"-i", input,
		"-map_metadata", "-1", "-map_metadata:s:v:0", "-1",
		"-vf", vf+",palettegen",
		palette,
	)
	if err := v.runner.Run(ctx, paletteArgs); err != nil {
		// The tool may have half-written the palette before failing.
		v.removePalette(palette)
		return fmt.Errorf("%w: palette generation: %w", ErrGIFPreview, err)
	}

	encodeArgs := append(append([]string{}, window...),
		"-i", input,
		"-i", palette,
		"-map_metadata", "-1", "-map_metadata:s:v:0", "-1",
		"-filter_complex", fmt.Sprintf("[0:v]%s[x];[x][1:v]paletteuse", vf),
		"-loop", "0",
		output,
	)
	encodeErr := v.runner.Run(ctx, encodeArgs)
	v.removePalette(palette)
	if encodeErr != nil {
		return fmt.Errorf("%w: encode: %w", ErrGIFPreview, encodeErr)
	}
	return nil
}

// removePalette deletes the intermediate palette artifact. Best effort: a
// removal failure must not override a real pipeline failure.
func (v *VideoConverter) removePalette(palette string) {
	if err := os.Remove(palette); err != nil && !os.IsNotExist(err) {
		v.logger.Warn("failed to remove palette file",
			slog.String("path", palette),
			slog.String("error", err.Error()),
		)
	}
}

// HLSOptions configures segmented streaming conversion.
type HLSOptions struct {
	// SegmentSeconds is the target segment duration. Zero or negative
	// uses DefaultSegmentSeconds. The last segment may be shorter.
	SegmentSeconds int
	// Resolution is an optional named tier ("480p", "1080p", ...). The
	// source is downscaled to fit the tier only when it exceeds it.
	Resolution string
	// AutoRotate probes the source and applies its rotation metadata.
	AutoRotate bool
}

// ConvertToHLS converts a video to a playlist ({baseName}.m3u8) plus
// sequential segment files ({baseName}0.ts, {baseName}1.ts, ...) in
// outputDir. When no filtering is needed the streams are copied without
// re-encoding. Artifacts written before a mid-conversion failure are not
// rolled back; callers must treat a failure as leaving the output
// directory in an undefined state.
func (v *VideoConverter) ConvertToHLS(ctx context.Context, input, outputDir, baseName string, opts HLSOptions) error {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrStream, err)
	}
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = DefaultSegmentSeconds
	}

	// Validate the tier name before touching the transcoder.
	var tier *Size
	if opts.Resolution != "" {
		size, err := LookupResolution(opts.Resolution)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStream, err)
		}
		tier = &size
	}

	angle := Angle0
	srcWidth, srcHeight := 0, 0
	if opts.AutoRotate || tier != nil {
		result, err := v.runner.Probe(ctx, input)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStream, err)
		}
		if vs, ok := result.VideoStream(); ok {
			srcWidth, srcHeight = vs.Width, vs.Height
			if opts.AutoRotate {
				angle = AngleFromRotationTag(vs.Rotation())
			}
		}
	}

	chain := Rotation(angle)
	if angle != Angle0 {
		// Rotated content presents with swapped axes.
		srcWidth, srcHeight = srcHeight, srcWidth
	}

	if tier != nil {
		target := *tier
		if srcHeight > srcWidth {
			target.Width, target.Height = target.Height, target.Width
		}
		if srcWidth > target.Width || srcHeight > target.Height {
			chain = chain.FitWithin(target)
		}
	}

	playlist := filepath.Join(outputDir, baseName+".m3u8")
	args := []string{
		"-y", "-noautorotate",
		"-i", input,
		"-map_metadata", "-1", "-map_metadata:s:v:0", "-1",
	}
	if !chain.Empty() {
		args = append(args,
			"-vf", chain.String(),
			"-metadata:s:v:0", "rotate=0",
			"-c:v", "libx264",
			"-c:a", "aac",
			"-strict", "-2",
		)
	} else {
		args = append(args, "-c", "copy", "-metadata:s:v:0", "rotate=0")
	}
	args = append(args,
		"-start_number", "0",
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, baseName+"%d.ts"),
		"-f", "hls",
		playlist,
	)

	if err := v.runner.Run(ctx, args); err != nil {
		return fmt.Errorf("%w: %w", ErrStream, err)
	}
	return nil
}

// probeRotation probes the source and resolves the rotation its metadata
// calls for. A source without a video stream or rotation metadata needs no
// rotation.
func (v *VideoConverter) probeRotation(ctx context.Context, input string) (Angle, error) {
	result, err := v.runner.Probe(ctx, input)
	if err != nil {
		return Angle0, err
	}
	vs, ok := result.VideoStream()
	if !ok {
		return Angle0, nil
	}
	return AngleFromRotationTag(vs.Rotation()), nil
}

// formatSeconds renders a seconds value the way ffmpeg expects, without a
// trailing zero fraction.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
