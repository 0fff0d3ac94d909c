package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Compile-time check that FFmpegRunner implements Runner.
var _ Runner = (*FFmpegRunner)(nil)

// FFmpegRunner implements Runner using the ffmpeg and ffprobe CLI tools.
type FFmpegRunner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegRunner creates a new FFmpegRunner.
// Empty binary paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegRunner(ffmpegPath, ffprobePath string) *FFmpegRunner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegRunner{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Probe runs ffprobe on the given file and returns the decoded metadata.
func (r *FFmpegRunner) Probe(ctx context.Context, path string) (ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return ProbeResult{}, &FFmpegError{
			Args:   []string{"-show_streams", "-show_format", path},
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return ParseProbeOutput(stdout.Bytes())
}

// ParseProbeOutput decodes ffprobe JSON output into a ProbeResult.
func ParseProbeOutput(data []byte) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("decode probe output: %w", err)
	}
	return result, nil
}

// Run executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (r *FFmpegRunner) Run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg or ffprobe,
// including the stderr output of the failed invocation.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
