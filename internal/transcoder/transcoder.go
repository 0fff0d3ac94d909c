// Package transcoder provides the integration boundary with the external
// ffmpeg/ffprobe tools. It defines the Runner interface (port) for hexagonal
// architecture and the FFmpegRunner implementation that shells out to the
// actual binaries.
package transcoder

import (
	"context"
	"strconv"
)

// Runner defines the interface for external transcoder invocations.
// It exposes exactly two capabilities: metadata probing and command
// execution. Implementations perform no retries and keep no shared state
// between calls; a failed invocation is a terminal failure for that call.
type Runner interface {
	// Probe analyzes a media file and returns its stream metadata.
	// It fails if the external tool cannot analyze the input (missing
	// file, unsupported codec, tool not installed).
	Probe(ctx context.Context, path string) (ProbeResult, error)

	// Run executes the transcoder with the given argument vector.
	// It fails on any non-zero exit status, with the tool's stderr
	// attached to the returned error for diagnostics.
	Run(ctx context.Context, args []string) error
}

// ProbeResult holds the metadata returned by ffprobe for a media file.
// Only the fields the pipelines read are decoded; absent fields keep their
// zero values.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single media stream within a probed file.
type Stream struct {
	CodecType    string     `json:"codec_type"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Tags         Tags       `json:"tags"`
	SideDataList []SideData `json:"side_data_list"`
}

// Tags holds the subset of stream tags the pipelines read.
type Tags struct {
	Rotate string `json:"rotate"`
}

// SideData holds per-stream side data. Display matrix side data carries the
// rotation some muxers write instead of a rotate tag.
type SideData struct {
	Rotation *int `json:"rotation"`
}

// Format holds container-level metadata.
type Format struct {
	Duration string `json:"duration"`
}

// VideoStream returns the first video stream in the probe result.
// The second return value is false if the file has no video stream.
func (r ProbeResult) VideoStream() (Stream, bool) {
	for _, s := range r.Streams {
		if s.CodecType == "video" {
			return s, true
		}
	}
	return Stream{}, false
}

// Rotation returns the raw rotation of the stream in degrees, as written by
// the muxer (may be -90, 90, 180 or -180). The rotate tag takes precedence
// over display matrix side data. Returns 0 when neither is present or the
// tag is not a number.
func (s Stream) Rotation() int {
	if s.Tags.Rotate != "" {
		if deg, err := strconv.Atoi(s.Tags.Rotate); err == nil {
			return deg
		}
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			return *sd.Rotation
		}
	}
	return 0
}
