// Package job provides the derivation Job aggregate and the DeriveService
// use case that runs one media pipeline per job. It includes the Job entity
// with state machine transitions as well as repository interfaces for
// persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/crowdstory/media-converter/internal/job/id"
)

// Kind identifies which derivation pipeline a job runs.
type Kind string

const (
	// KindThumbnail derives a thumbnail, sniffing the source MIME type to
	// pick the image or video pipeline.
	KindThumbnail Kind = "thumbnail"
	// KindImageThumbnail derives a still-image thumbnail.
	KindImageThumbnail Kind = "image_thumbnail"
	// KindVideoThumbnail derives a single-frame capture from a video.
	KindVideoThumbnail Kind = "video_thumbnail"
	// KindGIFPreview derives a two-pass palette-quantized GIF preview.
	KindGIFPreview Kind = "gif_preview"
	// KindHLS derives a playlist plus segment files.
	KindHLS Kind = "hls"
)

// IsValid returns true if the kind names a known pipeline.
func (k Kind) IsValid() bool {
	switch k {
	case KindThumbnail, KindImageThumbnail, KindVideoThumbnail, KindGIFPreview, KindHLS:
		return true
	}
	return false
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job's pipeline is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job's pipeline surfaced an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Params holds the per-kind pipeline parameters for a job. Fields not
// relevant to the job's kind are ignored by the pipeline.
type Params struct {
	// Width and Height form the target output size; zero means the
	// source size is kept.
	Width  int
	Height int
	// CropToFit selects crop-to-fit sizing for thumbnails. Nil means
	// unset; the service crops to the exact target size by default.
	CropToFit *bool
	// Timestamp is the capture offset in seconds (video thumbnails).
	Timestamp float64
	// Start and Duration bound the clip window in seconds (GIF previews).
	Start    float64
	Duration float64
	// FPS is the preview frame rate (GIF previews).
	FPS int
	// SegmentSeconds is the target segment duration (HLS).
	SegmentSeconds int
	// Resolution is a named tier such as "480p" (HLS).
	Resolution string
	// AutoRotate applies rotation metadata (video pipelines).
	AutoRotate bool
}

// Job represents one media derivation. It owns all state related to
// producing a single derived artifact set from a source file.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind selects the derivation pipeline.
	Kind Kind
	// Status is the current job state.
	Status Status
	// InputPath is the path to the source media file.
	InputPath string
	// Params holds the pipeline parameters.
	Params Params
	// Publish indicates whether to publish the artifact after derivation.
	Publish bool
	// OutputPath is the derived artifact: a file for thumbnails and
	// previews, the playlist file for HLS.
	OutputPath string
	// ArtifactURL is the published artifact URL, when Publish was set.
	ArtifactURL string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID and initial
// IN_QUEUE status.
func New(kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Kind:      kind,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE
// status. Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutput sets the derived artifact path and optional published URL.
func (j *Job) SetOutput(outputPath, artifactURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = outputPath
	j.ArtifactURL = artifactURL
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		InputPath:   j.InputPath,
		Params:      j.Params,
		Publish:     j.Publish,
		OutputPath:  j.OutputPath,
		ArtifactURL: j.ArtifactURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
