package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/crowdstory/media-converter/internal/media"
	"github.com/crowdstory/media-converter/internal/storage"
)

// ErrUnknownKind is returned when a job names a derivation kind no
// pipeline implements.
var ErrUnknownKind = errors.New("unknown derivation kind")

// ErrUnsupportedMedia is returned when a thumbnail job's source is neither
// an image nor a video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// ErrJobNotTerminal is returned when deleting a job that is still queued
// or running.
var ErrJobNotTerminal = errors.New("job is not in a terminal state")

// ImageDeriver derives thumbnails from still images.
// media.ImageConverter is the production implementation.
type ImageDeriver interface {
	CreateThumbnail(input, output string, opts media.ImageThumbnailOptions) error
}

// VideoDeriver derives artifacts from video sources.
// media.VideoConverter is the production implementation.
type VideoDeriver interface {
	CreateThumbnail(ctx context.Context, input, output string, opts media.ThumbnailOptions) error
	CreateGIFPreview(ctx context.Context, input, output string, opts media.GIFOptions) error
	ConvertToHLS(ctx context.Context, input, outputDir, baseName string, opts media.HLSOptions) error
}

// Artifact file names under each job's directory in the store.
const (
	thumbnailFileName = "thumbnail.jpg"
	previewFileName   = "preview.gif"
	hlsDirName        = "hls"
	hlsBaseName       = "stream"
)

// DeriveInput contains the parameters for creating a derivation job.
type DeriveInput struct {
	// Kind selects the derivation pipeline.
	Kind Kind
	// InputPath is the path to the source media file.
	InputPath string
	// Params holds the pipeline parameters.
	Params Params
	// Publish indicates whether to publish the artifact after derivation.
	Publish bool
}

// Defaults are fallback pipeline parameters applied when a job omits them.
type Defaults struct {
	// ThumbnailTimestamp is the capture offset for video thumbnails.
	ThumbnailTimestamp float64
	// GIFFPS is the GIF preview frame rate.
	GIFFPS int
	// SegmentSeconds is the HLS segment duration.
	SegmentSeconds int
	// ThumbnailSize is the image thumbnail size.
	ThumbnailSize media.Size
}

// ServiceOption configures a DeriveService.
type ServiceOption func(*DeriveService)

// WithDefaults overrides the fallback pipeline parameters. Zero-valued
// fields keep their built-in defaults.
func WithDefaults(d Defaults) ServiceOption {
	return func(s *DeriveService) {
		if d.ThumbnailTimestamp > 0 {
			s.defaults.ThumbnailTimestamp = d.ThumbnailTimestamp
		}
		if d.GIFFPS > 0 {
			s.defaults.GIFFPS = d.GIFFPS
		}
		if d.SegmentSeconds > 0 {
			s.defaults.SegmentSeconds = d.SegmentSeconds
		}
		if d.ThumbnailSize.Width > 0 && d.ThumbnailSize.Height > 0 {
			s.defaults.ThumbnailSize = d.ThumbnailSize
		}
	}
}

// DeriveService orchestrates media derivation jobs. Each job runs exactly
// one pipeline, synchronously, writing its artifacts under the store root;
// the service records the outcome on the job.
type DeriveService struct {
	repo     Repository
	images   ImageDeriver
	videos   VideoDeriver
	store    storage.Store
	logger   *slog.Logger
	defaults Defaults
}

// NewDeriveService creates a new DeriveService.
// A nil logger falls back to slog.Default().
func NewDeriveService(
	repo Repository,
	images ImageDeriver,
	videos VideoDeriver,
	store storage.Store,
	logger *slog.Logger,
	opts ...ServiceOption,
) *DeriveService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DeriveService{
		repo:   repo,
		images: images,
		videos: videos,
		store:  store,
		logger: logger,
		defaults: Defaults{
			ThumbnailTimestamp: media.DefaultThumbnailTimestamp,
			GIFFPS:             media.DefaultGIFFPS,
			SegmentSeconds:     media.DefaultSegmentSeconds,
			ThumbnailSize:      media.Size{Width: 320, Height: 240},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a new derivation job and persists it to the repository.
// The job is created in IN_QUEUE status, ready for processing.
func (s *DeriveService) CreateJob(ctx context.Context, input DeriveInput) (*Job, error) {
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, input.Kind)
	}

	job := New(input.Kind)
	job.InputPath = input.InputPath
	job.Params = input.Params
	job.Publish = input.Publish

	s.logger.Info("creating derivation job",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("input", input.InputPath),
		slog.Bool("publish", input.Publish),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *DeriveService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs.
func (s *DeriveService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a terminal job and its staged artifacts.
func (s *DeriveService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return fmt.Errorf("delete job %s: %w", id, ErrJobNotTerminal)
	}
	if err := s.store.Remove(s.store.ArtifactPath(job.ID)); err != nil {
		return err
	}

	s.logger.Info("derivation deleted",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
	)
	return s.repo.Delete(ctx, id)
}

// ProcessExistingJob runs the pipeline for a previously created job. The
// job transitions to RUNNING, then to COMPLETED or FAILED depending on the
// pipeline outcome; the pipeline error, if any, is returned alongside the
// updated job.
func (s *DeriveService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	outputPath, deriveErr := s.derive(ctx, job)
	if deriveErr != nil {
		s.logger.Error("derivation failed",
			slog.String("job_id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.String("error", deriveErr.Error()),
		)
		_ = job.Fail(deriveErr.Error())
		if err := s.repo.Save(ctx, job); err != nil {
			s.logger.Error("failed to save failed job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return job, deriveErr
	}

	artifactURL := ""
	if job.Publish {
		artifactURL, err = s.publish(ctx, job, outputPath)
		if err != nil {
			_ = job.Fail(err.Error())
			if saveErr := s.repo.Save(ctx, job); saveErr != nil {
				s.logger.Error("failed to save failed job",
					slog.String("job_id", job.ID),
					slog.String("error", saveErr.Error()),
				)
			}
			return job, err
		}
	}

	job.SetOutput(outputPath, artifactURL)
	if err := job.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("derivation completed",
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("output", outputPath),
	)
	return job, nil
}

// derive dispatches the job to its pipeline and returns the primary
// artifact path (the playlist file for HLS).
func (s *DeriveService) derive(ctx context.Context, job *Job) (string, error) {
	if err := s.store.EnsureDir(s.store.ArtifactPath(job.ID)); err != nil {
		return "", fmt.Errorf("prepare artifact dir: %w", err)
	}

	p := job.Params

	var size *media.Size
	if p.Width > 0 && p.Height > 0 {
		size = &media.Size{Width: p.Width, Height: p.Height}
	}

	kind := job.Kind
	if kind == KindThumbnail {
		resolved, err := s.resolveThumbnailKind(job.InputPath)
		if err != nil {
			return "", err
		}
		kind = resolved
	}

	switch kind {
	case KindImageThumbnail:
		output := s.store.ArtifactPath(job.ID, thumbnailFileName)
		cropToFit := true
		if p.CropToFit != nil {
			cropToFit = *p.CropToFit
		}
		opts := media.ImageThumbnailOptions{CropToFit: cropToFit}
		if size != nil {
			opts.Size = *size
		} else {
			opts.Size = s.defaults.ThumbnailSize
		}
		return output, s.images.CreateThumbnail(job.InputPath, output, opts)

	case KindVideoThumbnail:
		output := s.store.ArtifactPath(job.ID, thumbnailFileName)
		timestamp := p.Timestamp
		if timestamp <= 0 {
			timestamp = s.defaults.ThumbnailTimestamp
		}
		return output, s.videos.CreateThumbnail(ctx, job.InputPath, output, media.ThumbnailOptions{
			Timestamp:  timestamp,
			Size:       size,
			AutoRotate: p.AutoRotate,
		})

	case KindGIFPreview:
		output := s.store.ArtifactPath(job.ID, previewFileName)
		fps := p.FPS
		if fps <= 0 {
			fps = s.defaults.GIFFPS
		}
		return output, s.videos.CreateGIFPreview(ctx, job.InputPath, output, media.GIFOptions{
			Start:      p.Start,
			Duration:   p.Duration,
			FPS:        fps,
			Size:       size,
			AutoRotate: p.AutoRotate,
		})

	case KindHLS:
		outputDir := s.store.ArtifactPath(job.ID, hlsDirName)
		playlist := s.store.ArtifactPath(job.ID, hlsDirName, hlsBaseName+".m3u8")
		segmentSeconds := p.SegmentSeconds
		if segmentSeconds <= 0 {
			segmentSeconds = s.defaults.SegmentSeconds
		}
		return playlist, s.videos.ConvertToHLS(ctx, job.InputPath, outputDir, hlsBaseName, media.HLSOptions{
			SegmentSeconds: segmentSeconds,
			Resolution:     p.Resolution,
			AutoRotate:     p.AutoRotate,
		})

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// resolveThumbnailKind sniffs the source MIME type and picks the image or
// video thumbnail pipeline.
func (s *DeriveService) resolveThumbnailKind(inputPath string) (Kind, error) {
	mt, err := media.DetectMimetype(inputPath)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImageThumbnail, nil
	case strings.HasPrefix(mt, "video/"):
		return KindVideoThumbnail, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt)
}

// publish uploads the job's artifacts and returns the primary artifact URL.
// HLS jobs publish the playlist and every segment under the job's key
// prefix; the playlist URL is the primary one.
func (s *DeriveService) publish(ctx context.Context, job *Job, outputPath string) (string, error) {
	if job.Kind != KindHLS {
		key := path.Join(job.ID, path.Base(outputPath))
		return s.store.Publish(ctx, key, outputPath)
	}

	dir := s.store.ArtifactPath(job.ID, hlsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list hls artifacts: %w", err)
	}

	playlistURL := ""
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".ts") && !strings.HasSuffix(name, ".m3u8")) {
			continue
		}
		key := path.Join(job.ID, hlsDirName, name)
		url, err := s.store.Publish(ctx, key, s.store.ArtifactPath(job.ID, hlsDirName, name))
		if err != nil {
			return "", fmt.Errorf("publish %s: %w", name, err)
		}
		if strings.HasSuffix(name, ".m3u8") {
			playlistURL = url
		}
	}
	return playlistURL, nil
}
