// Package bootstrap provides dependency initialization for the media converter.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/crowdstory/media-converter/internal/config"
	"github.com/crowdstory/media-converter/internal/job"
	"github.com/crowdstory/media-converter/internal/media"
	"github.com/crowdstory/media-converter/internal/storage"
	"github.com/crowdstory/media-converter/internal/transcoder"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	DeriveService *job.DeriveService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize artifact storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize ffmpeg runner and converters
	runner := transcoder.NewFFmpegRunner(cfg.FFmpegPath, cfg.FFprobePath)
	images := media.NewImageConverter()
	videos := media.NewVideoConverter(runner, logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewDeriveService(repo, images, videos, store, logger,
		job.WithDefaults(job.Defaults{
			ThumbnailTimestamp: cfg.ThumbnailTimestamp,
			GIFFPS:             cfg.GIFFPS,
			SegmentSeconds:     cfg.SegmentSeconds,
		}),
	)

	return &Dependencies{
		DeriveService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 store: %w", err)
		}
		logger.Info("S3 store configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	logger.Info("local store configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, nil
}
