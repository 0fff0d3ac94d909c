package job

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/crowdstory/media-converter/internal/media"
)

type fakeImageDeriver struct {
	calls    int
	err      error
	lastIn   string
	lastOut  string
	lastOpts media.ImageThumbnailOptions
}

func (f *fakeImageDeriver) CreateThumbnail(input, output string, opts media.ImageThumbnailOptions) error {
	f.calls++
	f.lastIn = input
	f.lastOut = output
	f.lastOpts = opts
	return f.err
}

type fakeVideoDeriver struct {
	thumbCalls int
	gifCalls   int
	hlsCalls   int
	err        error

	lastOut       string
	lastThumbOpts media.ThumbnailOptions
	lastGIFOpts   media.GIFOptions
	lastHLSOpts   media.HLSOptions
	lastHLSDir    string
	lastHLSBase   string

	onHLS func(outputDir, baseName string) error
}

func (f *fakeVideoDeriver) CreateThumbnail(_ context.Context, _, output string, opts media.ThumbnailOptions) error {
	f.thumbCalls++
	f.lastOut = output
	f.lastThumbOpts = opts
	return f.err
}

func (f *fakeVideoDeriver) CreateGIFPreview(_ context.Context, _, output string, opts media.GIFOptions) error {
	f.gifCalls++
	f.lastOut = output
	f.lastGIFOpts = opts
	return f.err
}

func (f *fakeVideoDeriver) ConvertToHLS(_ context.Context, _, outputDir, baseName string, opts media.HLSOptions) error {
	f.hlsCalls++
	f.lastHLSDir = outputDir
	f.lastHLSBase = baseName
	f.lastHLSOpts = opts
	if f.err != nil {
		return f.err
	}
	if f.onHLS != nil {
		return f.onHLS(outputDir, baseName)
	}
	return nil
}

// fakeStore stages artifacts under a temp root and records published keys.
type fakeStore struct {
	root       string
	published  []string
	publishErr error
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	return &fakeStore{root: t.TempDir()}
}

func (s *fakeStore) ArtifactPath(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

func (s *fakeStore) EnsureDir(path string) error {
	return os.MkdirAll(path, 0750)
}

func (s *fakeStore) Publish(_ context.Context, key, _ string) (string, error) {
	if s.publishErr != nil {
		return "", s.publishErr
	}
	s.published = append(s.published, key)
	return "mem://" + key, nil
}

func (s *fakeStore) Remove(path string) error {
	return os.RemoveAll(path)
}

func boolPtr(b bool) *bool {
	return &b
}

func newTestService(t *testing.T) (*DeriveService, *MemoryRepository, *fakeImageDeriver, *fakeVideoDeriver, *fakeStore) {
	t.Helper()
	repo := NewMemoryRepository()
	images := &fakeImageDeriver{}
	videos := &fakeVideoDeriver{}
	store := newFakeStore(t)
	svc := NewDeriveService(repo, images, videos, store, nil)
	return svc, repo, images, videos, store
}

func TestNewDeriveService(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
	if svc.repo != repo {
		t.Error("expected repo to be set")
	}
	if svc.logger == nil {
		t.Error("expected nil logger to fall back to default")
	}
}

func TestDeriveService_CreateJob(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindVideoThumbnail,
		InputPath: "/in/video.mp4",
		Params:    Params{Width: 320, Height: 240, AutoRotate: true},
		Publish:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID == "" {
		t.Error("expected job ID to be set")
	}
	if job.Status != StatusInQueue {
		t.Errorf("expected status %s, got %s", StatusInQueue, job.Status)
	}
	if job.InputPath != "/in/video.mp4" {
		t.Errorf("unexpected input path %q", job.InputPath)
	}
	if !job.Publish {
		t.Error("expected publish flag to be set")
	}

	saved, err := repo.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("job should be saved in repository: %v", err)
	}
	if saved.Params.Width != 320 {
		t.Errorf("expected params to be saved, got width %d", saved.Params.Width)
	}
}

func TestDeriveService_CreateJob_UnknownKind(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.CreateJob(context.Background(), DeriveInput{Kind: "waveform"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDeriveService_GetJob_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.GetJob(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDeriveService_ListJobs(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.CreateJob(ctx, DeriveInput{Kind: KindGIFPreview})
	_, _ = svc.CreateJob(ctx, DeriveInput{Kind: KindHLS})

	jobs, err := svc.ListJobs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestDeriveService_ProcessImageThumbnail(t *testing.T) {
	svc, repo, images, _, store := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindImageThumbnail,
		InputPath: "/in/photo.jpg",
		Params:    Params{Width: 200, Height: 150, CropToFit: boolPtr(true)},
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	if images.calls != 1 {
		t.Fatalf("expected 1 image call, got %d", images.calls)
	}
	if images.lastIn != "/in/photo.jpg" {
		t.Errorf("unexpected input %q", images.lastIn)
	}
	wantOut := store.ArtifactPath(created.ID, "thumbnail.jpg")
	if images.lastOut != wantOut {
		t.Errorf("expected output %q, got %q", wantOut, images.lastOut)
	}
	if images.lastOpts.Size != (media.Size{Width: 200, Height: 150}) {
		t.Errorf("unexpected size %+v", images.lastOpts.Size)
	}
	if !images.lastOpts.CropToFit {
		t.Error("expected crop-to-fit to be passed through")
	}
	if job.OutputPath != wantOut {
		t.Errorf("expected job output %q, got %q", wantOut, job.OutputPath)
	}
	if job.ArtifactURL != "" {
		t.Errorf("expected no artifact URL without publish, got %q", job.ArtifactURL)
	}

	saved, _ := repo.FindByID(ctx, created.ID)
	if saved.Status != StatusCompleted {
		t.Errorf("expected saved status %s, got %s", StatusCompleted, saved.Status)
	}
}

func TestDeriveService_ProcessImageThumbnail_DefaultSize(t *testing.T) {
	svc, _, images, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindImageThumbnail, InputPath: "/in/photo.jpg"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images.lastOpts.Size != (media.Size{Width: 320, Height: 240}) {
		t.Errorf("expected default size 320x240, got %+v", images.lastOpts.Size)
	}
}

func TestDeriveService_ProcessImageThumbnail_CropsByDefault(t *testing.T) {
	svc, _, images, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindImageThumbnail,
		InputPath: "/in/photo.jpg",
		Params:    Params{Width: 200, Height: 150},
	})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !images.lastOpts.CropToFit {
		t.Error("expected crop-to-fit when the flag is omitted")
	}
}

func TestDeriveService_ProcessImageThumbnail_FitWithin(t *testing.T) {
	svc, _, images, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindImageThumbnail,
		InputPath: "/in/photo.jpg",
		Params:    Params{Width: 200, Height: 150, CropToFit: boolPtr(false)},
	})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if images.lastOpts.CropToFit {
		t.Error("expected fit-within when crop is explicitly disabled")
	}
}

func TestDeriveService_ProcessThumbnail_SniffsImage(t *testing.T) {
	svc, _, images, videos, _ := newTestService(t)
	ctx := context.Background()

	input := filepath.Join(t.TempDir(), "photo.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if err := imaging.Save(img, input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindThumbnail, InputPath: input})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if images.calls != 1 {
		t.Errorf("expected image pipeline, got %d image calls", images.calls)
	}
	if videos.thumbCalls != 0 {
		t.Errorf("expected no video calls, got %d", videos.thumbCalls)
	}
}

func TestDeriveService_ProcessThumbnail_UnsupportedMedia(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	input := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(input, []byte("plain text"), 0600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindThumbnail, InputPath: input})
	_, err := svc.ProcessExistingJob(ctx, created.ID)
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}

	saved, _ := repo.FindByID(ctx, created.ID)
	if saved.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, saved.Status)
	}
}

func TestDeriveService_ProcessVideoThumbnail(t *testing.T) {
	svc, _, _, videos, store := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindVideoThumbnail,
		InputPath: "/in/video.mp4",
		Params:    Params{Width: 320, Height: 240, Timestamp: 4.5, AutoRotate: true},
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.thumbCalls != 1 {
		t.Fatalf("expected 1 thumbnail call, got %d", videos.thumbCalls)
	}
	if videos.lastThumbOpts.Timestamp != 4.5 {
		t.Errorf("expected timestamp 4.5, got %v", videos.lastThumbOpts.Timestamp)
	}
	if videos.lastThumbOpts.Size == nil || *videos.lastThumbOpts.Size != (media.Size{Width: 320, Height: 240}) {
		t.Errorf("unexpected size %+v", videos.lastThumbOpts.Size)
	}
	if !videos.lastThumbOpts.AutoRotate {
		t.Error("expected auto-rotate to be passed through")
	}
	if job.OutputPath != store.ArtifactPath(created.ID, "thumbnail.jpg") {
		t.Errorf("unexpected output path %q", job.OutputPath)
	}
}

func TestDeriveService_ProcessVideoThumbnail_DefaultTimestamp(t *testing.T) {
	svc, _, _, videos, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindVideoThumbnail, InputPath: "/in/video.mp4"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.lastThumbOpts.Timestamp != media.DefaultThumbnailTimestamp {
		t.Errorf("expected default timestamp, got %v", videos.lastThumbOpts.Timestamp)
	}
	if videos.lastThumbOpts.Size != nil {
		t.Errorf("expected nil size without dimensions, got %+v", videos.lastThumbOpts.Size)
	}
}

func TestDeriveService_WithDefaults(t *testing.T) {
	repo := NewMemoryRepository()
	images := &fakeImageDeriver{}
	videos := &fakeVideoDeriver{}
	store := newFakeStore(t)
	svc := NewDeriveService(repo, images, videos, store, nil,
		WithDefaults(Defaults{ThumbnailTimestamp: 2.5, GIFFPS: 15, SegmentSeconds: 6}),
	)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindVideoThumbnail, InputPath: "/in/video.mp4"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.lastThumbOpts.Timestamp != 2.5 {
		t.Errorf("expected configured default timestamp 2.5, got %v", videos.lastThumbOpts.Timestamp)
	}

	created, _ = svc.CreateJob(ctx, DeriveInput{Kind: KindGIFPreview, InputPath: "/in/video.mp4"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.lastGIFOpts.FPS != 15 {
		t.Errorf("expected configured default fps 15, got %d", videos.lastGIFOpts.FPS)
	}

	created, _ = svc.CreateJob(ctx, DeriveInput{Kind: KindHLS, InputPath: "/in/video.mp4"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.lastHLSOpts.SegmentSeconds != 6 {
		t.Errorf("expected configured default segment duration 6, got %d", videos.lastHLSOpts.SegmentSeconds)
	}
}

func TestDeriveService_ProcessGIFPreview(t *testing.T) {
	svc, _, _, videos, store := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindGIFPreview,
		InputPath: "/in/video.mp4",
		Params:    Params{Start: 2, Duration: 3, FPS: 5, Width: 320, Height: 240},
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.gifCalls != 1 {
		t.Fatalf("expected 1 gif call, got %d", videos.gifCalls)
	}
	if videos.lastGIFOpts.Start != 2 || videos.lastGIFOpts.Duration != 3 || videos.lastGIFOpts.FPS != 5 {
		t.Errorf("unexpected gif options %+v", videos.lastGIFOpts)
	}
	if job.OutputPath != store.ArtifactPath(created.ID, "preview.gif") {
		t.Errorf("unexpected output path %q", job.OutputPath)
	}
}

func TestDeriveService_ProcessHLS_Published(t *testing.T) {
	svc, _, _, videos, store := newTestService(t)
	ctx := context.Background()

	videos.onHLS = func(outputDir, baseName string) error {
		if err := os.MkdirAll(outputDir, 0750); err != nil {
			return err
		}
		for _, name := range []string{baseName + ".m3u8", baseName + "0.ts", baseName + "1.ts"} {
			if err := os.WriteFile(filepath.Join(outputDir, name), []byte("x"), 0600); err != nil {
				return err
			}
		}
		return nil
	}

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindHLS,
		InputPath: "/in/video.mp4",
		Params:    Params{SegmentSeconds: 6, Resolution: "480p", AutoRotate: true},
		Publish:   true,
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videos.hlsCalls != 1 {
		t.Fatalf("expected 1 hls call, got %d", videos.hlsCalls)
	}
	if videos.lastHLSBase != "stream" {
		t.Errorf("unexpected base name %q", videos.lastHLSBase)
	}
	if videos.lastHLSOpts.SegmentSeconds != 6 || videos.lastHLSOpts.Resolution != "480p" {
		t.Errorf("unexpected hls options %+v", videos.lastHLSOpts)
	}

	wantPlaylist := store.ArtifactPath(created.ID, "hls", "stream.m3u8")
	if job.OutputPath != wantPlaylist {
		t.Errorf("expected playlist output %q, got %q", wantPlaylist, job.OutputPath)
	}
	if job.ArtifactURL != "mem://"+created.ID+"/hls/stream.m3u8" {
		t.Errorf("expected playlist URL as primary artifact, got %q", job.ArtifactURL)
	}
	if len(store.published) != 3 {
		t.Errorf("expected playlist plus 2 segments published, got %v", store.published)
	}
}

func TestDeriveService_ProcessPublishesSingleArtifact(t *testing.T) {
	svc, _, _, _, store := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindImageThumbnail,
		InputPath: "/in/photo.jpg",
		Publish:   true,
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantKey := created.ID + "/thumbnail.jpg"
	if len(store.published) != 1 || store.published[0] != wantKey {
		t.Errorf("expected published key %q, got %v", wantKey, store.published)
	}
	if job.ArtifactURL != "mem://"+wantKey {
		t.Errorf("unexpected artifact URL %q", job.ArtifactURL)
	}
}

func TestDeriveService_ProcessFailure(t *testing.T) {
	svc, repo, _, videos, _ := newTestService(t)
	ctx := context.Background()

	videos.err = errors.New("stream derivation failed: exit status 1")

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindHLS, InputPath: "/in/video.mp4"})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}
	if job.Error == "" {
		t.Error("expected error message on job")
	}

	saved, _ := repo.FindByID(ctx, created.ID)
	if saved.Status != StatusFailed {
		t.Errorf("expected saved status %s, got %s", StatusFailed, saved.Status)
	}
}

func TestDeriveService_ProcessPublishFailure(t *testing.T) {
	svc, repo, _, _, store := newTestService(t)
	ctx := context.Background()

	store.publishErr = errors.New("bucket unavailable")

	created, _ := svc.CreateJob(ctx, DeriveInput{
		Kind:      KindImageThumbnail,
		InputPath: "/in/photo.jpg",
		Publish:   true,
	})

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	if err == nil {
		t.Fatal("expected publish error")
	}
	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}

	saved, _ := repo.FindByID(ctx, created.ID)
	if saved.Status != StatusFailed {
		t.Errorf("expected saved status %s, got %s", StatusFailed, saved.Status)
	}
}

func TestDeriveService_DeleteJob(t *testing.T) {
	svc, repo, _, _, store := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindImageThumbnail, InputPath: "/in/photo.jpg"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, created.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected job to be removed, got %v", err)
	}
	if _, err := os.Stat(store.ArtifactPath(created.ID)); !os.IsNotExist(err) {
		t.Error("expected artifact directory to be removed")
	}
}

func TestDeriveService_DeleteJob_NotTerminal(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindHLS, InputPath: "/in/video.mp4"})

	err := svc.DeleteJob(ctx, created.ID)
	if !errors.Is(err, ErrJobNotTerminal) {
		t.Fatalf("expected ErrJobNotTerminal, got %v", err)
	}
	if _, err := repo.FindByID(ctx, created.ID); err != nil {
		t.Errorf("expected job to be kept, got %v", err)
	}
}

func TestDeriveService_DeleteJob_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	if err := svc.DeleteJob(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDeriveService_ProcessExistingJob_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.ProcessExistingJob(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDeriveService_ProcessExistingJob_AlreadyTerminal(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateJob(ctx, DeriveInput{Kind: KindGIFPreview, InputPath: "/in/video.mp4"})
	if _, err := svc.ProcessExistingJob(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reprocessing a completed job is an invalid transition.
	_, err := svc.ProcessExistingJob(ctx, created.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	saved, _ := repo.FindByID(ctx, created.ID)
	if saved.Status != StatusCompleted {
		t.Errorf("expected job to stay completed, got %s", saved.Status)
	}
}
