package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/crowdstory/media-converter/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.DeriveService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateDerivation only creates the job and returns
// immediately without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.DeriveService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateDerivation handles POST /derivations requests.
func (h *Handlers) CreateDerivation(w http.ResponseWriter, r *http.Request) {
	var req CreateDerivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := job.DeriveInput{
		Kind:      job.Kind(req.Kind),
		InputPath: req.InputPath,
		Params: job.Params{
			Width:          req.Params.Width,
			Height:         req.Params.Height,
			CropToFit:      req.Params.CropToFit,
			Timestamp:      req.Params.Timestamp,
			Start:          req.Params.Start,
			Duration:       req.Params.Duration,
			FPS:            req.Params.FPS,
			SegmentSeconds: req.Params.SegmentSeconds,
			Resolution:     req.Params.Resolution,
			AutoRotate:     req.Params.AutoRotate,
		},
		Publish: req.Publish,
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrUnknownKind) {
			writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_KIND")
			return
		}
		h.logger.Error("failed to create derivation",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create derivation", "DERIVATION_CREATION_FAILED")
		return
	}

	// Run the pipeline in the background with a detached context so the
	// request ending does not cancel it.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID)
			if processErr != nil {
				h.logger.Error("background derivation failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("derivation created",
		slog.String("job_id", createdJob.ID),
		slog.String("kind", req.Kind),
	)

	writeJSON(w, http.StatusAccepted, CreateDerivationResponse{
		ID:     createdJob.ID,
		Kind:   string(createdJob.Kind),
		Status: string(createdJob.Status),
	})
}

// GetDerivation handles GET /derivations/{id} requests.
func (h *Handlers) GetDerivation(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "derivation ID is required", "MISSING_DERIVATION_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "derivation not found", "DERIVATION_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get derivation",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get derivation", "DERIVATION_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toDerivationResponse(foundJob))
}

// DeleteDerivation handles DELETE /derivations/{id} requests. Only
// derivations in a terminal state can be deleted; their staged artifacts
// are removed alongside the job.
func (h *Handlers) DeleteDerivation(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "derivation ID is required", "MISSING_DERIVATION_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "derivation not found", "DERIVATION_NOT_FOUND")
		case errors.Is(err, job.ErrJobNotTerminal):
			writeError(w, http.StatusConflict, "derivation is still processing", "DERIVATION_NOT_TERMINAL")
		default:
			h.logger.Error("failed to delete derivation",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete derivation", "DERIVATION_DELETE_FAILED")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListDerivations handles GET /derivations requests.
func (h *Handlers) ListDerivations(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list derivations",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list derivations", "DERIVATION_LIST_FAILED")
		return
	}

	resp := ListDerivationsResponse{Derivations: make([]DerivationResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Derivations = append(resp.Derivations, toDerivationResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// toDerivationResponse maps a job to its HTTP representation.
func toDerivationResponse(j *job.Job) DerivationResponse {
	resp := DerivationResponse{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
	}
	if j.Status == job.StatusCompleted {
		resp.OutputPath = j.OutputPath
		resp.ArtifactURL = j.ArtifactURL
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
