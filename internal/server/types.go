// Package server provides the HTTP surface of the media converter.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// DerivationParams is the HTTP representation of pipeline parameters.
// Fields not relevant to the requested kind are ignored.
type DerivationParams struct {
	// Width and Height form the target output size in pixels.
	Width  int `json:"width" validate:"omitempty,min=1,max=8192"`
	Height int `json:"height" validate:"omitempty,min=1,max=8192"`
	// CropToFit crops to the exact target size instead of fitting within
	// it. Omitted means crop.
	CropToFit *bool `json:"crop_to_fit,omitempty"`
	// Timestamp is the capture offset in seconds for video thumbnails.
	Timestamp float64 `json:"timestamp" validate:"omitempty,gte=0"`
	// Start and Duration bound the clip window in seconds for GIF previews.
	Start    float64 `json:"start" validate:"omitempty,gte=0"`
	Duration float64 `json:"duration" validate:"omitempty,gt=0"`
	// FPS is the GIF preview frame rate.
	FPS int `json:"fps" validate:"omitempty,min=1,max=60"`
	// SegmentSeconds is the target HLS segment duration.
	SegmentSeconds int `json:"segment_seconds" validate:"omitempty,min=1,max=60"`
	// Resolution is a named HLS tier such as "480p".
	Resolution string `json:"resolution"`
	// AutoRotate applies source rotation metadata.
	AutoRotate bool `json:"auto_rotate"`
}

// CreateDerivationRequest is the HTTP request body for creating a derivation.
type CreateDerivationRequest struct {
	// Kind selects the derivation pipeline.
	Kind string `json:"kind" validate:"required,oneof=thumbnail image_thumbnail video_thumbnail gif_preview hls"`
	// InputPath is the path to the source media file on the server.
	InputPath string `json:"input_path" validate:"required"`
	// Params holds the pipeline parameters.
	Params DerivationParams `json:"params"`
	// Publish uploads the derived artifacts to the configured store.
	Publish bool `json:"publish"`
}

// CreateDerivationResponse is the HTTP response after creating a derivation.
type CreateDerivationResponse struct {
	// ID is the unique identifier for the created derivation.
	ID string `json:"id"`
	// Kind is the derivation pipeline.
	Kind string `json:"kind"`
	// Status is the initial derivation status.
	Status string `json:"status"`
}

// DerivationResponse is the HTTP response for getting derivation details.
type DerivationResponse struct {
	// ID is the unique identifier for the derivation.
	ID string `json:"id"`
	// Kind is the derivation pipeline.
	Kind string `json:"kind"`
	// Status is the current derivation status.
	Status string `json:"status"`
	// OutputPath is the derived artifact path once completed.
	OutputPath string `json:"output_path,omitempty"`
	// ArtifactURL is the published artifact URL when publish was requested.
	ArtifactURL string `json:"artifact_url,omitempty"`
	// Error contains any error message if the derivation failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the derivation was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the derivation reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListDerivationsResponse is the HTTP response for listing derivations.
type ListDerivationsResponse struct {
	// Derivations is the list of known derivations.
	Derivations []DerivationResponse `json:"derivations"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
