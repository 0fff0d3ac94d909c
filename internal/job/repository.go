package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a derivation job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the persistence port for derivation jobs.
type Repository interface {
	// Save persists a derivation job.
	// If the job already exists, it should be updated.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a derivation job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all derivation jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a derivation job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
