package jobs

import (
	"context"
	"errors"
)

// ErrActiveJobExists is returned by CreateJob when a non-terminal job
// already exists for the same message key and target language.
var ErrActiveJobExists = errors.New("an active job already exists for this message and language")

// Store persists job records.
type Store interface {
	// CreateJob inserts a new job. It fails with ErrActiveJobExists when the
	// job is non-terminal and another non-terminal job shares its key.
	CreateJob(ctx context.Context, job *DocumentJob) error
	UpsertJob(ctx context.Context, job *DocumentJob) error
	// GetJob returns an errs.JobNotFound error for unknown ids.
	GetJob(ctx context.Context, id string) (*DocumentJob, error)
	// LatestJob returns the newest job for the key that has not been
	// superseded, or nil when there is none.
	LatestJob(ctx context.Context, messageKey, targetLanguage string) (*DocumentJob, error)
	// ListActiveJobs returns every non-terminal job.
	ListActiveJobs(ctx context.Context) ([]*DocumentJob, error)
}
