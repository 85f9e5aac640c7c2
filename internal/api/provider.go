package api

import (
	"context"

	"github.com/pixelproof/design-diff-tool/internal/job"
	"github.com/pixelproof/design-diff-tool/internal/model"
)

// JobRunner executes one comparison job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, req job.Request)
}

// JobStore is the job-state surface the API needs.
type JobStore interface {
	Create(id string) *model.Job
	Get(id string) (*model.Job, error)
	Delete(id string) error
	Subscribe(id string) (<-chan model.ProgressUpdate, error)
}
