package model

import "time"

// JobStatus is the lifecycle state of a comparison job.
// Completed and failed are terminal.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Pipeline phases in execution order.
const (
	PhaseInitialization = "initialization"
	PhaseExtraction     = "extraction"
	PhaseRendering      = "rendering"
	PhaseComparison     = "comparison"
	PhasePersistence    = "persistence"
)

// ProgressUpdate is one observable progress event for a job.
type ProgressUpdate struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Percent int       `json:"percent"`
	Phase   string    `json:"phase,omitempty"`
	Message string    `json:"message"`
}

// Job is the mutable state of one comparison request. It is owned by the
// orchestrator; other components only return values that the orchestrator
// translates into transitions.
type Job struct {
	ID         string            `json:"job_id"`
	Status     JobStatus         `json:"status"`
	Percent    int               `json:"percent"`
	Phase      string            `json:"phase,omitempty"`
	Message    string            `json:"message,omitempty"`
	Result     *DiffReport       `json:"result,omitempty"`
	Responsive *ResponsiveReport `json:"responsive_result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
