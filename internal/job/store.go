package job

import (
	"sync"
	"time"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

// subscriberBuffer bounds each progress channel. Updates beyond the buffer
// are dropped for that subscriber rather than blocking the pipeline; the
// latest state is always available via Get.
const subscriberBuffer = 16

// Store owns all job state. The orchestrator writes through it; transports
// only read. Jobs expire after the retention window.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*model.Job
	subscribers map[string][]chan model.ProgressUpdate
	retention   time.Duration
}

func NewStore(retention time.Duration) *Store {
	return &Store{
		jobs:        make(map[string]*model.Job),
		subscribers: make(map[string][]chan model.ProgressUpdate),
		retention:   retention,
	}
}

// Create registers a new job in the queued state.
func (s *Store) Create(id string) *model.Job {
	now := time.Now()
	j := &model.Job{
		ID:        id,
		Status:    model.JobQueued,
		Message:   "Job accepted.",
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()

	return s.snapshot(j)
}

// Get returns a copy of the job's current state.
func (s *Store) Get(id string) (*model.Job, error) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &errs.AppError{
			Kind:    errs.NodeNotFound,
			Message: "No job exists with that id.",
		}
	}
	return s.snapshot(j), nil
}

// Delete removes a job and closes its subscriber channels.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return &errs.AppError{
			Kind:    errs.NodeNotFound,
			Message: "No job exists with that id.",
		}
	}
	delete(s.jobs, id)
	for _, ch := range s.subscribers[id] {
		close(ch)
	}
	delete(s.subscribers, id)
	return nil
}

// Subscribe returns a channel of progress updates for the job. The channel is
// closed when the job is deleted or expires; slow consumers miss intermediate
// updates instead of stalling the job.
func (s *Store) Subscribe(id string) (<-chan model.ProgressUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, &errs.AppError{
			Kind:    errs.NodeNotFound,
			Message: "No job exists with that id.",
		}
	}

	ch := make(chan model.ProgressUpdate, subscriberBuffer)
	// Seed with the current state so a late subscriber sees where the job is.
	ch <- progressOf(j)
	s.subscribers[id] = append(s.subscribers[id], ch)
	return ch, nil
}

// advance moves a job forward within the processing state. Percent never goes
// backwards and terminal jobs never transition.
func (s *Store) advance(id string, percent int, phase, message string) {
	s.update(id, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = model.JobProcessing
		if percent > j.Percent {
			j.Percent = percent
		}
		j.Phase = phase
		j.Message = message
	})
}

// complete marks the job completed with its result attached.
func (s *Store) complete(id string, result *model.DiffReport, responsive *model.ResponsiveReport) {
	s.update(id, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = model.JobCompleted
		j.Percent = 100
		j.Phase = model.PhasePersistence
		j.Message = "Comparison complete."
		j.Result = result
		j.Responsive = responsive
	})
}

// fail marks the job failed. The error message is preserved verbatim and any
// partial result is discarded.
func (s *Store) fail(id string, errMsg string) {
	s.update(id, func(j *model.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = model.JobFailed
		j.Message = "Comparison failed."
		j.Error = errMsg
		j.Result = nil
		j.Responsive = nil
	})
}

func (s *Store) update(id string, fn func(*model.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(j)
	j.UpdatedAt = time.Now()

	update := progressOf(j)
	for _, ch := range s.subscribers[id] {
		select {
		case ch <- update:
		default:
		}
	}
}

// Sweep removes jobs whose last update is older than the retention window and
// returns how many were removed.
func (s *Store) Sweep() int {
	cutoff := time.Now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if j.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		for _, ch := range s.subscribers[id] {
			close(ch)
		}
		delete(s.subscribers, id)
		removed++
	}
	return removed
}

// snapshot deep-copies the mutable job state for safe return to callers.
// Result pointers are shared: reports are immutable once attached.
func (s *Store) snapshot(j *model.Job) *model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *j
	return &cp
}

func progressOf(j *model.Job) model.ProgressUpdate {
	return model.ProgressUpdate{
		JobID:   j.ID,
		Status:  j.Status,
		Percent: j.Percent,
		Phase:   j.Phase,
		Message: j.Message,
	}
}
