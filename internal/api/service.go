package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pixelproof/design-diff-tool/internal/job"
	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
	"github.com/pixelproof/design-diff-tool/internal/platform/requestid"
)

var (
	errDesignURLRequired = errors.New("the \"figma_url\" field is required")
	errTokenRequired     = errors.New("the \"figma_token\" field is required")
	errSiteURLRequired   = errors.New("the \"site_url\" field is required")
	errBadViewport       = errors.New("every viewport needs a positive width and height")
	errTooManyViewports  = errors.New("at most 16 viewports per job")
)

const maxViewportsPerJob = 16

// CompareRequest is the payload accepted for a new comparison job.
type CompareRequest struct {
	DesignURL    string           `json:"figma_url"`
	Token        string           `json:"figma_token"`
	NodeID       string           `json:"node_id,omitempty"`
	SiteURL      string           `json:"site_url"`
	WaitSelector string           `json:"wait_selector,omitempty"`
	Viewports    []model.Viewport `json:"viewports,omitempty"`
	// Refresh bypasses the design API cache for this job's file.
	Refresh bool `json:"refresh,omitempty"`
}

func (r CompareRequest) validate() error {
	if r.DesignURL == "" {
		return errDesignURLRequired
	}
	if r.Token == "" {
		return errTokenRequired
	}
	if r.SiteURL == "" {
		return errSiteURLRequired
	}
	if len(r.Viewports) > maxViewportsPerJob {
		return errTooManyViewports
	}
	for _, vp := range r.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			return errBadViewport
		}
	}
	return nil
}

// Service accepts comparison requests, runs them asynchronously, and exposes
// job state.
type Service struct {
	store  JobStore
	runner JobRunner
	logger *slog.Logger
}

func NewService(store JobStore, runner JobRunner, logger *slog.Logger) *Service {
	return &Service{store: store, runner: runner, logger: logger}
}

// StartComparison registers the job and kicks off the pipeline in the
// background. The returned job is in the queued state.
func (s *Service) StartComparison(ctx context.Context, req CompareRequest) (*model.Job, error) {
	if err := req.validate(); err != nil {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: err.Error(),
			Cause:   err,
		}
	}

	id := uuid.NewString()
	created := s.store.Create(id)

	s.logger.Info("comparison accepted",
		"job_id", id,
		"site_url", req.SiteURL,
		"viewports", len(req.Viewports),
		"request_id", requestid.FromContext(ctx),
	)

	// The job outlives the HTTP request that created it.
	go s.runner.Run(context.WithoutCancel(ctx), job.Request{
		JobID:        id,
		DesignURL:    req.DesignURL,
		Token:        req.Token,
		NodeID:       req.NodeID,
		SiteURL:      req.SiteURL,
		WaitSelector: req.WaitSelector,
		Viewports:    req.Viewports,
		Refresh:      req.Refresh,
	})

	return created, nil
}

// Progress returns the job's current progress state.
func (s *Service) Progress(id string) (*model.ProgressUpdate, error) {
	j, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &model.ProgressUpdate{
		JobID:   j.ID,
		Status:  j.Status,
		Percent: j.Percent,
		Phase:   j.Phase,
		Message: j.Message,
	}, nil
}

// Result returns the full job including any attached report. Failed jobs
// carry only the error; non-terminal jobs carry neither.
func (s *Service) Result(id string) (*model.Job, error) {
	return s.store.Get(id)
}

// Delete removes a job and its state.
func (s *Service) Delete(id string) error {
	return s.store.Delete(id)
}
