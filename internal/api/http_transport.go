package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

// Transport handles HTTP requests for comparison jobs.
type Transport struct {
	service *Service
	logger  *slog.Logger
}

// NewTransport creates an HTTP transport backed by the given service.
func NewTransport(service *Service, logger *slog.Logger) *Transport {
	return &Transport{service: service, logger: logger}
}

// RegisterRoutes attaches the transport's handlers to the given mux.
func (t *Transport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/compare", t.handleCompare)
	mux.HandleFunc("GET /api/v1/progress/{id}", t.handleProgress)
	mux.HandleFunc("GET /api/v1/result/{id}", t.handleResult)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", t.handleDelete)
}

type compareAccepted struct {
	JobID       string          `json:"job_id"`
	Status      model.JobStatus `json:"status"`
	ProgressURL string          `json:"progress_url"`
}

func (t *Transport) handleCompare(w http.ResponseWriter, r *http.Request) {
	const maxRequestBody = 1 << 20 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "Invalid request body. Please send a JSON comparison request.")
		return
	}

	created, err := t.service.StartComparison(r.Context(), req)
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	t.renderJSON(w, http.StatusAccepted, compareAccepted{
		JobID:       created.ID,
		Status:      created.Status,
		ProgressURL: fmt.Sprintf("/api/v1/progress/%s", created.ID),
	})
}

func (t *Transport) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := t.service.Progress(r.PathValue("id"))
	if err != nil {
		t.handleServiceError(w, err)
		return
	}
	t.renderJSON(w, http.StatusOK, progress)
}

func (t *Transport) handleResult(w http.ResponseWriter, r *http.Request) {
	j, err := t.service.Result(r.PathValue("id"))
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	// A job still in flight has no result yet; signal that with 202 so
	// pollers keep waiting on the same URL.
	status := http.StatusOK
	if !j.Status.Terminal() {
		status = http.StatusAccepted
	}
	t.renderJSON(w, status, j)
}

func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := t.service.Delete(r.PathValue("id")); err != nil {
		t.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (t *Transport) handleServiceError(w http.ResponseWriter, err error) {
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Kind {
		case errs.InvalidInput, errs.InvalidReference:
			status = http.StatusBadRequest
		case errs.NodeNotFound:
			status = http.StatusNotFound
		case errs.RateLimited:
			status = http.StatusTooManyRequests
		case errs.UpstreamError, errs.RenderFailed:
			status = http.StatusBadGateway
		case errs.ComparisonInputMissing, errs.JobFailed, errs.Unknown:
			// 500 Internal Server Error
		}
		t.renderError(w, status, appErr.Message)
		return
	}

	t.renderError(w, http.StatusInternalServerError, "An unexpected error occurred.")
}

func (t *Transport) renderJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		t.logger.Error("failed to encode response", "error", err)
		http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *Transport) renderError(w http.ResponseWriter, status int, message string) {
	t.renderJSON(w, status, model.ErrorResponse{
		Error:      http.StatusText(status),
		StatusCode: status,
		Message:    message,
	})
}
