package errs

import "fmt"

// Kind categorizes application errors for HTTP status mapping.
type Kind int

const (
	// Unknown represents an unclassified error.
	Unknown Kind = iota
	// InvalidInput indicates the request was malformed (HTTP 400).
	InvalidInput
	// InvalidReference indicates a design-file reference that cannot be
	// resolved to a file key (HTTP 400).
	InvalidReference
	// NodeNotFound indicates the requested design node does not exist in the
	// file (HTTP 404).
	NodeNotFound
	// RateLimited indicates the design API refused the request after all
	// retries were exhausted (HTTP 429).
	RateLimited
	// UpstreamError indicates a non-retryable design API failure (HTTP 502).
	UpstreamError
	// RenderFailed indicates the target page could not be rendered or
	// captured (HTTP 502).
	RenderFailed
	// ComparisonInputMissing indicates the visual pass had nothing to compare.
	// It degrades the comparison instead of failing the job.
	ComparisonInputMissing
	// JobFailed is the catch-all for a phase failure inside a job (HTTP 500).
	JobFailed
)

// AppError carries a category, user message, and original cause.
type AppError struct {
	Kind           Kind
	UpstreamStatus int // HTTP status code returned by the upstream service
	Message        string
	Cause          error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}
