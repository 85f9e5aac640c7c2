package renderer

import (
	"context"

	"github.com/pixelproof/design-diff-tool/internal/model"
)

// CaptureRequest describes one page capture.
type CaptureRequest struct {
	URL string
	// Viewport defaults to 1920x1080 when zero.
	Viewport model.Viewport
	// WaitSelector, when non-empty, is a CSS selector that must become
	// visible before stabilization starts.
	WaitSelector string
	// FullPage selects a full-page screenshot (with lazy-load scrolling)
	// instead of the bare viewport.
	FullPage bool
	// OutputDir receives the screenshot file.
	OutputDir string
}

// Capturer defines the contract for any page-capture engine.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (*model.SiteCapture, error)
}
