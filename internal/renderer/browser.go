package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

const (
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080

	// networkIdleWindow is how long the wire must stay quiet after the load
	// event before navigation is considered settled.
	networkIdleWindow = 500 * time.Millisecond

	screenshotQuality = 90
)

// Chrome drives a headless browser to capture a page. It implements Capturer.
type Chrome struct {
	navTimeout       time.Duration
	stabilizeTimeout time.Duration
	// allowPrivate disables the private-address guard so tests can target
	// loopback servers.
	allowPrivate bool
	probeClient  probeFetcher
	logger       *slog.Logger
}

type probeFetcher interface {
	Do(ctx context.Context, targetURL string) (*Probe, error)
}

type httpProbe struct{ allowPrivate bool }

func (p httpProbe) Do(ctx context.Context, targetURL string) (*Probe, error) {
	return ProbePage(ctx, NewProbeClient(p.allowPrivate), targetURL)
}

// NewChrome returns a Capturer backed by a headless Chrome instance per call.
func NewChrome(navTimeout, stabilizeTimeout time.Duration, logger *slog.Logger) *Chrome {
	return &Chrome{
		navTimeout:       navTimeout,
		stabilizeTimeout: stabilizeTimeout,
		probeClient:      httpProbe{},
		logger:           logger,
	}
}

// AllowPrivateTargets disables the SSRF guard. Intended for local development
// against loopback servers only.
func (c *Chrome) AllowPrivateTargets() {
	c.allowPrivate = true
	c.probeClient = httpProbe{allowPrivate: true}
}

// Capture loads the page, runs the content-stabilization pass, and only then
// takes the screenshot and DOM snapshot. A screenshot taken before
// stabilization would be an invalid capture, so the ordering here is fixed.
func (c *Chrome) Capture(ctx context.Context, req CaptureRequest) (*model.SiteCapture, error) {
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		req.Viewport.Width = defaultViewportWidth
		req.Viewport.Height = defaultViewportHeight
	}

	if _, err := ValidateTarget(ctx, req.URL, c.allowPrivate); err != nil {
		return nil, err
	}

	// Best effort: some origins refuse non-browser clients, which is fine —
	// the census only tunes wait budgets.
	probe, err := c.probeClient.Do(ctx, req.URL)
	if err != nil {
		c.logger.Warn("preflight probe failed", "url", req.URL, "error", err)
		probe = &Probe{}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	navCtx, cancelNav := context.WithTimeout(browserCtx, c.navTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(req.Viewport.Width), int64(req.Viewport.Height)),
		navigateAndWaitIdle(req.URL, networkIdleWindow),
	); err != nil {
		return nil, renderFailed("Navigation failed or timed out.", err)
	}

	if req.WaitSelector != "" {
		if err := chromedp.Run(navCtx, chromedp.WaitVisible(req.WaitSelector, chromedp.ByQuery)); err != nil {
			return nil, renderFailed(fmt.Sprintf("Selector %q never became visible.", req.WaitSelector), err)
		}
	}

	if err := c.stabilize(browserCtx, req, probe); err != nil {
		return nil, renderFailed("Content stabilization failed.", err)
	}

	screenshotPath, err := c.screenshot(browserCtx, req)
	if err != nil {
		return nil, renderFailed("Screenshot capture failed.", err)
	}

	capture := &model.SiteCapture{
		URL:            req.URL,
		Title:          probe.Title,
		Viewport:       req.Viewport,
		ScreenshotPath: screenshotPath,
	}

	// The snapshot is all-or-nothing: a failure in any extraction step fails
	// the capture rather than returning a partial tree.
	if err := c.snapshot(browserCtx, capture); err != nil {
		return nil, renderFailed("DOM extraction failed.", err)
	}

	return capture, nil
}

func (c *Chrome) screenshot(ctx context.Context, req CaptureRequest) (string, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", err
	}

	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if req.FullPage {
		action = chromedp.FullScreenshot(&buf, screenshotQuality)
	}
	if err := chromedp.Run(ctx, action); err != nil {
		return "", err
	}

	path := filepath.Join(req.OutputDir, "site_screenshot.png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// navigateAndWaitIdle navigates and then waits until no network request has
// been in flight for the idle window. Listeners are installed before the
// navigation starts so early requests are not missed.
func navigateAndWaitIdle(targetURL string, idle time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var mu sync.Mutex
		inflight := make(map[network.RequestID]struct{})
		activity := make(chan struct{}, 1)
		ping := func() {
			select {
			case activity <- struct{}{}:
			default:
			}
		}

		chromedp.ListenTarget(ctx, func(ev any) {
			switch e := ev.(type) {
			case *network.EventRequestWillBeSent:
				mu.Lock()
				inflight[e.RequestID] = struct{}{}
				mu.Unlock()
				ping()
			case *network.EventLoadingFinished:
				mu.Lock()
				delete(inflight, e.RequestID)
				mu.Unlock()
				ping()
			case *network.EventLoadingFailed:
				mu.Lock()
				delete(inflight, e.RequestID)
				mu.Unlock()
				ping()
			}
		})

		if err := chromedp.Navigate(targetURL).Do(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(idle)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-activity:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(idle)
			case <-timer.C:
				mu.Lock()
				pending := len(inflight)
				mu.Unlock()
				if pending == 0 {
					return nil
				}
				timer.Reset(idle)
			}
		}
	}
}

func renderFailed(message string, cause error) error {
	var appErr *errs.AppError
	if errors.As(cause, &appErr) {
		return cause
	}
	return &errs.AppError{
		Kind:    errs.RenderFailed,
		Message: message,
		Cause:   cause,
	}
}
