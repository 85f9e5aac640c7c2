package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pixelproof/design-diff-tool/internal/compare"
	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/renderer"
	"github.com/pixelproof/design-diff-tool/internal/visual"
)

// visualDiffImage is swappable in tests that run without real screenshots.
var visualDiffImage = visual.SideBySide

// Phase completion percentages. Percent moves to the value of a phase when
// that phase finishes.
const (
	pctInitialization = 10
	pctExtraction     = 50
	pctRendering      = 75
	pctComparison     = 90
	pctPersistence    = 100
)

// DesignExtractor pulls design tokens and image exports for a design URL.
// Invalidate drops any cached API responses for the URL's file.
type DesignExtractor interface {
	ExtractFromURL(ctx context.Context, designURL, token, nodeID, outputDir string) (*model.DesignExtract, error)
	Invalidate(designURL string) error
}

// Comparer produces the difference report for one extract/capture pair.
type Comparer interface {
	Compare(in compare.Inputs) (*compare.Result, error)
}

// Request is one accepted comparison job.
type Request struct {
	JobID     string
	DesignURL string
	// Token is the design API bearer credential supplied by the caller.
	Token  string
	NodeID string
	// SiteURL is the rendered page to compare against.
	SiteURL      string
	WaitSelector string
	// Viewports selects responsive mode when it has more than one entry.
	// Empty means a single default-viewport comparison.
	Viewports []model.Viewport
	// Refresh purges cached design API responses for the file before
	// extraction.
	Refresh bool
}

// Orchestrator sequences extraction, rendering, and comparison for a job and
// owns every state transition of that job.
type Orchestrator struct {
	store         *Store
	extractor     DesignExtractor
	capturer      renderer.Capturer
	comparer      Comparer
	outputDir     string
	maxConcurrent int
	logger        *slog.Logger
}

func NewOrchestrator(store *Store, extractor DesignExtractor, capturer renderer.Capturer,
	comparer Comparer, outputDir string, maxConcurrent int, logger *slog.Logger) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		store:         store,
		extractor:     extractor,
		capturer:      capturer,
		comparer:      comparer,
		outputDir:     outputDir,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Run executes the job to a terminal state. Any phase error fails the job
// with the error message preserved verbatim and no partial result attached.
func (o *Orchestrator) Run(ctx context.Context, req Request) {
	jobDir := filepath.Join(o.outputDir, req.JobID)

	o.store.advance(req.JobID, 0, model.PhaseInitialization, "Preparing workspace.")
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		o.failJob(req.JobID, err)
		return
	}
	o.store.advance(req.JobID, pctInitialization, model.PhaseInitialization, "Workspace ready.")

	if req.Refresh {
		if err := o.extractor.Invalidate(req.DesignURL); err != nil {
			o.failJob(req.JobID, err)
			return
		}
	}

	o.store.advance(req.JobID, pctInitialization, model.PhaseExtraction, "Extracting design tokens.")
	extract, err := o.extractor.ExtractFromURL(ctx, req.DesignURL, req.Token, req.NodeID, jobDir)
	if err != nil {
		o.failJob(req.JobID, err)
		return
	}
	o.store.advance(req.JobID, pctExtraction, model.PhaseExtraction,
		fmt.Sprintf("Extracted %d design tokens.", len(extract.Tokens)))

	if len(req.Viewports) > 1 {
		o.runResponsive(ctx, req, extract, jobDir)
		return
	}

	var viewport model.Viewport
	if len(req.Viewports) == 1 {
		viewport = req.Viewports[0]
	}

	result, err := o.compareViewport(ctx, req, extract, viewport, jobDir)
	if err != nil {
		o.failJob(req.JobID, err)
		return
	}
	o.store.advance(req.JobID, pctComparison, model.PhaseComparison, "Comparison finished.")

	report := &model.DiffReport{
		JobID:          req.JobID,
		Status:         string(model.JobCompleted),
		Summary:        result.Summary,
		Differences:    result.Differences,
		DesignImageURL: result.DesignImageURL,
		SiteImageURL:   result.SiteImageURL,
		VisualDiffURL:  result.VisualDiffURL,
	}

	o.store.advance(req.JobID, pctComparison, model.PhasePersistence, "Writing report.")
	if err := writeReport(jobDir, report); err != nil {
		o.failJob(req.JobID, err)
		return
	}

	o.store.complete(req.JobID, report, nil)
}

// viewportOutcome is one viewport's comparison plus its artifact paths.
type viewportOutcome struct {
	Summary        model.ComparisonSummary
	Differences    []model.Difference
	DesignImageURL string
	SiteImageURL   string
	VisualDiffURL  string
}

// compareViewport renders the site at one viewport and compares it against
// the shared design extract.
func (o *Orchestrator) compareViewport(ctx context.Context, req Request,
	extract *model.DesignExtract, viewport model.Viewport, dir string) (*viewportOutcome, error) {

	o.store.advance(req.JobID, pctExtraction, model.PhaseRendering,
		renderMessage(viewport))

	capture, err := o.capturer.Capture(ctx, renderer.CaptureRequest{
		URL:          req.SiteURL,
		Viewport:     viewport,
		WaitSelector: req.WaitSelector,
		FullPage:     true,
		OutputDir:    dir,
	})
	if err != nil {
		return nil, err
	}
	o.store.advance(req.JobID, pctRendering, model.PhaseRendering, "Page captured.")

	o.store.advance(req.JobID, pctRendering, model.PhaseComparison, "Comparing design against capture.")

	designImage := firstExport(extract)
	result, err := o.comparer.Compare(compare.Inputs{
		Design:          extract,
		Site:            capture,
		DesignImagePath: designImage,
		SiteImagePath:   capture.ScreenshotPath,
	})
	if err != nil {
		return nil, err
	}

	outcome := &viewportOutcome{
		Summary:        result.Summary,
		Differences:    result.Differences,
		DesignImageURL: designImage,
		SiteImageURL:   capture.ScreenshotPath,
	}

	if designImage != "" && capture.ScreenshotPath != "" && result.Visual != nil {
		diffPath := filepath.Join(dir, "visual_diff.png")
		if err := visualDiffImage(designImage, capture.ScreenshotPath, diffPath); err != nil {
			o.logger.Warn("visual diff image generation failed", "job_id", req.JobID, "error", err)
		} else {
			outcome.VisualDiffURL = diffPath
		}
	}

	return outcome, nil
}

// runResponsive fans rendering+comparison out per viewport after the single
// shared extraction. The first failure cancels the remaining viewports and
// fails the whole job.
func (o *Orchestrator) runResponsive(ctx context.Context, req Request,
	extract *model.DesignExtract, jobDir string) {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.store.advance(req.JobID, pctExtraction, model.PhaseRendering,
		fmt.Sprintf("Rendering %d viewports.", len(req.Viewports)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, o.maxConcurrent)
	outcomes := make([]*viewportOutcome, len(req.Viewports))

	for i, vp := range req.Viewports {
		wg.Add(1)
		go func(i int, vp model.Viewport) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}

			dir := filepath.Join(jobDir, viewportDirName(vp, i))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				recordErr(&mu, &firstErr, err, cancel)
				return
			}

			outcome, err := o.compareViewport(ctx, req, extract, vp, dir)
			if err != nil {
				recordErr(&mu, &firstErr, err, cancel)
				return
			}
			outcomes[i] = outcome
		}(i, vp)
	}
	wg.Wait()

	if firstErr != nil {
		o.failJob(req.JobID, firstErr)
		return
	}
	if err := ctx.Err(); err != nil {
		o.failJob(req.JobID, err)
		return
	}

	report := &model.ResponsiveReport{
		JobID:  req.JobID,
		Status: string(model.JobCompleted),
	}
	var scoreSum float64
	for i, outcome := range outcomes {
		report.ViewportResults = append(report.ViewportResults, model.ViewportResult{
			Viewport:       req.Viewports[i],
			Summary:        outcome.Summary,
			Differences:    outcome.Differences,
			DesignImageURL: outcome.DesignImageURL,
			SiteImageURL:   outcome.SiteImageURL,
			VisualDiffURL:  outcome.VisualDiffURL,
		})
		scoreSum += outcome.Summary.MatchScore
		report.TotalDifferences += outcome.Summary.TotalDifferences
	}
	report.OverallMatchScore = round1(scoreSum / float64(len(outcomes)))

	o.store.advance(req.JobID, pctComparison, model.PhasePersistence, "Writing report.")
	if err := writeReport(jobDir, report); err != nil {
		o.failJob(req.JobID, err)
		return
	}

	o.store.complete(req.JobID, nil, report)
}

func recordErr(mu *sync.Mutex, dst *error, err error, cancel context.CancelFunc) {
	mu.Lock()
	if *dst == nil {
		*dst = err
	}
	mu.Unlock()
	cancel()
}

func (o *Orchestrator) failJob(id string, err error) {
	o.logger.Error("job failed", "job_id", id, "error", err)
	o.store.fail(id, err.Error())
}

// writeReport persists the report JSON inside the job directory.
func writeReport(dir string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644)
}

// firstExport returns the design image export to use for the visual pass.
// Exports are keyed by node id; any one of them is the rendered root.
func firstExport(extract *model.DesignExtract) string {
	if len(extract.ImageExports) == 0 {
		return ""
	}
	if len(extract.Tokens) > 0 {
		if path, ok := extract.ImageExports[extract.Tokens[0].NodeID]; ok {
			return path
		}
	}
	keys := make([]string, 0, len(extract.ImageExports))
	for k := range extract.ImageExports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return extract.ImageExports[keys[0]]
}

func renderMessage(vp model.Viewport) string {
	if vp.Width <= 0 {
		return "Rendering page."
	}
	return fmt.Sprintf("Rendering page at %dx%d.", vp.Width, vp.Height)
}

func viewportDirName(vp model.Viewport, i int) string {
	if vp.Name != "" {
		return vp.Name
	}
	if vp.Width > 0 {
		return fmt.Sprintf("%dx%d", vp.Width, vp.Height)
	}
	return fmt.Sprintf("viewport_%d", i)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
