package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pixelproof/design-diff-tool/internal/compare"
	"github.com/pixelproof/design-diff-tool/internal/figma"
	"github.com/pixelproof/design-diff-tool/internal/job"
	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/config"
	"github.com/pixelproof/design-diff-tool/internal/platform/logger"
	"github.com/pixelproof/design-diff-tool/internal/renderer"
)

type compareFlags struct {
	designURL     string
	token         string
	nodeID        string
	siteURL       string
	waitSelector  string
	viewportsFile string
	outputDir     string
	allowPrivate  bool
	refresh       bool
	timeout       time.Duration
}

// viewportsFile is the YAML shape of --viewports.
type viewportsFile struct {
	Viewports []model.Viewport `yaml:"viewports"`
}

func newCompareCmd() *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run one design-vs-site comparison and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompare(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.designURL, "figma-url", "", "design file URL (required)")
	cmd.Flags().StringVar(&flags.token, "token", os.Getenv("FIGMA_TOKEN"), "design API token (defaults to $FIGMA_TOKEN)")
	cmd.Flags().StringVar(&flags.nodeID, "node", "", "design node id to compare (defaults to the document root)")
	cmd.Flags().StringVar(&flags.siteURL, "site-url", "", "rendered page URL (required)")
	cmd.Flags().StringVar(&flags.waitSelector, "wait-selector", "", "CSS selector that must be visible before capture")
	cmd.Flags().StringVar(&flags.viewportsFile, "viewports", "", "YAML file listing viewports for a responsive comparison")
	cmd.Flags().StringVar(&flags.outputDir, "output", "", "artifact directory (defaults to OUTPUT_DIR)")
	cmd.Flags().BoolVar(&flags.allowPrivate, "allow-private", false, "allow capturing pages on private addresses")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "bypass the design API cache for this run")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "overall job timeout")
	_ = cmd.MarkFlagRequired("figma-url")
	_ = cmd.MarkFlagRequired("site-url")

	return cmd
}

func runCompare(ctx context.Context, flags compareFlags) error {
	if flags.token == "" {
		return errors.New("a design API token is required (--token or $FIGMA_TOKEN)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.outputDir != "" {
		cfg.OutputDir = flags.outputDir
	}

	viewports, err := loadViewports(flags.viewportsFile)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)

	client := figma.NewClient(cfg.FigmaAPIBaseURL, figma.NewCache(cfg.FigmaCacheTTL), cfg.FigmaMaxRetries, log)
	extractor := figma.NewExtractor(client, cfg.FigmaExportScale, log)

	capturer := renderer.NewChrome(cfg.BrowserNavTimeout, cfg.StabilizeTimeout, log)
	if flags.allowPrivate {
		capturer.AllowPrivateTargets()
	}

	opts := compare.DefaultOptions()
	opts.ColorTolerance = cfg.ColorTolerance
	opts.SpacingTolerance = cfg.SpacingTolerance
	opts.DimensionTolerance = cfg.DimensionTolerance

	store := job.NewStore(cfg.JobRetention)
	orchestrator := job.NewOrchestrator(store, extractor, capturer, compare.New(opts, log),
		cfg.OutputDir, cfg.MaxConcurrentViewports, log)

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	id := uuid.NewString()
	store.Create(id)

	progress, err := store.Subscribe(id)
	if err != nil {
		return err
	}
	go func() {
		for update := range progress {
			if update.Status == model.JobProcessing {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s %s\n", update.Percent, update.Phase, update.Message)
			}
		}
	}()

	orchestrator.Run(ctx, job.Request{
		JobID:        id,
		DesignURL:    flags.designURL,
		Token:        flags.token,
		NodeID:       flags.nodeID,
		SiteURL:      flags.siteURL,
		WaitSelector: flags.waitSelector,
		Viewports:    viewports,
		Refresh:      flags.refresh,
	})

	finished, err := store.Get(id)
	if err != nil {
		return err
	}
	if finished.Status == model.JobFailed {
		return errors.New(finished.Error)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if finished.Responsive != nil {
		return enc.Encode(finished.Responsive)
	}
	return enc.Encode(finished.Result)
}

func loadViewports(path string) ([]model.Viewport, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("viewports file: %w", err)
	}

	var parsed viewportsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("viewports file: %w", err)
	}
	for _, vp := range parsed.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			return nil, fmt.Errorf("viewports file: %q needs a positive width and height", vp.Name)
		}
	}
	return parsed.Viewports, nil
}
