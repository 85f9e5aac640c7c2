package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixelproof/design-diff-tool/internal/api"
	"github.com/pixelproof/design-diff-tool/internal/compare"
	"github.com/pixelproof/design-diff-tool/internal/figma"
	"github.com/pixelproof/design-diff-tool/internal/job"
	"github.com/pixelproof/design-diff-tool/internal/platform/config"
	"github.com/pixelproof/design-diff-tool/internal/platform/logger"
	"github.com/pixelproof/design-diff-tool/internal/platform/middleware"
	"github.com/pixelproof/design-diff-tool/internal/renderer"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("design diff service starting", "port", cfg.Port)

	client := figma.NewClient(cfg.FigmaAPIBaseURL, figma.NewCache(cfg.FigmaCacheTTL), cfg.FigmaMaxRetries, log)
	extractor := figma.NewExtractor(client, cfg.FigmaExportScale, log)
	capturer := renderer.NewChrome(cfg.BrowserNavTimeout, cfg.StabilizeTimeout, log)

	opts := compare.DefaultOptions()
	opts.ColorTolerance = cfg.ColorTolerance
	opts.SpacingTolerance = cfg.SpacingTolerance
	opts.DimensionTolerance = cfg.DimensionTolerance
	comparer := compare.New(opts, log)

	store := job.NewStore(cfg.JobRetention)
	orchestrator := job.NewOrchestrator(store, extractor, capturer, comparer,
		cfg.OutputDir, cfg.MaxConcurrentViewports, log)

	service := api.NewService(store, orchestrator, log)
	transport := api.NewTransport(service, log)

	mux := http.NewServeMux()
	transport.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.RequestID(middleware.Logging(log)(mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expired jobs are swept on a fixed cadence for the life of the process.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := store.Sweep(); n > 0 {
					log.Info("expired jobs removed", "count", n)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}
}
