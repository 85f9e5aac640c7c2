package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	errInvalidPort           = errors.New("config: invalid PORT number")
	errConcurrencyOutOfRange = errors.New("config: MAX_CONCURRENT_VIEWPORTS must be 1-16")
	errToleranceNegative     = errors.New("config: tolerances must be non-negative")
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     string
	LogLevel string

	// OutputDir is the root under which per-job artifacts (screenshots,
	// exports, reports) are written.
	OutputDir string

	// Design API.
	FigmaAPIBaseURL  string
	FigmaCacheTTL    time.Duration
	FigmaMaxRetries  int
	FigmaExportScale int

	// Browser capture.
	BrowserNavTimeout time.Duration
	StabilizeTimeout  time.Duration

	// Comparison tolerances.
	ColorTolerance     float64
	SpacingTolerance   float64
	DimensionTolerance float64

	// Job execution.
	MaxConcurrentViewports int
	JobRetention           time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "ERROR"),
		OutputDir:              getEnv("OUTPUT_DIR", "outputs"),
		FigmaAPIBaseURL:        getEnv("FIGMA_API_BASE_URL", "https://api.figma.com/v1"),
		FigmaCacheTTL:          getEnvAsDuration("FIGMA_CACHE_TTL", 30*time.Minute),
		FigmaMaxRetries:        getEnvAsInt("FIGMA_MAX_RETRIES", 3),
		FigmaExportScale:       getEnvAsInt("FIGMA_EXPORT_SCALE", 2),
		BrowserNavTimeout:      getEnvAsDuration("BROWSER_NAV_TIMEOUT", 30*time.Second),
		StabilizeTimeout:       getEnvAsDuration("STABILIZE_TIMEOUT", 5*time.Second),
		ColorTolerance:         getEnvAsFloat("COLOR_TOLERANCE", 5),
		SpacingTolerance:       getEnvAsFloat("SPACING_TOLERANCE", 2),
		DimensionTolerance:     getEnvAsFloat("DIMENSION_TOLERANCE", 2),
		MaxConcurrentViewports: getEnvAsInt("MAX_CONCURRENT_VIEWPORTS", 2),
		JobRetention:           getEnvAsDuration("JOB_RETENTION", 24*time.Hour),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q", errInvalidPort, c.Port)
	}

	if c.MaxConcurrentViewports < 1 || c.MaxConcurrentViewports > 16 {
		return fmt.Errorf("%w: got %d", errConcurrencyOutOfRange, c.MaxConcurrentViewports)
	}

	if c.ColorTolerance < 0 || c.SpacingTolerance < 0 || c.DimensionTolerance < 0 {
		return errToleranceNegative
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return v
}
