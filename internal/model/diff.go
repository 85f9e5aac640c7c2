package model

// DifferenceType is the closed set of mismatch categories the comparator emits.
type DifferenceType string

const (
	DiffColor          DifferenceType = "color"
	DiffTypography     DifferenceType = "typography"
	DiffSpacing        DifferenceType = "spacing"
	DiffDimension      DifferenceType = "dimension"
	DiffLayout         DifferenceType = "layout"
	DiffVisual         DifferenceType = "visual"
	DiffMissingElement DifferenceType = "missing_element"
	DiffExtraElement   DifferenceType = "extra_element"
)

// Severity ranks how much a difference matters.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Difference is one detected deviation between the design and the site.
// Immutable after creation.
type Difference struct {
	ID          string         `json:"id"`
	Type        DifferenceType `json:"type"`
	Severity    Severity       `json:"severity"`
	DesignValue string         `json:"design_value,omitempty"`
	SiteValue   string         `json:"site_value,omitempty"`
	Delta       string         `json:"delta,omitempty"`
	Description string         `json:"description"`
}

// ComparisonSummary aggregates a difference list into counts and a score.
type ComparisonSummary struct {
	TotalDifferences int     `json:"total"`
	Critical         int     `json:"critical"`
	Warnings         int     `json:"warning"`
	Info             int     `json:"info"`
	MatchScore       float64 `json:"match_score"`
}

// DiffReport is the full result of one design-vs-site comparison.
type DiffReport struct {
	JobID          string            `json:"job_id"`
	Status         string            `json:"status"`
	Summary        ComparisonSummary `json:"summary"`
	Differences    []Difference      `json:"differences"`
	DesignImageURL string            `json:"design_image_url,omitempty"`
	SiteImageURL   string            `json:"site_image_url,omitempty"`
	VisualDiffURL  string            `json:"visual_diff_url,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// ViewportResult is one viewport's outcome inside a responsive comparison.
type ViewportResult struct {
	Viewport       Viewport          `json:"viewport"`
	Summary        ComparisonSummary `json:"summary"`
	Differences    []Difference      `json:"differences"`
	DesignImageURL string            `json:"design_image_url,omitempty"`
	SiteImageURL   string            `json:"site_image_url,omitempty"`
	VisualDiffURL  string            `json:"visual_diff_url,omitempty"`
}

// ResponsiveReport merges the per-viewport results of a multi-viewport job.
// The overall score is the arithmetic mean of per-viewport scores and the
// overall difference count is their sum.
type ResponsiveReport struct {
	JobID             string           `json:"job_id"`
	Status            string           `json:"status"`
	ViewportResults   []ViewportResult `json:"viewport_results"`
	OverallMatchScore float64          `json:"overall_match_score"`
	TotalDifferences  int              `json:"total_differences"`
	Error             string           `json:"error,omitempty"`
}

// ErrorResponse is the JSON shape returned on HTTP failure.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}
