package compare

// Options carries the comparison tolerances and the score weighting. The
// weighting constants are policy, not derivation, so they are configurable
// rather than baked in.
type Options struct {
	// ColorTolerance is the maximum color delta, as a percentage of the
	// black-to-white perceptual distance, accepted without a difference.
	ColorTolerance float64
	// SpacingTolerance is the maximum gap spread, in pixels, accepted across
	// a run of sibling design elements.
	SpacingTolerance float64
	// DimensionTolerance is the maximum root-frame width delta, in pixels,
	// accepted against the site viewport.
	DimensionTolerance float64

	// VisualWeight scales the visual score's contribution to the match score.
	VisualWeight float64
	// StructuralPoints is the ceiling on the structural contribution.
	StructuralPoints float64
	// Per-severity penalty subtracted from StructuralPoints.
	CriticalPenalty float64
	WarningPenalty  float64
	InfoPenalty     float64
}

// DefaultOptions returns the standard tolerances and score weighting.
func DefaultOptions() Options {
	return Options{
		ColorTolerance:     5,
		SpacingTolerance:   2,
		DimensionTolerance: 2,
		VisualWeight:       0.6,
		StructuralPoints:   40,
		CriticalPenalty:    3,
		WarningPenalty:     1.5,
		InfoPenalty:        0.5,
	}
}
