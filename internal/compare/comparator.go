package compare

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
	"github.com/pixelproof/design-diff-tool/internal/visual"
)

const (
	// visualDiffThreshold is the overall visual score below which a visual
	// difference is emitted; below visualCriticalThreshold it is critical.
	visualDiffThreshold     = 90
	visualCriticalThreshold = 70

	// colorCriticalDelta is the delta percentage at or above which a color
	// mismatch is critical rather than a warning.
	colorCriticalDelta = 10
)

// Inputs is everything one comparison consumes. The image paths are optional;
// when either is missing the visual pass degrades to a perfect score.
type Inputs struct {
	Design          *model.DesignExtract
	Site            *model.SiteCapture
	DesignImagePath string
	SiteImagePath   string
}

// Result is the comparator output before it is wrapped into a report.
type Result struct {
	Differences []model.Difference
	Summary     model.ComparisonSummary
	Visual      *visual.Similarity
}

// Comparator runs the comparison passes. It is a pure function of its inputs
// and options; the similarity hook exists so tests can run without image files.
type Comparator struct {
	opts       Options
	similarity func(designPath, sitePath string) (*visual.Similarity, error)
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Comparator {
	return &Comparator{
		opts:       opts,
		similarity: visual.Compare,
		logger:     logger,
	}
}

// Compare runs all passes in fixed order (color, typography, layout,
// dimension, visual) so repeated runs over the same inputs produce the same
// difference list.
func (c *Comparator) Compare(in Inputs) (*Result, error) {
	if in.Design == nil || in.Site == nil {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Both a design extract and a site capture are required.",
		}
	}

	res := &Result{Differences: []model.Difference{}}

	res.Differences = append(res.Differences, c.colorPass(in.Design.Tokens, in.Site.Colors)...)
	res.Differences = append(res.Differences, c.typographyPass(in.Design.Tokens, in.Site.Fonts)...)
	res.Differences = append(res.Differences, c.layoutPass(in.Design.Tokens)...)
	res.Differences = append(res.Differences, c.dimensionPass(in.Design.Tokens, in.Site.Viewport)...)

	visualScore, visualDiffs, sim := c.visualPass(in.DesignImagePath, in.SiteImagePath)
	res.Differences = append(res.Differences, visualDiffs...)
	res.Visual = sim

	res.Summary = c.summarize(res.Differences, visualScore)
	return res, nil
}

// colorPass matches every distinct design fill color against the nearest site
// color by perceptual distance.
func (c *Comparator) colorPass(tokens []model.DesignToken, siteColors []string) []model.Difference {
	designColors := distinctFillColors(tokens)

	var diffs []model.Difference
	for _, hex := range designColors {
		target, ok := parseHex(hex)
		if !ok {
			continue
		}
		nearest, delta, found := nearestColor(target, siteColors)
		if !found {
			diffs = append(diffs, newDifference(model.DiffColor, model.SeverityCritical, hex, "",
				"", fmt.Sprintf("Design color %s does not appear on the site.", hex)))
			continue
		}
		if delta <= c.opts.ColorTolerance {
			continue
		}

		severity := model.SeverityWarning
		if delta >= colorCriticalDelta {
			severity = model.SeverityCritical
		}
		diffs = append(diffs, newDifference(model.DiffColor, severity, hex, nearest,
			formatDelta(delta),
			fmt.Sprintf("Design color %s has no close match on the site; nearest is %s (off by %s).",
				hex, nearest, formatDelta(delta))))
	}
	return diffs
}

// typographyPass flags design font families absent from the site's font
// inventory. Families that are present are not further checked here.
func (c *Comparator) typographyPass(tokens []model.DesignToken, fonts []model.FontUsage) []model.Difference {
	siteFamilies := make(map[string]struct{}, len(fonts))
	for _, f := range fonts {
		siteFamilies[normalizeFamily(f.Family)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var families []string
	for _, tok := range tokens {
		if tok.Typography == nil || tok.Typography.FontFamily == "" {
			continue
		}
		family := tok.Typography.FontFamily
		if _, dup := seen[family]; dup {
			continue
		}
		seen[family] = struct{}{}
		families = append(families, family)
	}
	sort.Strings(families)

	var diffs []model.Difference
	for _, family := range families {
		if _, ok := siteFamilies[normalizeFamily(family)]; ok {
			continue
		}
		diffs = append(diffs, newDifference(model.DiffTypography, model.SeverityCritical,
			family, "", "",
			fmt.Sprintf("Font family %q from the design is not used anywhere on the site.", family)))
	}
	return diffs
}

// layoutPass checks spacing consistency across a run of sibling design
// elements: with three or more elements, the gaps along the dominant axis
// should agree within the spacing tolerance.
func (c *Comparator) layoutPass(tokens []model.DesignToken) []model.Difference {
	var boxes []model.Bounds
	for i, tok := range tokens {
		// The first bounded token is the root frame, not a sibling.
		if i == 0 || tok.Bounds == nil {
			continue
		}
		boxes = append(boxes, *tok.Bounds)
	}
	if len(boxes) < 3 {
		return nil
	}

	gaps := axisGaps(boxes)
	if len(gaps) < 2 {
		return nil
	}

	minGap, maxGap := gaps[0], gaps[0]
	for _, g := range gaps[1:] {
		minGap = math.Min(minGap, g)
		maxGap = math.Max(maxGap, g)
	}
	spread := maxGap - minGap
	if spread <= c.opts.SpacingTolerance {
		return nil
	}

	return []model.Difference{newDifference(model.DiffSpacing, model.SeverityInfo,
		"", "", fmt.Sprintf("%.0fpx", spread),
		fmt.Sprintf("Spacing between design elements is inconsistent: gaps range from %.0fpx to %.0fpx.",
			minGap, maxGap))}
}

// axisGaps sorts boxes along the dominant axis and returns the gaps between
// consecutive elements.
func axisGaps(boxes []model.Bounds) []float64 {
	var minX, maxX, minY, maxY float64 = math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for _, b := range boxes {
		minX = math.Min(minX, b.X)
		maxX = math.Max(maxX, b.X)
		minY = math.Min(minY, b.Y)
		maxY = math.Max(maxY, b.Y)
	}

	vertical := maxY-minY >= maxX-minX
	sorted := make([]model.Bounds, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool {
		if vertical {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		var gap float64
		if vertical {
			gap = sorted[i].Y - (sorted[i-1].Y + sorted[i-1].Height)
		} else {
			gap = sorted[i].X - (sorted[i-1].X + sorted[i-1].Width)
		}
		gaps = append(gaps, gap)
	}
	return gaps
}

// dimensionPass compares the root design frame's width against the rendered
// viewport width.
func (c *Comparator) dimensionPass(tokens []model.DesignToken, viewport model.Viewport) []model.Difference {
	var root *model.Bounds
	for _, tok := range tokens {
		if tok.Bounds != nil {
			root = tok.Bounds
			break
		}
	}
	if root == nil || viewport.Width <= 0 {
		return nil
	}

	delta := math.Abs(root.Width - float64(viewport.Width))
	if delta <= c.opts.DimensionTolerance {
		return nil
	}

	return []model.Difference{newDifference(model.DiffDimension, model.SeverityWarning,
		fmt.Sprintf("%.0fpx", root.Width),
		fmt.Sprintf("%dpx", viewport.Width),
		fmt.Sprintf("%.0fpx", delta),
		fmt.Sprintf("Design frame is %.0fpx wide but the site was rendered at %dpx.",
			root.Width, viewport.Width))}
}

// visualPass scores image similarity when both images exist. Missing or
// unreadable inputs degrade to a perfect score instead of failing.
func (c *Comparator) visualPass(designPath, sitePath string) (float64, []model.Difference, *visual.Similarity) {
	if designPath == "" || sitePath == "" {
		return 100, nil, nil
	}

	sim, err := c.similarity(designPath, sitePath)
	if err != nil {
		var appErr *errs.AppError
		if errors.As(err, &appErr) && appErr.Kind == errs.ComparisonInputMissing {
			c.logger.Warn("visual pass skipped", "error", err)
			return 100, nil, nil
		}
		c.logger.Warn("visual pass failed", "error", err)
		return 100, nil, nil
	}

	if sim.Overall >= visualDiffThreshold {
		return sim.Overall, nil, sim
	}

	severity := model.SeverityWarning
	if sim.Overall < visualCriticalThreshold {
		severity = model.SeverityCritical
	}
	diff := newDifference(model.DiffVisual, severity, "", "",
		formatDelta(100-sim.Overall),
		fmt.Sprintf("Rendered page is only %.1f%% visually similar to the design export.", sim.Overall))

	return sim.Overall, []model.Difference{diff}, sim
}

// summarize counts differences and computes the match score:
// visual weight times the visual score, plus what is left of the structural
// points after per-severity penalties.
func (c *Comparator) summarize(diffs []model.Difference, visualScore float64) model.ComparisonSummary {
	summary := model.ComparisonSummary{TotalDifferences: len(diffs)}
	for _, d := range diffs {
		switch d.Severity {
		case model.SeverityCritical:
			summary.Critical++
		case model.SeverityWarning:
			summary.Warnings++
		case model.SeverityInfo:
			summary.Info++
		}
	}

	penalty := c.opts.CriticalPenalty*float64(summary.Critical) +
		c.opts.WarningPenalty*float64(summary.Warnings) +
		c.opts.InfoPenalty*float64(summary.Info)

	structural := math.Max(0, c.opts.StructuralPoints-penalty)
	score := c.opts.VisualWeight*visualScore + structural
	score = math.Min(100, math.Max(0, score))

	summary.MatchScore = math.Round(score*10) / 10
	return summary
}

// distinctFillColors returns the sorted set of visible fill colors across all
// tokens. Sorting keeps the pass order, and therefore the output, stable.
func distinctFillColors(tokens []model.DesignToken) []string {
	seen := make(map[string]struct{})
	var colors []string
	for _, tok := range tokens {
		for _, fill := range tok.Fills {
			if fill.ColorHex == "" {
				continue
			}
			if _, dup := seen[fill.ColorHex]; dup {
				continue
			}
			seen[fill.ColorHex] = struct{}{}
			colors = append(colors, fill.ColorHex)
		}
	}
	sort.Strings(colors)
	return colors
}

// normalizeFamily makes family comparison insensitive to quoting and case,
// which both vary between design files and computed styles.
func normalizeFamily(family string) string {
	return strings.ToLower(trimQuotes(strings.TrimSpace(family)))
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func newDifference(t model.DifferenceType, sev model.Severity, designValue, siteValue, delta, description string) model.Difference {
	return model.Difference{
		ID:          uuid.NewString(),
		Type:        t,
		Severity:    sev,
		DesignValue: designValue,
		SiteValue:   siteValue,
		Delta:       delta,
		Description: description,
	}
}
