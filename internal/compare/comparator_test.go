package compare

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelproof/design-diff-tool/internal/model"
	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
	"github.com/pixelproof/design-diff-tool/internal/visual"
)

func testComparator(similarity func(string, string) (*visual.Similarity, error)) *Comparator {
	c := New(DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if similarity != nil {
		c.similarity = similarity
	}
	return c
}

func designWithFills(colors ...string) *model.DesignExtract {
	fills := make([]model.Fill, len(colors))
	for i, hex := range colors {
		fills[i] = model.Fill{Type: "SOLID", ColorHex: hex, Opacity: 1}
	}
	return &model.DesignExtract{
		FileKey: "abc123",
		Tokens: []model.DesignToken{
			{NodeID: "0:1", Kind: "FRAME", Name: "Page", Bounds: &model.Bounds{Width: 1920, Height: 1080}},
			{NodeID: "1:2", Kind: "RECTANGLE", Name: "Hero", Fills: fills},
		},
	}
}

func siteWithColors(colors ...string) *model.SiteCapture {
	return &model.SiteCapture{
		URL:      "https://example.com",
		Viewport: model.Viewport{Width: 1920, Height: 1080},
		Colors:   colors,
	}
}

func diffsOfType(diffs []model.Difference, t model.DifferenceType) []model.Difference {
	var out []model.Difference
	for _, d := range diffs {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

func TestColorPass_NearMatchWithinTolerance(t *testing.T) {
	c := testComparator(nil)

	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors("#7b3aea"),
	})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffColor))
}

func TestColorPass_FarMismatchIsCritical(t *testing.T) {
	c := testComparator(nil)

	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors("#10b981"),
	})
	require.NoError(t, err)

	colorDiffs := diffsOfType(res.Differences, model.DiffColor)
	require.Len(t, colorDiffs, 1)
	d := colorDiffs[0]
	assert.Equal(t, model.SeverityCritical, d.Severity)
	assert.Equal(t, "#7c3aed", d.DesignValue)
	assert.Equal(t, "#10b981", d.SiteValue)
	assert.NotEmpty(t, d.Delta)
	assert.NotEmpty(t, d.ID)
}

func TestColorPass_SmallDeltaIsWarning(t *testing.T) {
	c := testComparator(nil)

	// ~6% delta: beyond the default tolerance of 5 but under the critical
	// threshold of 10.
	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors("#7c55ed"),
	})
	require.NoError(t, err)

	colorDiffs := diffsOfType(res.Differences, model.DiffColor)
	require.Len(t, colorDiffs, 1)
	assert.Equal(t, model.SeverityWarning, colorDiffs[0].Severity)
}

func TestColorPass_EmptySiteColors(t *testing.T) {
	c := testComparator(nil)

	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors(),
	})
	require.NoError(t, err)

	colorDiffs := diffsOfType(res.Differences, model.DiffColor)
	require.Len(t, colorDiffs, 1)
	assert.Equal(t, model.SeverityCritical, colorDiffs[0].Severity)
}

func TestTypographyPass_MissingFamilyIsCritical(t *testing.T) {
	c := testComparator(nil)

	design := designWithFills()
	design.Tokens = append(design.Tokens, model.DesignToken{
		NodeID: "1:3", Kind: "TEXT", Name: "Headline",
		Typography: &model.Typography{FontFamily: "Inter", FontSize: 48, FontWeight: 700},
	})
	site := siteWithColors()
	site.Fonts = []model.FontUsage{{Family: "Roboto", Size: "16px", Weight: "400", Count: 12}}

	res, err := c.Compare(Inputs{Design: design, Site: site})
	require.NoError(t, err)

	typoDiffs := diffsOfType(res.Differences, model.DiffTypography)
	require.Len(t, typoDiffs, 1)
	assert.Equal(t, model.SeverityCritical, typoDiffs[0].Severity)
	assert.Equal(t, "Inter", typoDiffs[0].DesignValue)
}

func TestTypographyPass_PresentFamilyIgnoresCaseAndQuotes(t *testing.T) {
	c := testComparator(nil)

	design := designWithFills()
	design.Tokens = append(design.Tokens, model.DesignToken{
		NodeID: "1:3", Kind: "TEXT",
		Typography: &model.Typography{FontFamily: "Inter"},
	})
	site := siteWithColors()
	site.Fonts = []model.FontUsage{{Family: `"inter"`, Size: "16px", Weight: "400", Count: 3}}

	res, err := c.Compare(Inputs{Design: design, Site: site})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffTypography))
}

func TestLayoutPass_UnevenGaps(t *testing.T) {
	c := testComparator(nil)

	design := &model.DesignExtract{Tokens: []model.DesignToken{
		{NodeID: "0:1", Kind: "FRAME", Bounds: &model.Bounds{Width: 1920, Height: 1080}},
		{NodeID: "1:1", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 0, Height: 100, Width: 400}},
		{NodeID: "1:2", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 120, Height: 100, Width: 400}},
		{NodeID: "1:3", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 260, Height: 100, Width: 400}},
	}}

	res, err := c.Compare(Inputs{Design: design, Site: siteWithColors()})
	require.NoError(t, err)

	// Gaps are 20px and 40px: the 20px spread exceeds the 2px tolerance.
	spacing := diffsOfType(res.Differences, model.DiffSpacing)
	require.Len(t, spacing, 1)
	assert.Equal(t, model.SeverityInfo, spacing[0].Severity)
	assert.Equal(t, "20px", spacing[0].Delta)
}

func TestLayoutPass_ConsistentGaps(t *testing.T) {
	c := testComparator(nil)

	design := &model.DesignExtract{Tokens: []model.DesignToken{
		{NodeID: "0:1", Kind: "FRAME", Bounds: &model.Bounds{Width: 1920, Height: 1080}},
		{NodeID: "1:1", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 0, Height: 100, Width: 400}},
		{NodeID: "1:2", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 120, Height: 100, Width: 400}},
		{NodeID: "1:3", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 240, Height: 100, Width: 400}},
	}}

	res, err := c.Compare(Inputs{Design: design, Site: siteWithColors()})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffSpacing))
}

func TestLayoutPass_FewerThanThreeElements(t *testing.T) {
	c := testComparator(nil)

	design := &model.DesignExtract{Tokens: []model.DesignToken{
		{NodeID: "0:1", Kind: "FRAME", Bounds: &model.Bounds{Width: 1920, Height: 1080}},
		{NodeID: "1:1", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 0, Height: 100}},
		{NodeID: "1:2", Kind: "RECTANGLE", Bounds: &model.Bounds{Y: 500, Height: 100}},
	}}

	res, err := c.Compare(Inputs{Design: design, Site: siteWithColors()})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffSpacing))
}

func TestDimensionPass(t *testing.T) {
	tests := []struct {
		name          string
		frameWidth    float64
		viewportWidth int
		wantDiff      bool
		wantDelta     string
	}{
		{name: "exact match", frameWidth: 1920, viewportWidth: 1920, wantDiff: false},
		{name: "within tolerance", frameWidth: 1920, viewportWidth: 1921, wantDiff: false},
		{name: "narrow viewport", frameWidth: 1920, viewportWidth: 1366, wantDiff: true, wantDelta: "554px"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testComparator(nil)
			design := &model.DesignExtract{Tokens: []model.DesignToken{
				{NodeID: "0:1", Kind: "FRAME", Bounds: &model.Bounds{Width: tt.frameWidth, Height: 1080}},
			}}
			site := siteWithColors()
			site.Viewport = model.Viewport{Width: tt.viewportWidth, Height: 1080}

			res, err := c.Compare(Inputs{Design: design, Site: site})
			require.NoError(t, err)

			dims := diffsOfType(res.Differences, model.DiffDimension)
			if !tt.wantDiff {
				assert.Empty(t, dims)
				return
			}
			require.Len(t, dims, 1)
			assert.Equal(t, model.SeverityWarning, dims[0].Severity)
			assert.Equal(t, tt.wantDelta, dims[0].Delta)
		})
	}
}

func TestVisualPass_AboveThresholdNoDifference(t *testing.T) {
	c := testComparator(func(_, _ string) (*visual.Similarity, error) {
		return &visual.Similarity{SSIM: 98, MSE: 95, PerceptualHash: 90, Overall: 94.3}, nil
	})

	res, err := c.Compare(Inputs{
		Design:          designWithFills("#7c3aed"),
		Site:            siteWithColors("#7c3aed"),
		DesignImagePath: "design.png",
		SiteImagePath:   "site.png",
	})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffVisual))
	require.NotNil(t, res.Visual)
	assert.Equal(t, 94.3, res.Visual.Overall)
}

func TestVisualPass_BelowThresholdIsWarning(t *testing.T) {
	c := testComparator(func(_, _ string) (*visual.Similarity, error) {
		return &visual.Similarity{SSIM: 98, MSE: 95, PerceptualHash: 40, Overall: 77.7}, nil
	})

	res, err := c.Compare(Inputs{
		Design:          designWithFills("#7c3aed"),
		Site:            siteWithColors("#7c3aed"),
		DesignImagePath: "design.png",
		SiteImagePath:   "site.png",
	})
	require.NoError(t, err)

	visualDiffs := diffsOfType(res.Differences, model.DiffVisual)
	require.Len(t, visualDiffs, 1)
	assert.Equal(t, model.SeverityWarning, visualDiffs[0].Severity)
}

func TestVisualPass_VeryLowScoreIsCritical(t *testing.T) {
	c := testComparator(func(_, _ string) (*visual.Similarity, error) {
		return &visual.Similarity{Overall: 55}, nil
	})

	res, err := c.Compare(Inputs{
		Design:          designWithFills("#7c3aed"),
		Site:            siteWithColors("#7c3aed"),
		DesignImagePath: "design.png",
		SiteImagePath:   "site.png",
	})
	require.NoError(t, err)

	visualDiffs := diffsOfType(res.Differences, model.DiffVisual)
	require.Len(t, visualDiffs, 1)
	assert.Equal(t, model.SeverityCritical, visualDiffs[0].Severity)
}

func TestVisualPass_MissingImagesDegrades(t *testing.T) {
	c := testComparator(func(_, _ string) (*visual.Similarity, error) {
		t.Fatal("similarity must not run without both image paths")
		return nil, nil
	})

	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors("#7c3aed"),
	})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffVisual))
	assert.Nil(t, res.Visual)
	assert.Equal(t, 100.0, res.Summary.MatchScore)
}

func TestVisualPass_UnreadableImageDegrades(t *testing.T) {
	c := testComparator(func(_, _ string) (*visual.Similarity, error) {
		return nil, &errs.AppError{Kind: errs.ComparisonInputMissing, Message: "no image"}
	})

	res, err := c.Compare(Inputs{
		Design:          designWithFills("#7c3aed"),
		Site:            siteWithColors("#7c3aed"),
		DesignImagePath: "design.png",
		SiteImagePath:   "site.png",
	})
	require.NoError(t, err)

	assert.Empty(t, diffsOfType(res.Differences, model.DiffVisual))
	assert.Equal(t, 100.0, res.Summary.MatchScore)
}

func TestSummarize_PerfectMatch(t *testing.T) {
	c := testComparator(nil)

	res, err := c.Compare(Inputs{
		Design: designWithFills("#7c3aed"),
		Site:   siteWithColors("#7c3aed"),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.TotalDifferences)
	assert.Equal(t, 100.0, res.Summary.MatchScore)
}

func TestSummarize_PenaltiesAndClamping(t *testing.T) {
	c := testComparator(nil)

	diffs := []model.Difference{
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityWarning},
		{Severity: model.SeverityInfo},
	}

	// 2 critical + 1 warning + 1 info = 6 + 1.5 + 0.5 = 8 penalty points.
	summary := c.summarize(diffs, 100)
	assert.Equal(t, 4, summary.TotalDifferences)
	assert.Equal(t, 2, summary.Critical)
	assert.Equal(t, 1, summary.Warnings)
	assert.Equal(t, 1, summary.Info)
	assert.Equal(t, 92.0, summary.MatchScore)

	// Structural points floor at zero rather than going negative.
	many := make([]model.Difference, 20)
	for i := range many {
		many[i] = model.Difference{Severity: model.SeverityCritical}
	}
	summary = c.summarize(many, 50)
	assert.Equal(t, 30.0, summary.MatchScore)
}

func TestCompare_Deterministic(t *testing.T) {
	design := designWithFills("#ff0000", "#00ff00", "#0000ff")
	design.Tokens = append(design.Tokens, model.DesignToken{
		NodeID: "1:9", Kind: "TEXT",
		Typography: &model.Typography{FontFamily: "Inter"},
	})
	site := siteWithColors("#111111")

	c := testComparator(nil)
	first, err := c.Compare(Inputs{Design: design, Site: site})
	require.NoError(t, err)
	second, err := c.Compare(Inputs{Design: design, Site: site})
	require.NoError(t, err)

	require.Len(t, second.Differences, len(first.Differences))
	for i := range first.Differences {
		a, b := first.Differences[i], second.Differences[i]
		assert.Equal(t, a.Type, b.Type)
		assert.Equal(t, a.Severity, b.Severity)
		assert.Equal(t, a.DesignValue, b.DesignValue)
		assert.Equal(t, a.SiteValue, b.SiteValue)
		assert.Equal(t, a.Delta, b.Delta)
	}
	assert.Equal(t, first.Summary.MatchScore, second.Summary.MatchScore)
}

func TestCompare_NilInputs(t *testing.T) {
	c := testComparator(nil)
	_, err := c.Compare(Inputs{})
	require.Error(t, err)
}
