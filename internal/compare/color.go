package compare

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// rgb is a parsed 8-bit color. Alpha is dropped before comparison.
type rgb struct {
	r, g, b float64
}

// maxPerceptualDistance is the perceptual distance between black and white,
// the largest value the metric can produce. Deltas are reported as a
// percentage of it.
var maxPerceptualDistance = perceptualDistance(rgb{0, 0, 0}, rgb{255, 255, 255})

// parseHex accepts #rrggbb and #rrggbbaa (alpha ignored).
func parseHex(s string) (rgb, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "#")
	if len(s) != 6 && len(s) != 8 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(s[:6], 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{
		r: float64(v >> 16 & 0xff),
		g: float64(v >> 8 & 0xff),
		b: float64(v & 0xff),
	}, true
}

// perceptualDistance is a luminance-weighted RGB distance: green differences
// weigh the most, red and blue are weighted by the pair's mean red level.
func perceptualDistance(a, b rgb) float64 {
	rmean := (a.r + b.r) / 2
	dr := a.r - b.r
	dg := a.g - b.g
	db := a.b - b.b
	return math.Sqrt((2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db)
}

// deltaPercent normalizes a perceptual distance to [0, 100].
func deltaPercent(a, b rgb) float64 {
	return perceptualDistance(a, b) / maxPerceptualDistance * 100
}

// nearestColor returns the candidate closest to target and its delta
// percentage. ok is false when candidates is empty or unparseable.
func nearestColor(target rgb, candidates []string) (best string, delta float64, ok bool) {
	delta = math.Inf(1)
	for _, hex := range candidates {
		c, valid := parseHex(hex)
		if !valid {
			continue
		}
		if d := deltaPercent(target, c); d < delta {
			best, delta, ok = hex, d, true
		}
	}
	return best, delta, ok
}

func formatDelta(delta float64) string {
	return fmt.Sprintf("%.1f%%", delta)
}
