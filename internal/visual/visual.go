package visual

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"

	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

// Similarity holds the per-metric and combined scores for one image pair.
// All values are percentages in [0, 100].
type Similarity struct {
	SSIM           float64 `json:"ssim"`
	MSE            float64 `json:"mse_score"`
	PerceptualHash float64 `json:"phash"`
	Overall        float64 `json:"overall"`
}

// SSIM stabilization constants for 8-bit images.
const (
	ssimK1 = 0.01
	ssimK2 = 0.03
	ssimL  = 255.0

	hashBits = 64
)

// Compare loads two screenshots and scores their similarity on three axes:
// structural similarity, inverse mean squared error, and perceptual hash
// distance. Differing dimensions are normalized to the smaller bounding box
// before scoring.
func Compare(designPath, sitePath string) (*Similarity, error) {
	a, err := loadImage(designPath)
	if err != nil {
		return nil, err
	}
	b, err := loadImage(sitePath)
	if err != nil {
		return nil, err
	}

	a, b = normalizeSizes(a, b)
	ga, gb := grayscale(a), grayscale(b)

	sim := &Similarity{
		SSIM: ssimScore(ga, gb),
		MSE:  mseScore(ga, gb),
	}

	phash, err := hashScore(a, b)
	if err != nil {
		return nil, err
	}
	sim.PerceptualHash = phash

	sim.Overall = round1((sim.SSIM + sim.MSE + sim.PerceptualHash) / 3)
	sim.SSIM = round1(sim.SSIM)
	sim.MSE = round1(sim.MSE)
	sim.PerceptualHash = round1(sim.PerceptualHash)

	return sim, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.ComparisonInputMissing,
			Message: fmt.Sprintf("Screenshot %q could not be opened.", path),
			Cause:   err,
		}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.ComparisonInputMissing,
			Message: fmt.Sprintf("Screenshot %q is not a decodable image.", path),
			Cause:   err,
		}
	}
	return img, nil
}

// normalizeSizes scales both images to the smaller shared bounding box so the
// pixel metrics compare the same region.
func normalizeSizes(a, b image.Image) (image.Image, image.Image) {
	aw, ah := a.Bounds().Dx(), a.Bounds().Dy()
	bw, bh := b.Bounds().Dx(), b.Bounds().Dy()
	if aw == bw && ah == bh {
		return a, b
	}

	w, h := min(aw, bw), min(ah, bh)
	return scaleTo(a, w, h), scaleTo(b, w, h)
}

func scaleTo(img image.Image, w, h int) image.Image {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// ssimScore computes the global structural similarity index over the whole
// image and maps it to a percentage.
func ssimScore(a, b *image.Gray) float64 {
	n := float64(a.Bounds().Dx() * a.Bounds().Dy())
	if n == 0 {
		return 0
	}

	var sumA, sumB float64
	forEachPixel(a, b, func(pa, pb float64) {
		sumA += pa
		sumB += pb
	})
	muA, muB := sumA/n, sumB/n

	var varA, varB, cov float64
	forEachPixel(a, b, func(pa, pb float64) {
		da, db := pa-muA, pb-muB
		varA += da * da
		varB += db * db
		cov += da * db
	})
	varA /= n
	varB /= n
	cov /= n

	c1 := (ssimK1 * ssimL) * (ssimK1 * ssimL)
	c2 := (ssimK2 * ssimL) * (ssimK2 * ssimL)

	ssim := ((2*muA*muB + c1) * (2*cov + c2)) /
		((muA*muA + muB*muB + c1) * (varA + varB + c2))

	return clamp(ssim*100, 0, 100)
}

// mseScore maps mean squared error to a percentage; identical images score
// 100 and the score decays linearly with error.
func mseScore(a, b *image.Gray) float64 {
	n := float64(a.Bounds().Dx() * a.Bounds().Dy())
	if n == 0 {
		return 0
	}

	var sum float64
	forEachPixel(a, b, func(pa, pb float64) {
		d := pa - pb
		sum += d * d
	})
	mse := sum / n

	return clamp(100-mse/100, 0, 100)
}

// hashScore compares 64-bit perceptual hashes; each differing bit costs
// 100/64 points.
func hashScore(a, b image.Image) (float64, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, err
	}

	dist, err := ha.Distance(hb)
	if err != nil {
		return 0, err
	}
	return clamp(100-float64(dist)*100/hashBits, 0, 100), nil
}

func forEachPixel(a, b *image.Gray, fn func(pa, pb float64)) {
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			fn(float64(a.GrayAt(x, y).Y), float64(b.GrayAt(x, y).Y))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
