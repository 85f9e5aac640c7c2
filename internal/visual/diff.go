package visual

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	separatorWidth = 4
	labelBandH     = 16
)

var (
	separatorColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	labelBandColor = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	labelTextColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// SideBySide writes a labeled side-by-side composite of the two screenshots
// for manual review of a reported visual difference.
func SideBySide(designPath, sitePath, outPath string) error {
	a, err := loadImage(designPath)
	if err != nil {
		return err
	}
	b, err := loadImage(sitePath)
	if err != nil {
		return err
	}
	a, b = normalizeSizes(a, b)

	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, w*2+separatorWidth, h+labelBandH))

	draw.Draw(out, image.Rect(0, 0, out.Bounds().Dx(), labelBandH),
		image.NewUniform(labelBandColor), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(w, 0, w+separatorWidth, out.Bounds().Dy()),
		image.NewUniform(separatorColor), image.Point{}, draw.Src)

	draw.Draw(out, image.Rect(0, labelBandH, w, labelBandH+h), a, a.Bounds().Min, draw.Src)
	draw.Draw(out, image.Rect(w+separatorWidth, labelBandH, w*2+separatorWidth, labelBandH+h),
		b, b.Bounds().Min, draw.Src)

	drawLabel(out, 6, "Design")
	drawLabel(out, w+separatorWidth+6, "Website")

	return writePNG(outPath, out)
}

func drawLabel(dst *image.RGBA, x int, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelTextColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, labelBandH-4),
	}
	d.DrawString(text)
}
