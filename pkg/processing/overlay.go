package processing

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/listing-studio/pkg/types"
)

// Preview styling
var (
	AccentColor = color.NRGBA{255, 204, 0, 255}
	HandleColor = color.NRGBA{255, 255, 255, 255}
)

const (
	// DimFactor is the brightness kept outside the crop area.
	DimFactor = 0.4
	// BorderWidth is the accent border stroke in pixels.
	BorderWidth = 3
)

// PreviewSize returns the size of a preview of a w x h image at width.
func PreviewSize(w, h, width int) (int, int) {
	if width <= 0 || w <= 0 || h <= 0 {
		return 0, 0
	}
	ph := int(math.Round(float64(h) * float64(width) / float64(w)))
	if ph < 1 {
		ph = 1
	}
	return width, ph
}

// CropPreview renders img scaled to width with everything outside area
// dimmed and an accent border around it.
func CropPreview(img image.Image, area types.CropArea, width int) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	b := img.Bounds()
	pw, ph := PreviewSize(b.Dx(), b.Dy(), width)
	if pw == 0 {
		return nil, fmt.Errorf("%w: preview width %d", types.ErrInvalidArgument, width)
	}

	out := imaging.Resize(img, pw, ph, imaging.Linear)
	scale := float64(pw) / float64(b.Dx())
	r := image.Rect(
		int(math.Round(area.X*scale)),
		int(math.Round(area.Y*scale)),
		int(math.Round((area.X+area.Width)*scale)),
		int(math.Round((area.Y+area.Height)*scale)),
	).Intersect(out.Bounds())

	dimOutside(out, r, DimFactor)
	if !r.Empty() {
		drawBox(out, r, AccentColor, BorderWidth)
	}
	return out, nil
}

// QuadOverlay draws the closed outline through pts and a square handle at
// each point.
func QuadOverlay(img *image.NRGBA, pts [4]types.Point, stroke, handle int) {
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		drawLine(img, a, b, AccentColor, stroke)
	}
	for _, p := range pts {
		x, y := int(math.Round(p.X)), int(math.Round(p.Y))
		h := handle / 2
		fillRect(img, image.Rect(x-h-1, y-h-1, x+h+2, y+h+2), AccentColor)
		fillRect(img, image.Rect(x-h, y-h, x+h+1, y+h+1), HandleColor)
	}
}

func dimOutside(img *image.NRGBA, keep image.Rectangle, factor float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if !image.Pt(x, y).In(keep) {
				img.Pix[i+0] = uint8(float64(img.Pix[i+0])*factor + 0.5)
				img.Pix[i+1] = uint8(float64(img.Pix[i+1])*factor + 0.5)
				img.Pix[i+2] = uint8(float64(img.Pix[i+2])*factor + 0.5)
			}
			i += 4
		}
	}
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

// drawLine stamps a stroke x stroke square along a to b.
func drawLine(img *image.NRGBA, a, b types.Point, c color.NRGBA, stroke int) {
	if stroke < 1 {
		stroke = 1
	}
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps < 1 {
		steps = 1
	}
	half := stroke / 2
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a.X + (b.X-a.X)*t))
		y := int(math.Round(a.Y + (b.Y-a.Y)*t))
		fillRect(img, image.Rect(x-half, y-half, x-half+stroke, y-half+stroke), c)
	}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		drawHLine(img, y, r.Min.X, r.Max.X, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	if x0 >= x1 {
		return
	}
	i := img.PixOffset(x0, y)
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	if y0 >= y1 {
		return
	}
	i := img.PixOffset(x, y0)
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
