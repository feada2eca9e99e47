// Package render rasterizes immutable draw commands onto RGBA canvases.
//
// A Command carries everything a draw needs: the source image, the
// source-to-destination transform, an optional clip polygon and a blend
// mode. Draw keeps no state between calls, so a sequence of commands with
// different clips and blend modes never leaks settings into the next one.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/menta2k/listing-studio/pkg/types"
)

// MaxCanvasPixels bounds the area of a single canvas.
const MaxCanvasPixels = 16384 * 16384

// degenerateEpsilon is the smallest absolute determinant accepted for a transform.
const degenerateEpsilon = 1e-9

// BlendMode selects how a command's pixels combine with the canvas.
type BlendMode int

const (
	// BlendNormal is source-over compositing.
	BlendNormal BlendMode = iota
	// BlendMultiply multiplies source and destination channels.
	BlendMultiply
	// BlendAdd sums premultiplied channels, saturating at opaque. Two clips
	// whose coverages sum to one add up to full coverage along their shared
	// edge.
	BlendAdd
)

func (b BlendMode) String() string {
	switch b {
	case BlendNormal:
		return "normal"
	case BlendMultiply:
		return "multiply"
	case BlendAdd:
		return "add"
	}
	return fmt.Sprintf("blend(%d)", int(b))
}

// Identity is the identity transform.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Command is a single draw of Source onto a canvas.
type Command struct {
	Source image.Image
	// SourceRect restricts sampling to part of Source. Empty means Source.Bounds().
	SourceRect image.Rectangle
	// Transform maps source coordinates to canvas coordinates. The zero value means Identity.
	Transform f64.Aff3
	// Clip is a canvas-space polygon. Fewer than three points means no clip.
	Clip []types.Point
	// Blend defaults to BlendNormal.
	Blend BlendMode
	// Filter defaults to draw.BiLinear.
	Filter draw.Interpolator
}

// NewCanvas allocates a transparent w x h canvas.
func NewCanvas(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: canvas size %dx%d", types.ErrRender, w, h)
	}
	if int64(w)*int64(h) > MaxCanvasPixels {
		return nil, fmt.Errorf("%w: canvas %dx%d exceeds %d pixels", types.ErrRender, w, h, MaxCanvasPixels)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// Determinant returns the determinant of the linear part of m.
func Determinant(m f64.Aff3) float64 {
	return m[0]*m[4] - m[1]*m[3]
}

// RectTransform maps the rectangle sr onto the canvas rectangle at (x, y) with size w x h.
func RectTransform(sr image.Rectangle, x, y, w, h float64) f64.Aff3 {
	sx := w / float64(sr.Dx())
	sy := h / float64(sr.Dy())
	return f64.Aff3{
		sx, 0, x - float64(sr.Min.X)*sx,
		0, sy, y - float64(sr.Min.Y)*sy,
	}
}

// Apply maps a point through m.
func Apply(m f64.Aff3, p types.Point) types.Point {
	return types.Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Draw executes cmd against dst. It returns ErrDegenerateGeometry for a
// non-invertible transform and leaves dst untouched in that case.
func Draw(dst *image.RGBA, cmd Command) error {
	if dst == nil || cmd.Source == nil {
		return fmt.Errorf("%w: nil canvas or source", types.ErrRender)
	}

	sr := cmd.SourceRect
	if sr.Empty() {
		sr = cmd.Source.Bounds()
	}
	if sr.Empty() {
		return nil
	}

	m := cmd.Transform
	if m == (f64.Aff3{}) {
		m = Identity
	}
	det := Determinant(m)
	if math.IsNaN(det) || math.IsInf(det, 0) || math.Abs(det) < degenerateEpsilon {
		return fmt.Errorf("%w: transform determinant %g", types.ErrDegenerateGeometry, det)
	}

	box := transformedBounds(m, sr).Intersect(dst.Bounds())
	clip := cmd.Clip
	if len(clip) >= 3 {
		box = box.Intersect(polygonBounds(clip))
	} else {
		clip = nil
	}
	if box.Empty() {
		return nil
	}

	layer := image.NewRGBA(box)
	if isTranslation(m) {
		offset := image.Pt(int(m[2]), int(m[5]))
		draw.Draw(layer, box, cmd.Source, box.Min.Sub(offset), draw.Src)
	} else {
		filter := cmd.Filter
		if filter == nil {
			filter = draw.BiLinear
		}
		filter.Transform(layer, m, cmd.Source, sr, draw.Src, nil)
	}

	var mask *image.Alpha
	if clip != nil {
		mask = polygonMask(box, clip)
	}
	composite(dst, layer, mask, cmd.Blend)
	return nil
}

// Fill composites src over the whole of dst without transforming it.
func Fill(dst *image.RGBA, src image.Image, blend BlendMode) error {
	return Draw(dst, Command{Source: src, SourceRect: dst.Bounds(), Blend: blend})
}

// Overlay paints a uniform color over dst.
func Overlay(dst *image.RGBA, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
}

// isTranslation reports whether m is an integer translation.
func isTranslation(m f64.Aff3) bool {
	return m[0] == 1 && m[1] == 0 && m[3] == 0 && m[4] == 1 &&
		m[2] == math.Trunc(m[2]) && m[5] == math.Trunc(m[5])
}

func transformedBounds(m f64.Aff3, sr image.Rectangle) image.Rectangle {
	pts := []types.Point{
		{X: float64(sr.Min.X), Y: float64(sr.Min.Y)},
		{X: float64(sr.Max.X), Y: float64(sr.Min.Y)},
		{X: float64(sr.Max.X), Y: float64(sr.Max.Y)},
		{X: float64(sr.Min.X), Y: float64(sr.Max.Y)},
	}
	for i := range pts {
		pts[i] = Apply(m, pts[i])
	}
	return polygonBounds(pts)
}

func polygonBounds(pts []types.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	if math.IsInf(minX, 0) || math.IsNaN(minX) || math.IsNaN(maxX) || math.IsNaN(minY) || math.IsNaN(maxY) {
		return image.Rectangle{}
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// polygonMask rasterizes pts, clipped to box, into an anti-aliased alpha
// mask whose bounds equal box.
func polygonMask(box image.Rectangle, pts []types.Point) *image.Alpha {
	mask := image.NewAlpha(box)
	poly := clipPolygon(pts, box)
	if len(poly) < 3 {
		return mask
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	z.MoveTo(float32(poly[0].X-ox), float32(poly[0].Y-oy))
	for _, p := range poly[1:] {
		z.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	z.ClosePath()
	z.Draw(mask, box, image.Opaque, image.Point{})
	return mask
}

// clipPolygon clips pts against r (Sutherland-Hodgman).
func clipPolygon(pts []types.Point, r image.Rectangle) []types.Point {
	minX, minY := float64(r.Min.X), float64(r.Min.Y)
	maxX, maxY := float64(r.Max.X), float64(r.Max.Y)

	edges := []struct {
		inside    func(types.Point) bool
		intersect func(a, b types.Point) types.Point
	}{
		{
			func(p types.Point) bool { return p.X >= minX },
			func(a, b types.Point) types.Point { return lerpAtX(a, b, minX) },
		},
		{
			func(p types.Point) bool { return p.X <= maxX },
			func(a, b types.Point) types.Point { return lerpAtX(a, b, maxX) },
		},
		{
			func(p types.Point) bool { return p.Y >= minY },
			func(a, b types.Point) types.Point { return lerpAtY(a, b, minY) },
		},
		{
			func(p types.Point) bool { return p.Y <= maxY },
			func(a, b types.Point) types.Point { return lerpAtY(a, b, maxY) },
		},
	}

	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			break
		}
		in := out
		out = make([]types.Point, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				out = append(out, cur)
			case e.inside(cur):
				out = append(out, e.intersect(prev, cur), cur)
			case e.inside(prev):
				out = append(out, e.intersect(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func lerpAtX(a, b types.Point, x float64) types.Point {
	t := (x - a.X) / (b.X - a.X)
	return types.Point{X: x, Y: a.Y + t*(b.Y-a.Y)}
}

func lerpAtY(a, b types.Point, y float64) types.Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return types.Point{X: a.X + t*(b.X-a.X), Y: y}
}

// composite combines layer into dst over layer's bounds, scaling layer by
// mask coverage when mask is non-nil. Both images are premultiplied.
func composite(dst *image.RGBA, layer *image.RGBA, mask *image.Alpha, blend BlendMode) {
	box := layer.Bounds()
	if blend == BlendNormal {
		if mask == nil {
			draw.Draw(dst, box, layer, box.Min, draw.Over)
		} else {
			draw.DrawMask(dst, box, layer, box.Min, mask, box.Min, draw.Over)
		}
		return
	}

	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			si := layer.PixOffset(x, y)
			s := layer.Pix[si : si+4 : si+4]
			sr, sg, sb, sa := uint32(s[0]), uint32(s[1]), uint32(s[2]), uint32(s[3])
			if mask != nil {
				m := uint32(mask.Pix[mask.PixOffset(x, y)])
				sr, sg, sb, sa = mul255(sr, m), mul255(sg, m), mul255(sb, m), mul255(sa, m)
			}
			if sa == 0 {
				continue
			}
			di := dst.PixOffset(x, y)
			d := dst.Pix[di : di+4 : di+4]
			dr, dg, db, da := uint32(d[0]), uint32(d[1]), uint32(d[2]), uint32(d[3])

			if blend == BlendAdd {
				d[0] = uint8(min(sr+dr, 255))
				d[1] = uint8(min(sg+dg, 255))
				d[2] = uint8(min(sb+db, 255))
				d[3] = uint8(min(sa+da, 255))
				continue
			}
			d[0] = uint8(multiplyChannel(sr, sa, dr, da))
			d[1] = uint8(multiplyChannel(sg, sa, dg, da))
			d[2] = uint8(multiplyChannel(sb, sa, db, da))
			d[3] = uint8(sa + da - mul255(sa, da))
		}
	}
}

// multiplyChannel is the premultiplied separable multiply blend:
// cs*(1-da) + cd*(1-sa) + cs*cd.
func multiplyChannel(cs, sa, cd, da uint32) uint32 {
	v := (cs*(255-da) + cd*(255-sa) + cs*cd + 127) / 255
	if v > 255 {
		v = 255
	}
	return v
}

func mul255(a, b uint32) uint32 {
	return (a*b + 127) / 255
}
