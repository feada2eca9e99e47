// Package warp maps a pattern image onto a quadrilateral of a background
// photo with a piecewise-affine texture and multiply blending, so the
// background's shading shows through the pattern.
package warp

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/render"
	"github.com/menta2k/listing-studio/pkg/types"
)

// PlaceholderText is shown when no pattern is supplied.
const PlaceholderText = "No pattern image"

// triangleEpsilon is the smallest absolute doubled area of a usable triangle, in square pixels.
const triangleEpsilon = 1e-6

var placeholderShade = color.NRGBA{A: 128}

// Triangle is three points in drawing order.
type Triangle [3]types.Point

// Outcome reports what a warp draw did.
type Outcome struct {
	Drawn       int  `json:"drawn"`
	Skipped     int  `json:"skipped"`
	Placeholder bool `json:"placeholder"`
}

// Split returns the two destination triangles of a quad given as TL, TR, BR, BL.
func Split(q [4]types.Point) [2]Triangle {
	tl, tr, br, bl := q[0], q[1], q[2], q[3]
	return [2]Triangle{{tl, tr, bl}, {tr, br, bl}}
}

// SourceTriangles splits the rectangle r the same way Split splits a quad.
func SourceTriangles(r image.Rectangle) [2]Triangle {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	return Split([4]types.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
}

// AffineFromTriangles solves the transform mapping src[i] onto dst[i].
// It returns ErrDegenerateGeometry when either triangle has no area.
func AffineFromTriangles(src, dst Triangle) (f64.Aff3, error) {
	// S holds the source edge vectors, D the destination ones; M = D * S^-1.
	s00, s01 := src[1].X-src[0].X, src[2].X-src[0].X
	s10, s11 := src[1].Y-src[0].Y, src[2].Y-src[0].Y
	sdet := s00*s11 - s01*s10

	d00, d01 := dst[1].X-dst[0].X, dst[2].X-dst[0].X
	d10, d11 := dst[1].Y-dst[0].Y, dst[2].Y-dst[0].Y
	ddet := d00*d11 - d01*d10

	if !usable(sdet) || !usable(ddet) {
		return f64.Aff3{}, fmt.Errorf("%w: triangle area src=%g dst=%g", types.ErrDegenerateGeometry, sdet/2, ddet/2)
	}

	i00, i01 := s11/sdet, -s01/sdet
	i10, i11 := -s10/sdet, s00/sdet

	a := d00*i00 + d01*i10
	b := d00*i01 + d01*i11
	c := d10*i00 + d11*i10
	d := d10*i01 + d11*i11

	return f64.Aff3{
		a, b, dst[0].X - a*src[0].X - b*src[0].Y,
		c, d, dst[0].Y - c*src[0].X - d*src[0].Y,
	}, nil
}

func usable(det float64) bool {
	return !math.IsNaN(det) && !math.IsInf(det, 0) && math.Abs(det) >= triangleEpsilon
}

// Draw fills canvas with background, then maps pattern onto the quad given
// by corners (normalized to the canvas size) with multiply blending.
// Degenerate triangles are skipped and counted rather than failing the draw.
// A nil pattern renders the placeholder instead.
func Draw(canvas *image.RGBA, background, pattern image.Image, corners types.WallCoordinates) (Outcome, error) {
	if canvas == nil || background == nil {
		return Outcome{}, fmt.Errorf("%w: nil canvas or background", types.ErrRender)
	}
	b := canvas.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return Outcome{}, fmt.Errorf("%w: empty canvas", types.ErrRender)
	}

	bg := imaging.Resize(background, w, h, imaging.Lanczos)
	draw.Draw(canvas, b, bg, image.Point{}, draw.Src)

	if pattern == nil {
		if err := drawPlaceholder(canvas); err != nil {
			return Outcome{}, err
		}
		return Outcome{Placeholder: true}, nil
	}

	quad := corners.Scale(w, h)
	for i := range quad {
		quad[i].X += float64(b.Min.X)
		quad[i].Y += float64(b.Min.Y)
	}

	// Both triangles accumulate into one transparent layer so their edge
	// coverages along the diagonal sum to full before the single multiply.
	layer := image.NewRGBA(b)
	var out Outcome
	srcTris := SourceTriangles(pattern.Bounds())
	for i, dst := range Split(quad) {
		m, err := AffineFromTriangles(srcTris[i], dst)
		if err != nil {
			out.Skipped++
			continue
		}
		err = render.Draw(layer, render.Command{
			Source:    pattern,
			Transform: m,
			Clip:      dst[:],
			Blend:     render.BlendAdd,
		})
		switch {
		case errors.Is(err, types.ErrDegenerateGeometry):
			out.Skipped++
		case err != nil:
			return out, err
		default:
			out.Drawn++
		}
	}
	if out.Drawn > 0 {
		if err := render.Fill(canvas, layer, render.BlendMultiply); err != nil {
			return out, err
		}
	}
	return out, nil
}

func drawPlaceholder(canvas *image.RGBA) error {
	render.Overlay(canvas, placeholderShade)
	b := canvas.Bounds()
	size := math.Max(13, float64(b.Dy())/18)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	if err := render.Label(canvas, PlaceholderText, cx, cy, size, color.White); err != nil {
		return fmt.Errorf("placeholder label: %w", err)
	}
	return nil
}

// Render allocates a w x h canvas and draws the warp onto it.
func Render(background, pattern image.Image, corners types.WallCoordinates, w, h int) (*image.RGBA, Outcome, error) {
	canvas, err := render.NewCanvas(w, h)
	if err != nil {
		return nil, Outcome{}, err
	}
	out, err := Draw(canvas, background, pattern, corners)
	if err != nil {
		return nil, out, err
	}
	return canvas, out, nil
}

// CreateOptions configures CreateWarpedImage.
type CreateOptions struct {
	// Width and Height of the output. Zero uses the background size.
	Width, Height int
	Encode        processing.EncodeOptions
}

// CreateWarpedImage decodes background and pattern concurrently, renders the
// warp and encodes the result. An empty pattern renders the placeholder.
func CreateWarpedImage(ctx context.Context, proc *processing.Processor, background, pattern []byte, corners types.WallCoordinates, opts CreateOptions) (types.EncodedImage, Outcome, error) {
	var bg, pat image.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, _, err := proc.Decode(gctx, background)
		if err != nil {
			return fmt.Errorf("background: %w", err)
		}
		bg = img
		return nil
	})
	if len(pattern) > 0 {
		g.Go(func() error {
			img, _, err := proc.Decode(gctx, pattern)
			if err != nil {
				return fmt.Errorf("pattern: %w", err)
			}
			pat = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.EncodedImage{}, Outcome{}, err
	}

	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = bg.Bounds().Dx(), bg.Bounds().Dy()
	}
	canvas, out, err := Render(bg, pat, corners, w, h)
	if err != nil {
		return types.EncodedImage{}, out, err
	}
	enc, err := proc.Encode(ctx, canvas, opts.Encode)
	return enc, out, err
}
