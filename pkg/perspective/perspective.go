// Package perspective synthesizes a tilted view of a crop by scaling thin
// vertical slices of it, a cheap stand-in for a real camera rotation.
//
// Each slice keeps its full width and is shrunk vertically about the row
// centre, so the receding side of the picture is letterboxed top and bottom.
// Shading is baked into the crop before slicing: a horizontal gradient that
// darkens the receding side, plus an occlusion band along the join for the
// interior-corner direction.
package perspective

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/listing-studio/pkg/cropper"
	"github.com/menta2k/listing-studio/pkg/render"
	"github.com/menta2k/listing-studio/pkg/types"
)

const (
	// MaxAmount keeps every slice height positive.
	MaxAmount = 0.95
	// DefaultSlices is the number of vertical slices across the canvas.
	DefaultSlices = 120

	shadeGain     = 1.5
	maxShade      = 0.35
	occlusionGain = 3
	maxOcclusion  = 0.45
	occlusionBand = 0.25
)

// Options selects the tilt.
type Options struct {
	Direction types.Direction
	// Amount is the fraction of the height removed at the receding edge.
	Amount float64
	// Slices defaults to DefaultSlices and never exceeds the canvas width.
	Slices int
}

// NormalizeAmount rejects NaN and negative amounts and clamps the rest to MaxAmount.
func NormalizeAmount(amount float64) (float64, error) {
	if math.IsNaN(amount) || amount < 0 {
		return 0, fmt.Errorf("%w: perspective amount %v", types.ErrInvalidArgument, amount)
	}
	return math.Min(amount, MaxAmount), nil
}

// SliceScale returns the height scale of the slice at normalized position t.
// Left tilts are tall on the left edge; right tilts are tall on the right.
func SliceScale(dir types.Direction, t, amount float64) float64 {
	switch dir {
	case types.DirectionRight:
		return (1 - amount) + t*amount
	default:
		return 1 - t*amount
	}
}

// Render draws area of src into a new targetW x targetH canvas with the
// requested tilt. Areas outside the tilted picture stay transparent.
func Render(src image.Image, area types.CropArea, targetW, targetH int, opts Options) (*image.RGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	amount, err := NormalizeAmount(opts.Amount)
	if err != nil {
		return nil, err
	}
	slices := opts.Slices
	if slices <= 0 {
		slices = DefaultSlices
	}

	canvas, err := render.NewCanvas(targetW, targetH)
	if err != nil {
		return nil, err
	}

	shade := math.Min(maxShade, amount*shadeGain)
	switch opts.Direction {
	case types.DirectionLeft, types.DirectionRight:
		w := wall{
			area:   area,
			rect:   canvas.Bounds(),
			dir:    opts.Direction,
			stops:  lightingStops(opts.Direction, shade),
			amount: amount,
			slices: slices,
		}
		if err := w.draw(canvas, src); err != nil {
			return nil, err
		}

	case types.DirectionCornerIn:
		occ := math.Min(maxOcclusion, amount*occlusionGain)
		half := targetW / 2
		leftArea := types.CropArea{X: area.X, Y: area.Y, Width: area.Width / 2, Height: area.Height}
		rightArea := types.CropArea{X: area.X + area.Width/2, Y: area.Y, Width: area.Width / 2, Height: area.Height}

		// left half recedes to the left, right half to the right; both meet at the join
		left := wall{
			area:   leftArea,
			rect:   image.Rect(0, 0, half, targetH),
			dir:    types.DirectionRight,
			stops:  joinStops(types.DirectionRight, shade, occ),
			amount: amount,
			slices: slices / 2,
		}
		right := wall{
			area:   rightArea,
			rect:   image.Rect(half, 0, targetW, targetH),
			dir:    types.DirectionLeft,
			stops:  joinStops(types.DirectionLeft, shade, occ),
			amount: amount,
			slices: slices - slices/2,
		}
		if err := left.draw(canvas, src); err != nil {
			return nil, err
		}
		if err := right.draw(canvas, src); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: perspective direction %q", types.ErrInvalidArgument, opts.Direction)
	}
	return canvas, nil
}

// wall is one single-direction tilt rendered into rect.
type wall struct {
	area   types.CropArea
	rect   image.Rectangle
	dir    types.Direction
	stops  []render.Stop
	amount float64
	slices int
}

func (w wall) draw(dst *image.RGBA, src image.Image) error {
	width, height := w.rect.Dx(), w.rect.Dy()
	if width < 1 || height < 1 {
		return nil
	}

	crop, err := cropper.CropImage(src, w.area, width, height)
	if err != nil {
		return err
	}
	base := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(base, base.Bounds(), crop, crop.Bounds().Min, draw.Src)
	if shaded(w.stops) {
		g := render.NewLinearGradient(base.Bounds(),
			types.Point{X: 0, Y: 0}, types.Point{X: float64(width), Y: 0}, w.stops...)
		if err := render.Fill(base, g, render.BlendNormal); err != nil {
			return err
		}
	}

	n := w.slices
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	ox, oy := float64(w.rect.Min.X), float64(w.rect.Min.Y)
	for i := 0; i < n; i++ {
		x0, x1 := i*width/n, (i+1)*width/n
		if x1 <= x0 {
			continue
		}
		t := (float64(x0+x1) / 2) / float64(width)
		s := SliceScale(w.dir, t, w.amount)
		yoff := (float64(height) - float64(height)*s) / 2

		err := render.Draw(dst, render.Command{
			Source:     base,
			SourceRect: image.Rect(x0, 0, x1, height),
			Transform:  f64.Aff3{1, 0, ox, 0, s, oy + yoff},
		})
		if err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}
	}
	return nil
}

// lightingStops darkens the receding edge.
func lightingStops(dir types.Direction, shade float64) []render.Stop {
	if dir == types.DirectionRight {
		return []render.Stop{render.Shade(0, shade), render.Shade(1, 0)}
	}
	return []render.Stop{render.Shade(0, 0), render.Shade(1, shade)}
}

// joinStops adds an occlusion band on the edge that touches the corner join.
func joinStops(dir types.Direction, shade, occ float64) []render.Stop {
	if dir == types.DirectionRight {
		// join on the right edge
		return []render.Stop{
			render.Shade(0, shade),
			render.Shade(1-occlusionBand, 0),
			render.Shade(1, occ),
		}
	}
	return []render.Stop{
		render.Shade(0, occ),
		render.Shade(occlusionBand, 0),
		render.Shade(1, shade),
	}
}

func shaded(stops []render.Stop) bool {
	for _, s := range stops {
		if s.Color.A > 0 {
			return true
		}
	}
	return false
}
