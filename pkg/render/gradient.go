package render

import (
	"image"
	"image/color"
	"sort"

	"github.com/menta2k/listing-studio/pkg/types"
)

// Stop is a gradient color stop at Offset in [0, 1].
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// LinearGradient is an image whose color varies along the axis From -> To.
// Points before From take the first stop and points past To the last.
type LinearGradient struct {
	Rect     image.Rectangle
	From, To types.Point
	Stops    []Stop
}

// NewLinearGradient returns a gradient over rect with stops sorted by offset.
func NewLinearGradient(rect image.Rectangle, from, to types.Point, stops ...Stop) *LinearGradient {
	s := append([]Stop(nil), stops...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Offset < s[j].Offset })
	return &LinearGradient{Rect: rect, From: from, To: to, Stops: s}
}

func (g *LinearGradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *LinearGradient) Bounds() image.Rectangle { return g.Rect }

func (g *LinearGradient) At(x, y int) color.Color {
	if len(g.Stops) == 0 {
		return color.NRGBA{}
	}
	dx, dy := g.To.X-g.From.X, g.To.Y-g.From.Y
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		px, py := float64(x)+0.5-g.From.X, float64(y)+0.5-g.From.Y
		t = (px*dx + py*dy) / l2
	}
	return g.colorAt(t)
}

func (g *LinearGradient) colorAt(t float64) color.NRGBA {
	first, last := g.Stops[0], g.Stops[len(g.Stops)-1]
	if t <= first.Offset {
		return first.Color
	}
	if t >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(g.Stops); i++ {
		b := g.Stops[i]
		if t > b.Offset {
			continue
		}
		a := g.Stops[i-1]
		span := b.Offset - a.Offset
		if span <= 0 {
			return b.Color
		}
		return lerpNRGBA(a.Color, b.Color, (t-a.Offset)/span)
	}
	return last.Color
}

func lerpNRGBA(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Shade returns a black stop with the given opacity in [0, 1].
func Shade(offset, opacity float64) Stop {
	return Stop{Offset: offset, Color: color.NRGBA{A: uint8(clampUnit(opacity)*255 + 0.5)}}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
