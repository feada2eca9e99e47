package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// Label draws msg centered on (cx, cy) with a glyph height of roughly
// size canvas pixels. The bitmap face is scaled up so the label stays
// legible on large canvases.
func Label(dst *image.RGBA, msg string, cx, cy, size float64, c color.Color) error {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face, Src: image.NewUniform(c)}
	adv := d.MeasureString(msg).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	if adv <= 0 || h <= 0 {
		return nil
	}

	glyphs := image.NewRGBA(image.Rect(0, 0, adv, h))
	d.Dst = glyphs
	d.Dot = fixed.Point26_6{Y: m.Ascent}
	d.DrawString(msg)

	scale := size / float64(h)
	if scale <= 0 {
		scale = 1
	}
	w := float64(adv) * scale
	return Draw(dst, Command{
		Source: glyphs,
		Transform: f64.Aff3{
			scale, 0, cx - w/2,
			0, scale, cy - size/2,
		},
		Filter: draw.ApproxBiLinear,
	})
}
