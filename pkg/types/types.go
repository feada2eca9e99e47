package types

import (
	"fmt"
	"math"
	"strings"
)

// Anchor names the reference point that decides which part of an oversized
// source survives a cover-fit crop.
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTop         Anchor = "top"
	AnchorBottom      Anchor = "bottom"
	AnchorLeft        Anchor = "left"
	AnchorRight       Anchor = "right"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// Anchors lists the nine supported anchor points in reading order.
func Anchors() []Anchor {
	return []Anchor{
		AnchorTopLeft, AnchorTop, AnchorTopRight,
		AnchorLeft, AnchorCenter, AnchorRight,
		AnchorBottomLeft, AnchorBottom, AnchorBottomRight,
	}
}

// ParseAnchor validates a user supplied anchor name. Empty input means center.
func ParseAnchor(s string) (Anchor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AnchorCenter, nil
	}
	for _, a := range Anchors() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown anchor %q", ErrInvalidArgument, s)
}

// Horizontal returns -1 for left, 1 for right and 0 for centered.
func (a Anchor) Horizontal() int {
	switch {
	case strings.Contains(string(a), "left"):
		return -1
	case strings.Contains(string(a), "right"):
		return 1
	}
	return 0
}

// Vertical returns -1 for top, 1 for bottom and 0 for centered.
func (a Anchor) Vertical() int {
	switch {
	case strings.Contains(string(a), "top"):
		return -1
	case strings.Contains(string(a), "bottom"):
		return 1
	}
	return 0
}

// AnchorFrom builds an anchor from axis offsets as returned by Horizontal and Vertical.
func AnchorFrom(h, v int) Anchor {
	var vert, horiz string
	switch {
	case v < 0:
		vert = "top"
	case v > 0:
		vert = "bottom"
	}
	switch {
	case h < 0:
		horiz = "left"
	case h > 0:
		horiz = "right"
	}
	switch {
	case vert == "" && horiz == "":
		return AnchorCenter
	case vert == "":
		return Anchor(horiz)
	case horiz == "":
		return Anchor(vert)
	}
	return Anchor(vert + "-" + horiz)
}

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat accepts the common spellings of the supported encodings.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	}
	return "image/png"
}

// Mode selects the synthesizer a preset is rendered with.
type Mode string

const (
	ModeNone        Mode = ""
	ModeTile        Mode = "tile"
	ModeWarp        Mode = "warp"
	ModePerspective Mode = "perspective"
)

// Direction is the simulated camera tilt of a perspective render.
type Direction string

const (
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionCornerIn Direction = "corner-in"
)

// Category groups presets in the UI. It has no behavioral effect.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
	CategorySocial    Category = "social"
)

// CropArea is a rectangle in source-image pixel space.
type CropArea struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AspectRatio returns width/height.
func (c CropArea) AspectRatio() float64 {
	if c.Height == 0 {
		return 0
	}
	return c.Width / c.Height
}

// Center returns the center point of the area.
func (c CropArea) Center() (float64, float64) {
	return c.X + c.Width/2, c.Y + c.Height/2
}

// Point is a 2D coordinate. Wall corners use the normalized [0,1] range,
// render geometry uses pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale maps a normalized point into a w x h pixel space.
func (p Point) Scale(w, h float64) Point {
	return Point{X: p.X * w, Y: p.Y * h}
}

// Clamp01 restricts both coordinates to [0,1].
func (p Point) Clamp01() Point {
	return Point{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)}
}

// Corner names one vertex of a WallCoordinates quad.
type Corner string

const (
	CornerTopLeft     Corner = "topLeft"
	CornerTopRight    Corner = "topRight"
	CornerBottomRight Corner = "bottomRight"
	CornerBottomLeft  Corner = "bottomLeft"
)

// WallCoordinates is the quadrilateral a pattern is warped onto, with every
// corner normalized to the canvas dimensions.
type WallCoordinates struct {
	TopLeft     Point `json:"topLeft"`
	TopRight    Point `json:"topRight"`
	BottomRight Point `json:"bottomRight"`
	BottomLeft  Point `json:"bottomLeft"`
}

// DefaultWallCoordinates is the inset quad used when no estimate is available.
func DefaultWallCoordinates() WallCoordinates {
	return WallCoordinates{
		TopLeft:     Point{X: 0.2, Y: 0.2},
		TopRight:    Point{X: 0.8, Y: 0.2},
		BottomRight: Point{X: 0.8, Y: 0.8},
		BottomLeft:  Point{X: 0.2, Y: 0.8},
	}
}

// Scale returns the corners in pixel space, ordered TL, TR, BR, BL.
func (w WallCoordinates) Scale(width, height int) [4]Point {
	fw, fh := float64(width), float64(height)
	return [4]Point{
		w.TopLeft.Scale(fw, fh),
		w.TopRight.Scale(fw, fh),
		w.BottomRight.Scale(fw, fh),
		w.BottomLeft.Scale(fw, fh),
	}
}

// Valid reports whether all corners are finite and inside [0,1].
func (w WallCoordinates) Valid() bool {
	for _, p := range []Point{w.TopLeft, w.TopRight, w.BottomRight, w.BottomLeft} {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return false
		}
	}
	return true
}

// With returns a copy with one corner replaced (clamped to [0,1]).
func (w WallCoordinates) With(c Corner, p Point) (WallCoordinates, error) {
	p = p.Clamp01()
	switch c {
	case CornerTopLeft:
		w.TopLeft = p
	case CornerTopRight:
		w.TopRight = p
	case CornerBottomRight:
		w.BottomRight = p
	case CornerBottomLeft:
		w.BottomLeft = p
	default:
		return w, fmt.Errorf("%w: unknown corner %q", ErrInvalidArgument, c)
	}
	return w, nil
}

// EncodedImage is a serialized render result.
type EncodedImage struct {
	Data   []byte `json:"-"`
	Format Format `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
