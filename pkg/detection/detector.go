package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/listing-studio/pkg/client"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/types"
	"github.com/menta2k/listing-studio/pkg/warp"
)

// ErrNoWall is returned when the model reports no usable wall.
var ErrNoWall = errors.New("no wall found")

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// WallPrompt asks for the four corners of the dominant flat surface.
const WallPrompt = `You are a wall locator for product mockups.

Find the largest flat, mostly empty wall (or other flat surface such as a
door, panel or poster area) where a wallpaper or print could be applied.

Return JSON only:
{
  "found": true,
  "topLeft": {"x": 0.0, "y": 0.0},
  "topRight": {"x": 0.0, "y": 0.0},
  "bottomRight": {"x": 0.0, "y": 0.0},
  "bottomLeft": {"x": 0.0, "y": 0.0}
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- Corners follow the wall's visible edges, including perspective.
- Exclude furniture, windows and ceiling from the quad.
- If there is no suitable surface, return {"found": false}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const (
	DefaultImageSize = 1024
	DefaultQuality   = 85
)

// Detector estimates wall corners with a vision model.
type Detector struct {
	client  client.VisionClient
	proc    *processing.Processor
	model   string
	maxDim  int
	quality int
}

var _ warp.CornerEstimator = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithImageSize limits the longest side of the image sent to the model.
func WithImageSize(maxDim int) Option {
	return func(d *Detector) { d.maxDim = maxDim }
}

// WithQuality sets the JPEG quality (1-100) of the image sent to the model.
func WithQuality(q int) Option {
	return func(d *Detector) { d.quality = q }
}

// WithProcessor shares an existing processor for image preparation.
func WithProcessor(p *processing.Processor) Option {
	return func(d *Detector) {
		if p != nil {
			d.proc = p
		}
	}
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, model string, opts ...Option) *Detector {
	d := &Detector{
		client:  c,
		proc:    processing.NewProcessor(),
		model:   model,
		maxDim:  DefaultImageSize,
		quality: DefaultQuality,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EstimateCorners asks the model for the wall quad in img.
func (d *Detector) EstimateCorners(ctx context.Context, img image.Image) (types.WallCoordinates, error) {
	if img == nil {
		return types.WallCoordinates{}, fmt.Errorf("%w: nil image", types.ErrInvalidArgument)
	}
	imgB64, err := d.proc.PrepareImageForModel(img, d.maxDim, d.quality)
	if err != nil {
		return types.WallCoordinates{}, fmt.Errorf("preparing image: %w", err)
	}
	raw, err := d.client.QueryJSON(ctx, d.model, WallPrompt, imgB64)
	if err != nil {
		return types.WallCoordinates{}, err
	}
	b := img.Bounds()
	w, h := sentSize(b.Dx(), b.Dy(), d.maxDim)
	return ParseWallCoordinates(raw, w, h)
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.proc.PrepareImageForModel(img, d.maxDim, d.quality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imgB64)
}

type wallAnswer struct {
	Found       *bool        `json:"found"`
	TopLeft     *types.Point `json:"topLeft"`
	TopRight    *types.Point `json:"topRight"`
	BottomRight *types.Point `json:"bottomRight"`
	BottomLeft  *types.Point `json:"bottomLeft"`
}

// ParseWallCoordinates reads a model answer. Coordinates above 1 are taken
// as pixels of the imgW x imgH image that was sent. Corners are re-assigned
// by position, so a quad listed in the wrong order still comes back as
// TL, TR, BR, BL.
func ParseWallCoordinates(raw string, imgW, imgH int) (types.WallCoordinates, error) {
	var ans wallAnswer
	if err := json.Unmarshal([]byte(client.SanitizeModelJSON(raw)), &ans); err != nil {
		return types.WallCoordinates{}, fmt.Errorf("%w: unparseable answer: %v", ErrNoWall, err)
	}
	if ans.Found != nil && !*ans.Found {
		return types.WallCoordinates{}, ErrNoWall
	}
	if ans.TopLeft == nil || ans.TopRight == nil || ans.BottomRight == nil || ans.BottomLeft == nil {
		return types.WallCoordinates{}, fmt.Errorf("%w: missing corners", ErrNoWall)
	}

	pts := [4]types.Point{*ans.TopLeft, *ans.TopRight, *ans.BottomRight, *ans.BottomLeft}
	if pixelSpace(pts) {
		if imgW <= 0 || imgH <= 0 {
			return types.WallCoordinates{}, fmt.Errorf("%w: pixel corners without image size", ErrNoWall)
		}
		for i := range pts {
			pts[i] = types.Point{X: pts[i].X / float64(imgW), Y: pts[i].Y / float64(imgH)}
		}
	}
	for i := range pts {
		if math.IsNaN(pts[i].X) || math.IsNaN(pts[i].Y) {
			return types.WallCoordinates{}, fmt.Errorf("%w: NaN corner", ErrNoWall)
		}
		pts[i] = pts[i].Clamp01()
	}

	wc, ok := orderCorners(pts)
	if !ok {
		return types.WallCoordinates{}, fmt.Errorf("%w: corners do not form a quad", ErrNoWall)
	}
	if quadArea(wc) < minArea {
		return types.WallCoordinates{}, fmt.Errorf("%w: quad too small", ErrNoWall)
	}
	return wc, nil
}

// minArea is the smallest accepted quad, as a fraction of the image.
const minArea = 0.01

func pixelSpace(pts [4]types.Point) bool {
	for _, p := range pts {
		if p.X > 1 || p.Y > 1 {
			return true
		}
	}
	return false
}

// orderCorners assigns TL to the smallest x+y, BR to the largest, TR to the
// largest x-y and BL to the smallest. It fails when a point is picked twice.
func orderCorners(pts [4]types.Point) (types.WallCoordinates, bool) {
	tl, br, tr, bl := 0, 0, 0, 0
	for i, p := range pts {
		if p.X+p.Y < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if p.X+p.Y > pts[br].X+pts[br].Y {
			br = i
		}
		if p.X-p.Y > pts[tr].X-pts[tr].Y {
			tr = i
		}
		if p.X-p.Y < pts[bl].X-pts[bl].Y {
			bl = i
		}
	}
	seen := map[int]bool{tl: true, tr: true, br: true, bl: true}
	if len(seen) != 4 {
		return types.WallCoordinates{}, false
	}
	return types.WallCoordinates{
		TopLeft:     pts[tl],
		TopRight:    pts[tr],
		BottomRight: pts[br],
		BottomLeft:  pts[bl],
	}, true
}

// quadArea is the shoelace area of the quad in normalized units.
func quadArea(w types.WallCoordinates) float64 {
	p := [4]types.Point{w.TopLeft, w.TopRight, w.BottomRight, w.BottomLeft}
	var s float64
	for i := range p {
		j := (i + 1) % 4
		s += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return math.Abs(s) / 2
}

// sentSize mirrors the downscale applied before the image is sent.
func sentSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, int(math.Max(1, math.Round(float64(h)*float64(maxDim)/float64(w))))
	}
	return int(math.Max(1, math.Round(float64(w)*float64(maxDim)/float64(h)))), maxDim
}
