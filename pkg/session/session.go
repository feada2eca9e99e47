// Package session keeps the editing state of one source image: the selected
// preset, zoom, anchor and pan offset, the warp corners and pattern, and the
// results applied so far.
package session

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/listing-studio/pkg/batch"
	"github.com/menta2k/listing-studio/pkg/cropper"
	"github.com/menta2k/listing-studio/pkg/perspective"
	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/types"
	"github.com/menta2k/listing-studio/pkg/warp"
)

const (
	DefaultPreviewWidth = 800
	// MaxPreviewWidth bounds the preview canvas a client may request.
	MaxPreviewWidth = 4096

	overlayStroke = 2
	overlayHandle = 10
)

// Config holds the collaborators a session renders with.
type Config struct {
	Processor    *processing.Processor
	Orchestrator *batch.Orchestrator
	Estimator    warp.CornerEstimator
	Encode       processing.EncodeOptions
	PreviewWidth int
}

func (c Config) withDefaults() Config {
	if c.Processor == nil {
		c.Processor = processing.NewProcessor()
	}
	if c.Orchestrator == nil {
		c.Orchestrator = batch.New(c.Processor, 0)
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = DefaultPreviewWidth
	}
	return c
}

// State is a read-only snapshot of a session.
type State struct {
	ID           string                `json:"id"`
	SourceWidth  int                   `json:"sourceWidth"`
	SourceHeight int                   `json:"sourceHeight"`
	Preset       presets.Preset        `json:"preset"`
	Zoom         float64               `json:"zoom"`
	Anchor       types.Anchor          `json:"anchor"`
	Area         types.CropArea        `json:"area"`
	Corners      types.WallCoordinates `json:"corners"`
	HasPattern   bool                  `json:"hasPattern"`
	Results      []string              `json:"results"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Session is safe for concurrent use. Renders read a consistent copy of the
// parameters and never hold the lock while drawing.
type Session struct {
	id  string
	cfg Config

	mu      sync.RWMutex
	source  image.Image
	pattern image.Image
	preset  presets.Preset
	zoom    float64
	anchor  types.Anchor
	area    types.CropArea
	corners types.WallCoordinates
	updated time.Time

	results *batch.ResultSet
}

// New starts a session on src with the first catalog preset selected.
func New(src image.Image, cfg Config) (*Session, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrInvalidArgument)
	}
	if b := src.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("%w: empty source", types.ErrInvalidArgument)
	}
	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg.withDefaults(),
		source:  src,
		corners: types.DefaultWallCoordinates(),
		results: batch.NewResultSet(),
	}
	s.selectLocked(presets.All()[0])
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Results returns the session's result set.
func (s *Session) Results() *batch.ResultSet { return s.results }

// State returns a snapshot of the current parameters.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.source.Bounds()
	return State{
		ID:           s.id,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Preset:       s.preset,
		Zoom:         s.zoom,
		Anchor:       s.anchor,
		Area:         s.area,
		Corners:      s.corners,
		HasPattern:   s.pattern != nil,
		Results:      s.results.Keys(),
		UpdatedAt:    s.updated,
	}
}

// SelectPreset switches to a catalog preset and resets zoom, anchor and
// offset to its defaults.
func (s *Session) SelectPreset(id string) error {
	p, err := presets.Lookup(id)
	if err != nil {
		return err
	}
	return s.SelectCustom(p)
}

// SelectCustom switches to an ad-hoc preset.
func (s *Session) SelectCustom(p presets.Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(p)
	return nil
}

func (s *Session) selectLocked(p presets.Preset) {
	s.preset = p
	s.zoom = p.Zoom()
	s.anchor = p.Anchor()
	s.recomputeLocked()
}

func (s *Session) recomputeLocked() {
	b := s.source.Bounds()
	s.area = cropper.CalculateCropArea(b.Dx(), b.Dy(), s.preset.Width, s.preset.Height, s.zoom, s.anchor)
	s.updated = time.Now()
}

// SetZoom changes the zoom and keeps the crop centered where it was, moving
// it only as far as needed to stay inside the image. Values below 1 are
// treated as 1.
func (s *Session) SetZoom(zoom float64) types.CropArea {
	if zoom < 1 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cx, cy := s.area.Center()
	b := s.source.Bounds()
	next := cropper.CalculateCropArea(b.Dx(), b.Dy(), s.preset.Width, s.preset.Height, zoom, types.AnchorCenter)
	next.X = cx - next.Width/2
	next.Y = cy - next.Height/2
	s.zoom = zoom
	s.area = clampArea(next, b.Dx(), b.Dy())
	s.updated = time.Now()
	return s.area
}

// SetAnchor repositions the crop at the current zoom.
func (s *Session) SetAnchor(a types.Anchor) (types.CropArea, error) {
	a, err := types.ParseAnchor(string(a))
	if err != nil {
		return types.CropArea{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchor = a
	s.recomputeLocked()
	return s.area, nil
}

// Pan moves the crop by dx, dy source pixels, clamped to the image.
func (s *Session) Pan(dx, dy float64) types.CropArea {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.area
	next.X += finite(dx)
	next.Y += finite(dy)
	b := s.source.Bounds()
	s.area = clampArea(next, b.Dx(), b.Dy())
	s.updated = time.Now()
	return s.area
}

// CenterOn moves the crop so its center is at x, y in source pixels,
// clamped to the image.
func (s *Session) CenterOn(x, y float64) types.CropArea {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.area
	next.X = math.Floor(finite(x) - next.Width/2)
	next.Y = math.Floor(finite(y) - next.Height/2)
	b := s.source.Bounds()
	s.area = clampArea(next, b.Dx(), b.Dy())
	s.updated = time.Now()
	return s.area
}

// CropArea returns the current crop area.
func (s *Session) CropArea() types.CropArea {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.area
}

// MoveCorner sets one wall corner, clamped to [0,1].
func (s *Session) MoveCorner(c types.Corner, p types.Point) (types.WallCoordinates, error) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return types.WallCoordinates{}, fmt.Errorf("%w: NaN corner", types.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.corners.With(c, p)
	if err != nil {
		return s.corners, err
	}
	s.corners = next
	s.updated = time.Now()
	return next, nil
}

// SetCorners replaces all four corners.
func (s *Session) SetCorners(wc types.WallCoordinates) error {
	if !wc.Valid() {
		return fmt.Errorf("%w: corners must lie in [0,1]", types.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corners = wc
	s.updated = time.Now()
	return nil
}

// ResetCorners restores the default inset quad.
func (s *Session) ResetCorners() types.WallCoordinates {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corners = types.DefaultWallCoordinates()
	s.updated = time.Now()
	return s.corners
}

// EstimateCorners runs the configured estimator on the source. On failure
// the default quad is adopted and fallback is true.
func (s *Session) EstimateCorners(ctx context.Context) (wc types.WallCoordinates, fallback bool) {
	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()

	wc, err := warp.EstimateOrDefault(ctx, s.cfg.Estimator, src)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session", s.id).Msg("wall detection failed, using default corners")
		fallback = true
	}
	s.mu.Lock()
	s.corners = wc
	s.updated = time.Now()
	s.mu.Unlock()
	return wc, fallback
}

// AutoAnchor picks the anchor whose crop best covers the salient region.
func (s *Session) AutoAnchor(ctx context.Context) (types.Anchor, error) {
	s.mu.RLock()
	src, p := s.source, s.preset
	s.mu.RUnlock()

	a, err := cropper.SuggestAnchor(src, p.Width, p.Height)
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).Debug().Str("session", s.id).Str("anchor", string(a)).Msg("suggested anchor")
	if _, err := s.SetAnchor(a); err != nil {
		return "", err
	}
	return a, nil
}

// SetPattern sets the image warped onto the wall. nil clears it.
func (s *Session) SetPattern(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = img
	s.updated = time.Now()
}

// ReplaceSource swaps the source image, e.g. for an upscaled version, and
// recomputes the crop for the selected preset. Results are kept.
func (s *Session) ReplaceSource(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil source", types.ErrInvalidArgument)
	}
	if b := img.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return fmt.Errorf("%w: empty source", types.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
	s.recomputeLocked()
	return nil
}

// Source returns the current source image.
func (s *Session) Source() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

type snapshot struct {
	source  image.Image
	pattern image.Image
	preset  presets.Preset
	params  batch.Params
	corners types.WallCoordinates
}

func (s *Session) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	area := s.area
	return snapshot{
		source:  s.source,
		pattern: s.pattern,
		preset:  s.preset,
		params:  batch.Params{Zoom: s.zoom, Anchor: s.anchor, Area: &area},
		corners: s.corners,
	}
}

// Preview renders the selected preset at the given width. Crop presets show
// the whole source with the crop outlined; warp presets show the wall quad
// and its handles on top of the composite.
func (s *Session) Preview(ctx context.Context, width int) (image.Image, error) {
	if width <= 0 {
		width = s.cfg.PreviewWidth
	}
	if width > MaxPreviewWidth {
		width = MaxPreviewWidth
	}
	snap := s.snapshot()
	p := snap.preset
	b := snap.source.Bounds()

	switch p.Mode {
	case types.ModeTile:
		_, h := processing.PreviewSize(p.Width, p.Height, width)
		return cropper.TileImage(snap.source, width, max(h, 2))
	case types.ModePerspective:
		_, h := processing.PreviewSize(p.Width, p.Height, width)
		return perspective.Render(snap.source, *snap.params.Area, width, h, perspective.Options{
			Direction: p.Direction,
			Amount:    p.Amount,
		})
	case types.ModeWarp:
		w, h := processing.PreviewSize(b.Dx(), b.Dy(), width)
		canvas, out, err := warp.Render(snap.source, snap.pattern, snap.corners, w, h)
		if err != nil {
			return nil, err
		}
		if out.Skipped > 0 {
			log.Ctx(ctx).Warn().Int("skipped", out.Skipped).Str("session", s.id).Msg("degenerate wall triangles")
		}
		img := imaging.Clone(canvas)
		processing.QuadOverlay(img, snap.corners.Scale(w, h), overlayStroke, overlayHandle)
		return img, nil
	default:
		return processing.CropPreview(snap.source, *snap.params.Area, width)
	}
}

// Render draws the selected preset at full resolution without encoding it.
// Warp presets require a pattern.
func (s *Session) Render(ctx context.Context) (image.Image, error) {
	_, img, err := s.render(ctx)
	return img, err
}

// render draws from a single snapshot and reports which preset it used.
func (s *Session) render(ctx context.Context) (string, image.Image, error) {
	snap := s.snapshot()
	p := snap.preset
	if p.Mode != types.ModeWarp {
		img, err := batch.RenderPreset(snap.source, p, snap.params)
		return p.ID, img, err
	}
	if snap.pattern == nil {
		return p.ID, nil, fmt.Errorf("%w: preset %s needs a pattern image", types.ErrInvalidArgument, p.ID)
	}
	canvas, out, err := warp.Render(snap.source, snap.pattern, snap.corners, p.Width, p.Height)
	if err != nil {
		return p.ID, nil, err
	}
	if out.Skipped > 0 {
		log.Ctx(ctx).Warn().Int("skipped", out.Skipped).Str("session", s.id).Msg("degenerate wall triangles")
	}
	return p.ID, canvas, nil
}

// Apply renders the selected preset at full resolution, encodes it and
// stores it under the preset id, replacing any earlier result.
func (s *Session) Apply(ctx context.Context) (string, types.EncodedImage, error) {
	id, img, err := s.render(ctx)
	if err != nil {
		return id, types.EncodedImage{}, err
	}
	enc, err := s.cfg.Processor.Encode(ctx, img, s.cfg.Encode)
	if err != nil {
		return id, types.EncodedImage{}, err
	}
	s.results.Put(id, enc)
	log.Ctx(ctx).Info().Str("session", s.id).Str("preset", id).Int("bytes", len(enc.Data)).Msg("applied preset")
	return id, enc, nil
}

// Batch renders every listed preset with its defaults and merges the
// results. A failed batch leaves the result set untouched.
func (s *Session) Batch(ctx context.Context, ids []string) ([]string, error) {
	list, err := presets.LookupAll(ids)
	if err != nil {
		return nil, err
	}
	res, err := s.cfg.Orchestrator.Run(ctx, s.Source(), list, batch.Options{Encode: s.cfg.Encode})
	if err != nil {
		return nil, err
	}
	s.results.Merge(res)
	done := make([]string, 0, len(res))
	for _, p := range list {
		if _, ok := res[p.ID]; ok {
			done = append(done, p.ID)
		}
	}
	return done, nil
}

// ClearResults empties the result set.
func (s *Session) ClearResults() {
	s.results.Clear()
}

// clampArea moves a so that it lies inside a w x h image without resizing it.
func clampArea(a types.CropArea, w, h int) types.CropArea {
	a.X = math.Max(0, math.Min(a.X, math.Max(0, float64(w)-a.Width)))
	a.Y = math.Max(0, math.Min(a.Y, math.Max(0, float64(h)-a.Height)))
	return a
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
