package batch

import (
	"fmt"
	"image"

	"github.com/menta2k/listing-studio/pkg/cropper"
	"github.com/menta2k/listing-studio/pkg/perspective"
	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/types"
)

// Params override a preset's defaults for a single render.
type Params struct {
	// Zoom of zero uses the preset default.
	Zoom float64 `json:"zoom,omitempty"`
	// Anchor of "" uses the preset default.
	Anchor types.Anchor `json:"anchor,omitempty"`
	// Area, when set, replaces the computed crop area.
	Area *types.CropArea `json:"area,omitempty"`
}

// AreaFor returns the crop area a preset samples from a w x h source.
func AreaFor(w, h int, p presets.Preset, params Params) types.CropArea {
	if params.Area != nil {
		return *params.Area
	}
	zoom := params.Zoom
	if zoom == 0 {
		zoom = p.Zoom()
	}
	anchor := params.Anchor
	if anchor == "" {
		anchor = p.Anchor()
	}
	return cropper.CalculateCropArea(w, h, p.Width, p.Height, zoom, anchor)
}

// RenderPreset renders src for p with the synthesizer its mode selects.
// Warp presets need a pattern and corners and are rejected here.
func RenderPreset(src image.Image, p presets.Preset, params Params) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := src.Bounds()

	switch p.Mode {
	case types.ModeTile:
		return cropper.TileImage(src, p.Width, p.Height)
	case types.ModePerspective:
		area := AreaFor(b.Dx(), b.Dy(), p, params)
		return perspective.Render(src, area, p.Width, p.Height, perspective.Options{
			Direction: p.Direction,
			Amount:    p.Amount,
		})
	case types.ModeWarp:
		return nil, fmt.Errorf("%w: warp preset %s needs a pattern and corners", types.ErrInvalidArgument, p.ID)
	default:
		area := AreaFor(b.Dx(), b.Dy(), p, params)
		return cropper.CropImage(src, area, p.Width, p.Height)
	}
}
