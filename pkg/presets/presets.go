// Package presets holds the catalog of named output formats.
package presets

import (
	"fmt"
	"math"

	"github.com/menta2k/listing-studio/pkg/types"
)

// Preset is a fixed output specification.
type Preset struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	Description   string          `json:"description"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Category      types.Category  `json:"category"`
	DefaultZoom   float64         `json:"defaultZoom,omitempty"`
	DefaultAnchor types.Anchor    `json:"defaultAnchor,omitempty"`
	Mode          types.Mode      `json:"mode,omitempty"`
	Direction     types.Direction `json:"direction,omitempty"`
	Amount        float64         `json:"amount,omitempty"`
}

// Zoom returns the default zoom, 1.0 when unset.
func (p Preset) Zoom() float64 {
	if p.DefaultZoom < 1 || math.IsNaN(p.DefaultZoom) {
		return 1
	}
	return p.DefaultZoom
}

// Anchor returns the default anchor, center when unset.
func (p Preset) Anchor() types.Anchor {
	if p.DefaultAnchor == "" {
		return types.AnchorCenter
	}
	return p.DefaultAnchor
}

// AspectRatio returns width/height.
func (p Preset) AspectRatio() float64 {
	return float64(p.Width) / float64(p.Height)
}

// Validate checks dimensions and mode-specific fields.
func (p Preset) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: preset id is empty", types.ErrInvalidArgument)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: preset %s has size %dx%d", types.ErrInvalidArgument, p.ID, p.Width, p.Height)
	}
	if p.DefaultZoom != 0 && p.DefaultZoom < 1 {
		return fmt.Errorf("%w: preset %s zoom %.2f < 1", types.ErrInvalidArgument, p.ID, p.DefaultZoom)
	}
	switch p.Mode {
	case types.ModeNone, types.ModeTile, types.ModeWarp:
	case types.ModePerspective:
		switch p.Direction {
		case types.DirectionLeft, types.DirectionRight, types.DirectionCornerIn:
		default:
			return fmt.Errorf("%w: preset %s has perspective direction %q", types.ErrInvalidArgument, p.ID, p.Direction)
		}
		if p.Amount < 0 || p.Amount > 1 {
			return fmt.Errorf("%w: preset %s perspective amount %.2f", types.ErrInvalidArgument, p.ID, p.Amount)
		}
	default:
		return fmt.Errorf("%w: preset %s has mode %q", types.ErrInvalidArgument, p.ID, p.Mode)
	}
	return nil
}

var catalog = []Preset{
	// primary
	{ID: "main_4_3", Label: "Main 4:3", Description: "Primary listing photo (3000x2250)", Width: 3000, Height: 2250, Category: types.CategoryPrimary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "thumb_square", Label: "Square thumbnail", Description: "High quality thumbnail (2000x2000)", Width: 2000, Height: 2000, Category: types.CategoryPrimary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "vertical_wall", Label: "Vertical", Description: "Full height wall view (2000x2700)", Width: 2000, Height: 2700, Category: types.CategoryPrimary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "lifestyle_context", Label: "Lifestyle", Description: "Interior shot with context (2400x1800)", Width: 2400, Height: 1800, Category: types.CategoryPrimary, DefaultZoom: 1.4, DefaultAnchor: types.AnchorCenter},
	{ID: "detail_macro_front", Label: "Detail (front)", Description: "Macro texture of the central area (2000x2000)", Width: 2000, Height: 2000, Category: types.CategoryPrimary, DefaultZoom: 2.5, DefaultAnchor: types.AnchorCenter},

	// secondary: tilts and mockups
	{ID: "perspective_warp", Label: "Wall mockup", Description: "Pattern laid onto a wall keeping its shadows", Width: 2000, Height: 2000, Category: types.CategorySecondary, Mode: types.ModeWarp},
	{ID: "perspective_left", Label: "Tilt left", Description: "Wall seen from the left (2000x2000)", Width: 2000, Height: 2000, Category: types.CategorySecondary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter, Mode: types.ModePerspective, Direction: types.DirectionLeft, Amount: 0.15},
	{ID: "perspective_right", Label: "Tilt right", Description: "Wall seen from the right (2000x2000)", Width: 2000, Height: 2000, Category: types.CategorySecondary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter, Mode: types.ModePerspective, Direction: types.DirectionRight, Amount: 0.15},
	{ID: "corner_interior", Label: "Interior corner", Description: "Two walls meeting in a corner (2400x1800)", Width: 2400, Height: 1800, Category: types.CategorySecondary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter, Mode: types.ModePerspective, Direction: types.DirectionCornerIn, Amount: 0.12},
	{ID: "size_map", Label: "Size map", Description: "Dimensions infographic base (2000x2000)", Width: 2000, Height: 2000, Category: types.CategorySecondary, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "pattern_repeat", Label: "Pattern repeat", Description: "Seam check as a 2x2 tile", Width: 2000, Height: 2000, Category: types.CategorySecondary, Mode: types.ModeTile},

	// social
	{ID: "insta_feed", Label: "Instagram 4:5", Description: "Feed post (1080x1350)", Width: 1080, Height: 1350, Category: types.CategorySocial, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "stories_reels", Label: "Stories", Description: "Reels and stories (1080x1920)", Width: 1080, Height: 1920, Category: types.CategorySocial, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
	{ID: "pinterest_pin", Label: "Pinterest", Description: "Pin format (1000x1500)", Width: 1000, Height: 1500, Category: types.CategorySocial, DefaultZoom: 1.0, DefaultAnchor: types.AnchorCenter},
}

var byID = func() map[string]Preset {
	m := make(map[string]Preset, len(catalog))
	for _, p := range catalog {
		m[p.ID] = p
	}
	return m
}()

// All returns a copy of the catalog in display order.
func All() []Preset {
	out := make([]Preset, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns every preset id in display order.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, p := range catalog {
		ids = append(ids, p.ID)
	}
	return ids
}

// Lookup finds a preset by id.
func Lookup(id string) (Preset, error) {
	p, ok := byID[id]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", types.ErrUnknownPreset, id)
	}
	return p, nil
}

// LookupAll resolves a list of ids, failing on the first unknown one.
func LookupAll(ids []string) ([]Preset, error) {
	out := make([]Preset, 0, len(ids))
	for _, id := range ids {
		p, err := Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ByCategory filters the catalog.
func ByCategory(c types.Category) []Preset {
	var out []Preset
	for _, p := range catalog {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// Grouped returns the catalog keyed by category.
func Grouped() map[types.Category][]Preset {
	return map[types.Category][]Preset{
		types.CategoryPrimary:   ByCategory(types.CategoryPrimary),
		types.CategorySecondary: ByCategory(types.CategorySecondary),
		types.CategorySocial:    ByCategory(types.CategorySocial),
	}
}

// Custom builds an ad-hoc preset for explicit dimensions.
func Custom(width, height int, mode types.Mode) (Preset, error) {
	p := Preset{
		ID:            fmt.Sprintf("custom_%dx%d", width, height),
		Label:         fmt.Sprintf("%dx%d", width, height),
		Width:         width,
		Height:        height,
		Category:      types.CategorySecondary,
		DefaultZoom:   1.0,
		DefaultAnchor: types.AnchorCenter,
		Mode:          mode,
	}
	if mode != types.ModeNone {
		p.ID = fmt.Sprintf("custom_%s_%dx%d", mode, width, height)
	}
	if mode == types.ModePerspective {
		p.Direction = types.DirectionLeft
		p.Amount = 0.15
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}
