package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/menta2k/listing-studio/pkg/types"
)

// resizer adapts imaging to the smartcrop Resizer interface.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// SuggestAnchor runs a saliency analysis and returns the named anchor whose
// cover-fit crop is closest to the most interesting region for a
// targetW x targetH output.
func SuggestAnchor(img image.Image, targetW, targetH int) (types.Anchor, error) {
	if img == nil {
		return "", fmt.Errorf("%w: nil source", types.ErrRender)
	}
	if targetW <= 0 || targetH <= 0 {
		return "", fmt.Errorf("%w: target size %dx%d", types.ErrInvalidArgument, targetW, targetH)
	}

	b := img.Bounds()
	cover := CalculateCropArea(b.Dx(), b.Dy(), targetW, targetH, 1, types.AnchorCenter)

	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Linear})
	best, err := analyzer.FindBestCrop(img, targetW, targetH)
	if err != nil {
		return "", fmt.Errorf("finding best crop: %w", err)
	}
	best = best.Sub(b.Min)

	h := axisPosition(float64(best.Min.X), float64(b.Dx())-cover.Width)
	v := axisPosition(float64(best.Min.Y), float64(b.Dy())-cover.Height)
	return types.AnchorFrom(h, v), nil
}

// axisPosition buckets an offset within the free travel into thirds.
func axisPosition(offset, free float64) int {
	if free < 1 {
		return 0
	}
	f := offset / free
	switch {
	case f < 1.0/3:
		return -1
	case f > 2.0/3:
		return 1
	}
	return 0
}
