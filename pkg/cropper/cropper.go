package cropper

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/listing-studio/pkg/types"
)

// CalculateCropArea returns the cover-fit rectangle of the target aspect ratio
// inside an imgW x imgH source, shrunk by zoom and positioned by anchor.
//
// Zoom values below 1 (and NaN) are treated as 1 so the result always lies
// inside the source.
func CalculateCropArea(imgW, imgH, targetW, targetH int, zoom float64, anchor types.Anchor) types.CropArea {
	if imgW <= 0 || imgH <= 0 || targetW <= 0 || targetH <= 0 {
		return types.CropArea{}
	}
	if zoom < 1 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}

	fw, fh := float64(imgW), float64(imgH)
	targetRatio := float64(targetW) / float64(targetH)
	imgRatio := fw / fh

	var dw, dh float64
	if imgRatio > targetRatio {
		// source is wider than the target: height bound
		dh = fh
		dw = fh * targetRatio
	} else {
		dw = fw
		dh = fw / targetRatio
	}

	dw /= zoom
	dh /= zoom

	var x, y float64
	switch anchor.Horizontal() {
	case -1:
		x = 0
	case 1:
		x = fw - dw
	default:
		x = (fw - dw) / 2
	}
	switch anchor.Vertical() {
	case -1:
		y = 0
	case 1:
		y = fh - dh
	default:
		y = (fh - dh) / 2
	}

	return types.CropArea{X: x, Y: y, Width: dw, Height: dh}
}

// PixelRect rounds a crop area onto the pixel grid of bounds. The result is
// never empty for a non-empty bounds.
func PixelRect(area types.CropArea, bounds image.Rectangle) image.Rectangle {
	x0 := int(math.Round(area.X))
	y0 := int(math.Round(area.Y))
	x1 := int(math.Round(area.X + area.Width))
	y1 := int(math.Round(area.Y + area.Height))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	r := image.Rect(x0, y0, x1, y1).Add(bounds.Min)
	return r.Intersect(bounds)
}

// CropImage samples area from src and resamples it to exactly targetW x targetH.
func CropImage(src image.Image, area types.CropArea, targetW, targetH int) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", types.ErrInvalidArgument, targetW, targetH)
	}

	rect := PixelRect(area, src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: crop area %+v outside image %v", types.ErrInvalidArgument, area, src.Bounds())
	}

	cropped := imaging.Crop(src, rect)
	if cropped.Bounds().Dx() == targetW && cropped.Bounds().Dy() == targetH {
		return cropped, nil
	}
	return imaging.Resize(cropped, targetW, targetH, imaging.Lanczos), nil
}

// TileImage draws the whole of src into each quadrant of a targetW x targetH
// canvas. Odd sizes give the right column and bottom row the extra pixel.
func TileImage(src image.Image, targetW, targetH int) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	if targetW < 2 || targetH < 2 {
		return nil, fmt.Errorf("%w: tile target %dx%d", types.ErrInvalidArgument, targetW, targetH)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	w1, h1 := targetW/2, targetH/2
	cols := [2][2]int{{0, w1}, {w1, targetW}}
	rows := [2][2]int{{0, h1}, {h1, targetH}}

	scaled := map[image.Point]*image.NRGBA{}
	for _, row := range rows {
		for _, col := range cols {
			quad := image.Rect(col[0], row[0], col[1], row[1])
			size := quad.Size()
			tile, ok := scaled[size]
			if !ok {
				tile = imaging.Resize(src, size.X, size.Y, imaging.Lanczos)
				scaled[size] = tile
			}
			draw.Draw(dst, quad, tile, image.Point{}, draw.Src)
		}
	}
	return dst, nil
}
