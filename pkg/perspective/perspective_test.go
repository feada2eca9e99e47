package perspective

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/listing-studio/pkg/cropper"
	"github.com/menta2k/listing-studio/pkg/types"
)

func createSolidImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createStripedImage has a distinct colour in every column band so
// misplaced slices show up in pixel comparisons.
func createStripedImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 90, 255})
		}
	}
	return img
}

func fullArea(img image.Image) types.CropArea {
	b := img.Bounds()
	return types.CropArea{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

func TestSliceScale(t *testing.T) {
	assert.InDelta(t, 1.0, SliceScale(types.DirectionLeft, 0, 0.3), 1e-12)
	assert.InDelta(t, 0.7, SliceScale(types.DirectionLeft, 1, 0.3), 1e-12)
	assert.InDelta(t, 0.7, SliceScale(types.DirectionRight, 0, 0.3), 1e-12)
	assert.InDelta(t, 1.0, SliceScale(types.DirectionRight, 1, 0.3), 1e-12)
	assert.InDelta(t, 0.85, SliceScale(types.DirectionLeft, 0.5, 0.3), 1e-12)
}

func TestNormalizeAmount(t *testing.T) {
	a, err := NormalizeAmount(0.2)
	require.NoError(t, err)
	assert.Equal(t, 0.2, a)

	a, err = NormalizeAmount(1.5)
	require.NoError(t, err)
	assert.Equal(t, MaxAmount, a)

	_, err = NormalizeAmount(-0.1)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = NormalizeAmount(math.NaN())
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRenderZeroAmountMatchesCrop(t *testing.T) {
	src := createStripedImage(300, 200)
	area := cropper.CalculateCropArea(300, 200, 120, 90, 1, types.AnchorCenter)

	want, err := cropper.CropImage(src, area, 120, 90)
	require.NoError(t, err)

	for _, dir := range []types.Direction{types.DirectionLeft, types.DirectionRight} {
		got, err := Render(src, area, 120, 90, Options{Direction: dir, Amount: 0})
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, 120, 90), got.Bounds())

		for y := 0; y < 90; y += 5 {
			for x := 0; x < 120; x += 5 {
				w := color.RGBAModel.Convert(want.At(x, y)).(color.RGBA)
				assert.Equal(t, w, got.RGBAAt(x, y), "%s pixel %d,%d", dir, x, y)
			}
		}
	}
}

func TestRenderLeftLetterboxesRightEdge(t *testing.T) {
	src := createSolidImage(100, 100, color.RGBA{120, 120, 120, 255})
	out, err := Render(src, fullArea(src), 100, 100, Options{Direction: types.DirectionLeft, Amount: 0.5})
	require.NoError(t, err)

	// tall on the left
	assert.Equal(t, uint8(255), out.RGBAAt(0, 2).A)
	assert.Equal(t, uint8(255), out.RGBAAt(0, 97).A)
	// short on the right
	assert.Equal(t, uint8(0), out.RGBAAt(99, 5).A)
	assert.Equal(t, uint8(0), out.RGBAAt(99, 94).A)
	assert.Equal(t, uint8(255), out.RGBAAt(99, 50).A)
}

func TestRenderRightLetterboxesLeftEdge(t *testing.T) {
	src := createSolidImage(100, 100, color.RGBA{120, 120, 120, 255})
	out, err := Render(src, fullArea(src), 100, 100, Options{Direction: types.DirectionRight, Amount: 0.5})
	require.NoError(t, err)

	assert.Equal(t, uint8(0), out.RGBAAt(0, 5).A)
	assert.Equal(t, uint8(255), out.RGBAAt(0, 50).A)
	assert.Equal(t, uint8(255), out.RGBAAt(99, 2).A)
}

func TestRenderLightingDarkensRecedingSide(t *testing.T) {
	src := createSolidImage(100, 100, color.RGBA{200, 200, 200, 255})

	left, err := Render(src, fullArea(src), 100, 100, Options{Direction: types.DirectionLeft, Amount: 0.2})
	require.NoError(t, err)
	assert.Less(t, left.RGBAAt(95, 50).R, left.RGBAAt(4, 50).R)

	right, err := Render(src, fullArea(src), 100, 100, Options{Direction: types.DirectionRight, Amount: 0.2})
	require.NoError(t, err)
	assert.Less(t, right.RGBAAt(4, 50).R, right.RGBAAt(95, 50).R)
}

func TestRenderCornerIn(t *testing.T) {
	src := createSolidImage(200, 100, color.RGBA{200, 200, 200, 255})
	out, err := Render(src, fullArea(src), 200, 100, Options{Direction: types.DirectionCornerIn, Amount: 0.4})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 200, 100), out.Bounds())

	// both outer edges letterboxed, the join is full height
	assert.Equal(t, uint8(0), out.RGBAAt(0, 5).A)
	assert.Equal(t, uint8(0), out.RGBAAt(199, 5).A)
	assert.Equal(t, uint8(255), out.RGBAAt(99, 2).A)
	assert.Equal(t, uint8(255), out.RGBAAt(100, 2).A)

	// occlusion darkens the join relative to the middle of each wall
	assert.Less(t, out.RGBAAt(99, 50).R, out.RGBAAt(60, 50).R)
	assert.Less(t, out.RGBAAt(100, 50).R, out.RGBAAt(140, 50).R)
}

func TestRenderCornerInOddWidth(t *testing.T) {
	src := createSolidImage(64, 64, color.White)
	out, err := Render(src, fullArea(src), 101, 50, Options{Direction: types.DirectionCornerIn, Amount: 0.1})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 101, 50), out.Bounds())
	assert.Equal(t, uint8(255), out.RGBAAt(100, 25).A)
}

func TestRenderClampsLargeAmount(t *testing.T) {
	src := createSolidImage(50, 50, color.White)
	out, err := Render(src, fullArea(src), 50, 50, Options{Direction: types.DirectionLeft, Amount: 3})
	require.NoError(t, err)
	// the receding edge still has a visible sliver
	assert.Equal(t, uint8(255), out.RGBAAt(49, 25).A)
}

func TestRenderErrors(t *testing.T) {
	src := createSolidImage(10, 10, color.White)

	_, err := Render(nil, fullArea(src), 10, 10, Options{Direction: types.DirectionLeft})
	assert.ErrorIs(t, err, types.ErrRender)

	_, err = Render(src, fullArea(src), 10, 10, Options{Direction: "up"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = Render(src, fullArea(src), 10, 10, Options{Direction: types.DirectionLeft, Amount: -1})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = Render(src, fullArea(src), 0, 10, Options{Direction: types.DirectionLeft})
	assert.ErrorIs(t, err, types.ErrRender)
}

func BenchmarkRenderCornerIn(b *testing.B) {
	src := createStripedImage(1600, 1200)
	area := cropper.CalculateCropArea(1600, 1200, 1200, 900, 1, types.AnchorCenter)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Render(src, area, 1200, 900, Options{Direction: types.DirectionCornerIn, Amount: 0.12})
	}
}
