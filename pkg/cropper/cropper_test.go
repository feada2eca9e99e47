package cropper

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/listing-studio/pkg/types"
)

// createSolidImage creates a width x height image filled with c
func createSolidImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createTestImage creates a dark image with a bright block on the right
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > 3*width/4 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 220, 40, 255})
			} else {
				img.Set(x, y, color.RGBA{30, 30, 30, 255})
			}
		}
	}
	return img
}

func TestCalculateCropAreaCoverScenario(t *testing.T) {
	area := CalculateCropArea(4000, 3000, 2000, 2000, 1.0, types.AnchorCenter)
	assert.Equal(t, types.CropArea{X: 500, Y: 0, Width: 3000, Height: 3000}, area)
}

func TestCalculateCropAreaContainment(t *testing.T) {
	sources := [][2]int{{4000, 3000}, {3000, 4000}, {1000, 1000}, {1920, 1080}, {333, 777}}
	targets := [][2]int{{3000, 2250}, {2000, 2000}, {1080, 1920}, {1000, 1500}, {2400, 1800}}
	zooms := []float64{1, 1.4, 2.5, 10}

	const eps = 1e-9
	for _, s := range sources {
		for _, tg := range targets {
			for _, z := range zooms {
				for _, a := range types.Anchors() {
					area := CalculateCropArea(s[0], s[1], tg[0], tg[1], z, a)
					assert.GreaterOrEqual(t, area.X, -eps)
					assert.GreaterOrEqual(t, area.Y, -eps)
					assert.LessOrEqual(t, area.X+area.Width, float64(s[0])+eps)
					assert.LessOrEqual(t, area.Y+area.Height, float64(s[1])+eps)
					assert.InDelta(t, float64(tg[0])/float64(tg[1]), area.AspectRatio(), 1e-9)
				}
			}
		}
	}
}

func TestCalculateCropAreaCentered(t *testing.T) {
	area := CalculateCropArea(1920, 1080, 1000, 1500, 1, types.AnchorCenter)
	assert.InDelta(t, (1920-area.Width)/2, area.X, 1e-9)
	assert.InDelta(t, (1080-area.Height)/2, area.Y, 1e-9)
}

func TestCalculateCropAreaZoomShrinks(t *testing.T) {
	prev := CalculateCropArea(4000, 3000, 3000, 2250, 1, types.AnchorCenter)
	for _, z := range []float64{1.1, 1.5, 2, 4} {
		cur := CalculateCropArea(4000, 3000, 3000, 2250, z, types.AnchorCenter)
		assert.Less(t, cur.Width, prev.Width)
		assert.Less(t, cur.Height, prev.Height)
		prev = cur
	}
}

func TestCalculateCropAreaCornerAnchors(t *testing.T) {
	tl := CalculateCropArea(4000, 3000, 1000, 1000, 2, types.AnchorTopLeft)
	assert.Equal(t, 0.0, tl.X)
	assert.Equal(t, 0.0, tl.Y)

	br := CalculateCropArea(4000, 3000, 1000, 1000, 2, types.AnchorBottomRight)
	assert.Equal(t, 4000-br.Width, br.X)
	assert.Equal(t, 3000-br.Height, br.Y)

	top := CalculateCropArea(4000, 3000, 1000, 1000, 2, types.AnchorTop)
	assert.Equal(t, (4000-top.Width)/2, top.X)
	assert.Equal(t, 0.0, top.Y)
}

func TestCalculateCropAreaZoomBelowOne(t *testing.T) {
	a := CalculateCropArea(400, 300, 100, 100, 0.5, types.AnchorCenter)
	b := CalculateCropArea(400, 300, 100, 100, 1, types.AnchorCenter)
	assert.Equal(t, b, a)

	nan := CalculateCropArea(400, 300, 100, 100, math.NaN(), types.AnchorCenter)
	assert.Equal(t, b, nan)
}

func TestCalculateCropAreaInvalidDimensions(t *testing.T) {
	assert.Equal(t, types.CropArea{}, CalculateCropArea(0, 300, 100, 100, 1, types.AnchorCenter))
	assert.Equal(t, types.CropArea{}, CalculateCropArea(400, 300, 100, 0, 1, types.AnchorCenter))
}

func TestPixelRect(t *testing.T) {
	b := image.Rect(0, 0, 100, 100)
	r := PixelRect(types.CropArea{X: 10.4, Y: 9.6, Width: 20, Height: 20}, b)
	assert.Equal(t, image.Rect(10, 10, 30, 30), r)

	// offset bounds are honoured
	r = PixelRect(types.CropArea{X: 0, Y: 0, Width: 10, Height: 10}, image.Rect(5, 5, 50, 50))
	assert.Equal(t, image.Rect(5, 5, 15, 15), r)

	// tiny areas still produce one pixel
	r = PixelRect(types.CropArea{X: 3, Y: 3, Width: 0.1, Height: 0.1}, b)
	assert.Equal(t, 1, r.Dx())
	assert.Equal(t, 1, r.Dy())
}

func TestCropImageSolidColor(t *testing.T) {
	red := color.RGBA{200, 20, 20, 255}
	src := createSolidImage(400, 300, red)

	for _, z := range []float64{1, 1.7, 3} {
		area := CalculateCropArea(400, 300, 120, 90, z, types.AnchorBottomLeft)
		out, err := CropImage(src, area, 120, 90)
		require.NoError(t, err)
		assert.Equal(t, 120, out.Bounds().Dx())
		assert.Equal(t, 90, out.Bounds().Dy())
		for y := 0; y < 90; y += 7 {
			for x := 0; x < 120; x += 7 {
				c := out.NRGBAAt(x, y)
				assert.Equal(t, color.NRGBA{200, 20, 20, 255}, c, "pixel %d,%d zoom %.1f", x, y, z)
			}
		}
	}
}

func TestCropImageDownsample(t *testing.T) {
	src := createSolidImage(400, 300, color.White)
	area := CalculateCropArea(400, 300, 200, 200, 1, types.AnchorCenter)
	out, err := CropImage(src, area, 200, 200)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
}

func TestCropImageSameSizeSkipsResample(t *testing.T) {
	src := createTestImage(100, 100)
	out, err := CropImage(src, types.CropArea{X: 10, Y: 10, Width: 50, Height: 50}, 50, 50)
	require.NoError(t, err)

	r, g, b, a := src.At(55, 50).RGBA()
	r2, g2, b2, a2 := out.At(45, 40).RGBA()
	assert.Equal(t, []uint32{r, g, b, a}, []uint32{r2, g2, b2, a2})
}

func TestCropImageErrors(t *testing.T) {
	src := createSolidImage(10, 10, color.White)

	_, err := CropImage(nil, types.CropArea{Width: 1, Height: 1}, 10, 10)
	assert.ErrorIs(t, err, types.ErrRender)

	_, err = CropImage(src, types.CropArea{Width: 1, Height: 1}, 0, 10)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = CropImage(src, types.CropArea{X: 50, Y: 50, Width: 5, Height: 5}, 10, 10)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestTileImageQuadrants(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	src := createSolidImage(100, 100, red)

	out, err := TileImage(src, 400, 400)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 400, 400), out.Bounds())

	for _, origin := range []image.Point{{0, 0}, {200, 0}, {0, 200}, {200, 200}} {
		for _, d := range []image.Point{{0, 0}, {199, 0}, {0, 199}, {199, 199}, {100, 100}} {
			p := origin.Add(d)
			assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(p.X, p.Y), "pixel %v", p)
		}
	}
}

func TestTileImageRepeatsWholeSource(t *testing.T) {
	// left half black, right half white: every quadrant must show both halves
	src := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x >= 20 {
				src.Set(x, y, color.White)
			} else {
				src.Set(x, y, color.Black)
			}
		}
	}

	out, err := TileImage(src, 81, 80)
	require.NoError(t, err)
	assert.Equal(t, 81, out.Bounds().Dx())

	assert.Equal(t, uint8(0), out.NRGBAAt(2, 10).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(38, 10).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(42, 50).R)
	assert.Equal(t, uint8(255), out.NRGBAAt(79, 50).R)
}

func TestTileImageErrors(t *testing.T) {
	_, err := TileImage(nil, 10, 10)
	assert.ErrorIs(t, err, types.ErrRender)

	_, err = TileImage(createSolidImage(4, 4, color.White), 1, 10)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSuggestAnchor(t *testing.T) {
	img := createTestImage(400, 200)

	anchor, err := SuggestAnchor(img, 100, 100)
	require.NoError(t, err)
	assert.Contains(t, types.Anchors(), anchor)

	_, err = SuggestAnchor(img, 0, 100)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestAxisPosition(t *testing.T) {
	assert.Equal(t, 0, axisPosition(10, 0.5))
	assert.Equal(t, -1, axisPosition(0, 300))
	assert.Equal(t, 0, axisPosition(150, 300))
	assert.Equal(t, 1, axisPosition(300, 300))
}

func BenchmarkCropImage(b *testing.B) {
	img := createTestImage(1920, 1080)
	area := CalculateCropArea(1920, 1080, 1000, 1000, 1, types.AnchorCenter)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = CropImage(img, area, 1000, 1000)
	}
}
