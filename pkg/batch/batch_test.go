package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
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

func smallPresets(t *testing.T) []presets.Preset {
	t.Helper()
	crop, err := presets.Custom(120, 90, types.ModeNone)
	require.NoError(t, err)
	tile, err := presets.Custom(80, 80, types.ModeTile)
	require.NoError(t, err)
	tilt, err := presets.Custom(100, 60, types.ModePerspective)
	require.NoError(t, err)
	return []presets.Preset{crop, tile, tilt}
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestRunReturnsOneEntryPerPreset(t *testing.T) {
	o := New(processing.NewProcessor(), 2)
	src := createSolidImage(400, 300, color.RGBA{90, 160, 30, 255})
	list := smallPresets(t)

	results, err := o.Run(context.Background(), src, list, Options{})
	require.NoError(t, err)
	require.Len(t, results, len(list))

	for _, p := range list {
		enc, ok := results[p.ID]
		require.True(t, ok, p.ID)
		assert.Equal(t, types.FormatPNG, enc.Format)
		w, h := decodedSize(t, enc.Data)
		assert.Equal(t, p.Width, w, p.ID)
		assert.Equal(t, p.Height, h, p.ID)
	}
}

func TestRunCatalogDimensions(t *testing.T) {
	main, err := presets.Lookup("main_4_3")
	require.NoError(t, err)
	square, err := presets.Lookup("thumb_square")
	require.NoError(t, err)

	o := New(nil, 0)
	src := createSolidImage(640, 480, color.White)
	results, err := o.Run(context.Background(), src, []presets.Preset{main, square}, Options{
		Encode: processing.EncodeOptions{Format: types.FormatJPEG, Quality: processing.Quality(0.5)},
	})
	require.NoError(t, err)

	w, h := decodedSize(t, results["main_4_3"].Data)
	assert.Equal(t, 3000, w)
	assert.Equal(t, 2250, h)
	w, h = decodedSize(t, results["thumb_square"].Data)
	assert.Equal(t, 2000, w)
	assert.Equal(t, 2000, h)
}

func TestRunFailsWholeBatch(t *testing.T) {
	o := New(processing.NewProcessor(), 4)
	src := createSolidImage(200, 200, color.White)

	broken := presets.Preset{
		ID: "broken", Width: 50, Height: 50,
		Mode: types.ModePerspective, Direction: "sideways",
	}
	list := append(smallPresets(t), broken)

	results, err := o.Run(context.Background(), src, list, Options{})
	require.Error(t, err)
	assert.Nil(t, results)

	var be *types.BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "broken", be.PresetID)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRunRejectsWarpPresets(t *testing.T) {
	warp, err := presets.Lookup("perspective_warp")
	require.NoError(t, err)

	_, err = New(nil, 1).Run(context.Background(), createSolidImage(10, 10, color.White), []presets.Preset{warp}, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestRunEmptyAndDuplicates(t *testing.T) {
	o := New(nil, 1)
	src := createSolidImage(100, 100, color.White)

	results, err := o.Run(context.Background(), src, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, results)

	p, err := presets.Custom(20, 20, types.ModeNone)
	require.NoError(t, err)
	results, err = o.Run(context.Background(), src, []presets.Preset{p, p}, Options{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, 1).Run(ctx, createSolidImage(50, 50, color.White), smallPresets(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createSolidImage(64, 48, color.Black)))

	o := New(nil, 2)
	results, err := o.RunBytes(context.Background(), buf.Bytes(), smallPresets(t), Options{})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = o.RunBytes(context.Background(), []byte("nope"), smallPresets(t), Options{})
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestRunParamsOverride(t *testing.T) {
	// left half red, right half blue: an explicit area on the right half must come out blue
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if x < 100 {
				src.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				src.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}
	p, err := presets.Custom(50, 50, types.ModeNone)
	require.NoError(t, err)

	area := types.CropArea{X: 120, Y: 10, Width: 60, Height: 60}
	results, err := New(nil, 1).Run(context.Background(), src, []presets.Preset{p}, Options{
		Params: map[string]Params{p.ID: {Area: &area}},
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(results[p.ID].Data))
	require.NoError(t, err)
	r, _, b, _ := img.At(25, 25).RGBA()
	assert.Zero(t, r>>8)
	assert.Equal(t, uint32(255), b>>8)
}

func TestAreaFor(t *testing.T) {
	p, err := presets.Lookup("thumb_square")
	require.NoError(t, err)

	assert.Equal(t, types.CropArea{X: 500, Y: 0, Width: 3000, Height: 3000}, AreaFor(4000, 3000, p, Params{}))

	left := AreaFor(4000, 3000, p, Params{Anchor: types.AnchorLeft})
	assert.Equal(t, 0.0, left.X)

	zoomed := AreaFor(4000, 3000, p, Params{Zoom: 2})
	assert.Equal(t, 1500.0, zoomed.Width)
}

func TestRenderPresetModes(t *testing.T) {
	src := createSolidImage(300, 200, color.White)
	for _, p := range smallPresets(t) {
		img, err := RenderPreset(src, p, Params{})
		require.NoError(t, err, p.ID)
		assert.Equal(t, image.Rect(0, 0, p.Width, p.Height), img.Bounds(), p.ID)
	}

	warp, err := presets.Custom(10, 10, types.ModeWarp)
	require.NoError(t, err)
	_, err = RenderPreset(src, warp, Params{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = RenderPreset(nil, warp, Params{})
	assert.ErrorIs(t, err, types.ErrRender)
}

func TestResultSet(t *testing.T) {
	rs := NewResultSet()
	rs.Put("b", types.EncodedImage{Width: 1})
	rs.Put("a", types.EncodedImage{Width: 2})
	rs.Put("b", types.EncodedImage{Width: 3})

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"a", "b"}, rs.Keys())
	got, ok := rs.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, got.Width)

	rs.Merge(map[string]types.EncodedImage{"c": {Width: 4}, "a": {Width: 5}})
	assert.Equal(t, 3, rs.Len())
	snap := rs.Snapshot()
	assert.Equal(t, 5, snap["a"].Width)

	rs.Clear()
	assert.Zero(t, rs.Len())
	_, ok = rs.Get("a")
	assert.False(t, ok)
	assert.Len(t, snap, 3, "snapshot is a copy")
}

func TestResultSetConcurrent(t *testing.T) {
	rs := NewResultSet()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rs.Put(fmt.Sprintf("p%d", i%10), types.EncodedImage{Width: i})
			_ = rs.Keys()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, rs.Len())
}
