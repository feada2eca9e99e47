package listingstudio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/menta2k/listing-studio/pkg/analyzer"
	"github.com/menta2k/listing-studio/pkg/types"
)

// createTestImage creates a simple test image with a bright center
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	studio := New()
	if studio == nil {
		t.Fatal("New() returned nil")
	}
	if studio.analyzer == nil {
		t.Error("analyzer component is nil")
	}
	if studio.orchestrator == nil {
		t.Error("orchestrator component is nil")
	}
	if studio.Sessions() == nil {
		t.Error("session store is nil")
	}
}

func TestInspect(t *testing.T) {
	studio := NewWithOptions(Options{Analyzer: analyzer.Config{
		SupportedFormats: []string{"png"},
		MinImageSize:     200,
	}})

	if _, err := studio.Inspect(encodePNG(t, createTestImage(100, 100))); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for small image, got %v", err)
	}

	info, err := studio.Inspect(encodePNG(t, createTestImage(300, 200)))
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Width != 300 || info.Height != 200 || info.Format != "png" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestGenerateAll(t *testing.T) {
	studio := New()
	data := encodePNG(t, createTestImage(320, 240))

	results, err := studio.GenerateAll(context.Background(), data, []string{"insta_feed", "pinterest_pin"})
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	want := map[string][2]int{"insta_feed": {1080, 1350}, "pinterest_pin": {1000, 1500}}
	for id, size := range want {
		enc, ok := results[id]
		if !ok {
			t.Errorf("missing result for %s", id)
			continue
		}
		if enc.Width != size[0] || enc.Height != size[1] {
			t.Errorf("%s: got %dx%d, want %dx%d", id, enc.Width, enc.Height, size[0], size[1])
		}
	}
}

func TestGenerateAllErrors(t *testing.T) {
	studio := New()

	if _, err := studio.GenerateAll(context.Background(), []byte("nope"), nil); !errors.Is(err, types.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	data := encodePNG(t, createTestImage(64, 64))
	if _, err := studio.GenerateAll(context.Background(), data, []string{"missing"}); !errors.Is(err, types.ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
	if _, err := studio.GenerateAll(context.Background(), data, []string{"perspective_warp"}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for warp preset, got %v", err)
	}
}

func TestResolveSkipsWarp(t *testing.T) {
	list, err := New().resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) == 0 {
		t.Fatal("expected presets")
	}
	for _, p := range list {
		if p.Mode == types.ModeWarp {
			t.Errorf("warp preset %s should not be batched", p.ID)
		}
	}
}

func TestWarp(t *testing.T) {
	studio := New()
	bg := encodePNG(t, createTestImage(80, 60))
	pattern := encodePNG(t, createTestImage(20, 20))

	enc, err := studio.Warp(context.Background(), bg, pattern, types.DefaultWallCoordinates(), 40, 30)
	if err != nil {
		t.Fatalf("Warp failed: %v", err)
	}
	if enc.Width != 40 || enc.Height != 30 {
		t.Errorf("got %dx%d, want 40x30", enc.Width, enc.Height)
	}

	enc, err = studio.Warp(context.Background(), bg, nil, types.DefaultWallCoordinates(), 0, 0)
	if err != nil {
		t.Fatalf("Warp without pattern failed: %v", err)
	}
	if enc.Width != 80 || enc.Height != 60 {
		t.Errorf("got %dx%d, want background size", enc.Width, enc.Height)
	}
}

func TestWarpRejectsBadInputs(t *testing.T) {
	studio := New()
	bg := encodePNG(t, createTestImage(80, 60))
	tiny := encodePNG(t, createTestImage(4, 4))

	_, err := studio.Warp(context.Background(), bg, tiny, types.DefaultWallCoordinates(), 40, 30)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("tiny pattern: expected ErrInvalidArgument, got %v", err)
	}

	_, err = studio.Warp(context.Background(), tiny, nil, types.DefaultWallCoordinates(), 40, 30)
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("tiny background: expected ErrInvalidArgument, got %v", err)
	}

	_, err = studio.Warp(context.Background(), bg, []byte("not an image"), types.DefaultWallCoordinates(), 40, 30)
	if err == nil {
		t.Error("expected error for undecodable pattern")
	}
}

func TestNewSession(t *testing.T) {
	studio := New()
	sess, err := studio.NewSession(context.Background(), encodePNG(t, createTestImage(120, 90)))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	got, err := studio.Sessions().Get(sess.ID())
	if err != nil || got != sess {
		t.Errorf("session not stored: %v", err)
	}
	if st := sess.State(); st.SourceWidth != 120 || st.SourceHeight != 90 {
		t.Errorf("unexpected source size %dx%d", st.SourceWidth, st.SourceHeight)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %s, want %s", GetVersion(), Version)
	}
}
