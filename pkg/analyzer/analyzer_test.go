package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/menta2k/listing-studio/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
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

func TestNewWithConfig(t *testing.T) {
	cfg := Config{
		SupportedFormats: []string{"png"},
		MinImageSize:     200,
	}

	analyzer := NewWithConfig(cfg)
	if analyzer == nil {
		t.Fatal("NewWithConfig() returned nil")
	}

	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}

	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}
}

func TestInspect(t *testing.T) {
	analyzer := New()

	info, err := analyzer.Inspect(encodePNG(t, createTestImage(64, 32)))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "png" || info.Width != 64 || info.Height != 32 {
		t.Errorf("unexpected info %+v", info)
	}

	if _, err := analyzer.Inspect([]byte("nope")); !errors.Is(err, types.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	pngOnly := NewWithConfig(Config{SupportedFormats: []string{"jpeg"}})
	if _, err := pngOnly.Inspect(encodePNG(t, createTestImage(64, 32))); !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := New()

	// Valid image
	if err := analyzer.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	// Invalid image (too small)
	if err := analyzer.ValidateImage(createTestImage(8, 50)); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("Small image should fail validation, got %v", err)
	}

	capped := NewWithConfig(Config{MaxPixels: 100})
	if err := capped.ValidateImage(createTestImage(20, 20)); err == nil {
		t.Error("Large image should fail validation")
	}

	if err := analyzer.ValidateImage(nil); err == nil {
		t.Error("nil image should fail validation")
	}
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := New()

	supportedFormats := []string{"jpeg", "png", "webp", "JPEG", "PNG"}
	for _, format := range supportedFormats {
		if !analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	unsupportedFormats := []string{"svg", "heic", ""}
	for _, format := range unsupportedFormats {
		if analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkInspect(b *testing.B) {
	analyzer := New()
	var buf bytes.Buffer
	_ = png.Encode(&buf, createTestImage(1920, 1080))
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = analyzer.Inspect(data)
	}
}
