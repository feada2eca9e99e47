package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/menta2k/listing-studio/pkg/types"
)

// ImageAnalyzer vets source images before they enter the render pipeline
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
	// MaxPixels rejects sources whose decoded size would exceed it. Zero disables the check.
	MaxPixels int64
}

// DefaultConfig accepts the formats the studio can decode.
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "webp", "gif", "bmp", "tiff"},
		MinImageSize:     16,
		MaxPixels:        120_000_000,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Format      string  `json:"format,omitempty"`
}

// Inspect reads only the header of data and validates it.
func (a *ImageAnalyzer) Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	if !a.isFormatSupported(format) {
		return ImageInfo{}, fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, format)
	}

	info := newInfo(cfg.Width, cfg.Height)
	info.Format = format
	if err := a.validateSize(info); err != nil {
		return ImageInfo{}, err
	}
	return info, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	return newInfo(bounds.Dx(), bounds.Dy())
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", types.ErrInvalidArgument)
	}
	return a.validateSize(a.GetImageInfo(img))
}

func (a *ImageAnalyzer) validateSize(info ImageInfo) error {
	if info.Width < a.config.MinImageSize || info.Height < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			types.ErrInvalidArgument, info.Width, info.Height, a.config.MinImageSize)
	}
	if a.config.MaxPixels > 0 && int64(info.Width)*int64(info.Height) > a.config.MaxPixels {
		return fmt.Errorf("%w: image too large: %dx%d (maximum: %d pixels)",
			types.ErrInvalidArgument, info.Width, info.Height, a.config.MaxPixels)
	}
	return nil
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

func newInfo(w, h int) ImageInfo {
	info := ImageInfo{Width: w, Height: h, Area: w * h}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}
