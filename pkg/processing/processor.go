package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/listing-studio/pkg/types"
)

// MaxDownloadBytes caps the size of an image fetched over HTTP.
const MaxDownloadBytes = 64 << 20

// EncodeOptions controls image export.
type EncodeOptions struct {
	Format types.Format
	// Quality in [0, 1]. Nil selects DefaultQuality. Ignored for PNG.
	Quality *float64
	// Lossless selects lossless WebP.
	Lossless bool
}

// DefaultQuality is used for lossy formats when no quality is given.
const DefaultQuality = 0.92

// Quality returns a pointer for EncodeOptions.Quality.
func Quality(q float64) *float64 {
	return &q
}

// Processor handles image decoding, encoding and download
type Processor struct {
	client    *http.Client
	userAgent string
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		client:    &http.Client{Timeout: 60 * time.Second},
		userAgent: "Listing-Studio/1.0",
	}
}

// WithHTTPClient replaces the client used by LoadImageFromURL.
func (p *Processor) WithHTTPClient(c *http.Client) *Processor {
	p.client = c
	return p
}

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes, applying EXIF
// orientation. The second return value is the detected format name.
func (p *Processor) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", types.ErrDecode)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		img, derr := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if derr == nil {
			if err := checkContext(ctx); err != nil {
				return nil, "", err
			}
			return img, format, nil
		}
		err = derr
	}

	// Fallback: explicit WebP decode for files the registered decoder rejects
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, "webp", nil
	}
	return nil, "", fmt.Errorf("%w: %v", types.ErrDecode, err)
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(ctx context.Context, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	img, _, err := p.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads from an http(s) URL or a local path.
func (p *Processor) LoadImageSmart(ctx context.Context, pathOrURL string) (image.Image, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return p.LoadImageFromURL(ctx, pathOrURL)
	}
	return p.LoadImage(ctx, pathOrURL)
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	data, err := p.Download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	img, _, err := p.Decode(ctx, data)
	return img, err
}

// Download fetches the raw bytes of an image URL
func (p *Processor) Download(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", types.ErrInvalidArgument, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported URL scheme %q", types.ErrInvalidArgument, parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		return nil, fmt.Errorf("%w: URL does not point to an image (Content-Type: %s)", types.ErrDecode, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", types.ErrInvalidArgument, MaxDownloadBytes)
	}
	return data, nil
}

// Encode serializes img in the requested format.
func (p *Processor) Encode(ctx context.Context, img image.Image, opts EncodeOptions) (types.EncodedImage, error) {
	if err := checkContext(ctx); err != nil {
		return types.EncodedImage{}, err
	}
	if img == nil {
		return types.EncodedImage{}, fmt.Errorf("%w: nil image", types.ErrRender)
	}

	format := opts.Format
	if format == "" {
		format = types.FormatPNG
	}

	var buf bytes.Buffer
	switch format {
	case types.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return types.EncodedImage{}, fmt.Errorf("%w: encoding png: %v", types.ErrRender, err)
		}
	case types.FormatJPEG:
		q := &jpeg.Options{Quality: jpegQuality(opts.Quality)}
		if err := jpeg.Encode(&buf, Flatten(img, color.White), q); err != nil {
			return types.EncodedImage{}, fmt.Errorf("%w: encoding jpeg: %v", types.ErrRender, err)
		}
	case types.FormatWebP:
		wo := &webp.Options{Lossless: opts.Lossless, Quality: float32(qualityOrDefault(opts.Quality) * 100)}
		if err := webp.Encode(&buf, img, wo); err != nil {
			return types.EncodedImage{}, fmt.Errorf("%w: encoding webp: %v", types.ErrRender, err)
		}
	default:
		return types.EncodedImage{}, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
	}

	if err := checkContext(ctx); err != nil {
		return types.EncodedImage{}, err
	}
	b := img.Bounds()
	return types.EncodedImage{Data: buf.Bytes(), Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// PrepareImageForModel downsizes img to maxDim and returns it as base64
// JPEG for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img, color.White), &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Flatten composites img onto an opaque background.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

func qualityOrDefault(q *float64) float64 {
	if q == nil || math.IsNaN(*q) {
		return DefaultQuality
	}
	return clamp(*q, 0, 1)
}

func jpegQuality(q *float64) int {
	v := int(math.Round(qualityOrDefault(q) * 100))
	if v < 1 {
		v = 1
	}
	if v > 100 {
		v = 100
	}
	return v
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
