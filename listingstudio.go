// Package listingstudio turns one product photo into the set of images a
// marketplace listing needs.
//
// Basic usage:
//
//	studio := listingstudio.New()
//
//	data, _ := os.ReadFile("wallpaper.jpg")
//	results, err := studio.GenerateAll(ctx, data, []string{"main_4_3", "insta_feed"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for id, enc := range results {
//		_ = os.WriteFile(id+"."+enc.Format.Extension(), enc.Data, 0o644)
//	}
//
// The package wires together the building blocks under pkg/:
//
//   - presets: the catalog of output sizes and render modes
//   - cropper: crop-area math and the crop/tile rasterizers
//   - perspective: simulated wall perspective and interior corners
//   - warp: pattern-onto-wall compositing from four corners
//   - batch: concurrent rendering of many presets from one source
//   - session: interactive editing state behind the studio server
//
// Interactive use goes through NewSession, which returns a session stored in
// the studio's in-memory store.
package listingstudio

import (
	"context"
	"fmt"

	"github.com/menta2k/listing-studio/pkg/analyzer"
	"github.com/menta2k/listing-studio/pkg/batch"
	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/session"
	"github.com/menta2k/listing-studio/pkg/types"
	"github.com/menta2k/listing-studio/pkg/warp"
)

// Version of the listing studio library
const Version = "1.0.0"

// Options configures a Studio. The zero value is usable.
type Options struct {
	// MaxWorkers bounds batch concurrency; zero uses one worker per CPU.
	MaxWorkers int
	Encode     processing.EncodeOptions
	// Estimator proposes wall corners for new sessions.
	Estimator warp.CornerEstimator
	Analyzer  analyzer.Config
}

// Studio provides a high-level interface over the rendering packages
type Studio struct {
	analyzer     *analyzer.ImageAnalyzer
	proc         *processing.Processor
	orchestrator *batch.Orchestrator
	store        *session.Store
	encode       processing.EncodeOptions
}

// New creates a Studio with default configuration
func New() *Studio {
	return NewWithOptions(Options{Analyzer: analyzer.DefaultConfig()})
}

// NewWithOptions creates a Studio with custom configuration
func NewWithOptions(opts Options) *Studio {
	if opts.Analyzer.MinImageSize == 0 && len(opts.Analyzer.SupportedFormats) == 0 {
		opts.Analyzer = analyzer.DefaultConfig()
	}
	proc := processing.NewProcessor()
	orch := batch.New(proc, opts.MaxWorkers)
	return &Studio{
		analyzer:     analyzer.NewWithConfig(opts.Analyzer),
		proc:         proc,
		orchestrator: orch,
		store: session.NewStore(session.Config{
			Processor:    proc,
			Orchestrator: orch,
			Estimator:    opts.Estimator,
			Encode:       opts.Encode,
		}),
		encode: opts.Encode,
	}
}

// Inspect validates an encoded image without decoding its pixels.
func (s *Studio) Inspect(data []byte) (analyzer.ImageInfo, error) {
	return s.analyzer.Inspect(data)
}

// GenerateAll renders every listed preset from data. An empty list renders
// every preset that needs nothing but the source image.
func (s *Studio) GenerateAll(ctx context.Context, data []byte, ids []string) (map[string]types.EncodedImage, error) {
	if _, err := s.analyzer.Inspect(data); err != nil {
		return nil, err
	}
	list, err := s.resolve(ids)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.RunBytes(ctx, data, list, batch.Options{Encode: s.encode})
}

func (s *Studio) resolve(ids []string) ([]presets.Preset, error) {
	if len(ids) > 0 {
		return presets.LookupAll(ids)
	}
	var list []presets.Preset
	for _, p := range presets.All() {
		if p.Mode != types.ModeWarp {
			list = append(list, p)
		}
	}
	return list, nil
}

// Warp lays pattern onto the wall quad of background. Zero width or height
// keeps the background size.
func (s *Studio) Warp(ctx context.Context, background, pattern []byte, corners types.WallCoordinates, width, height int) (types.EncodedImage, error) {
	if _, err := s.analyzer.Inspect(background); err != nil {
		return types.EncodedImage{}, err
	}
	if len(pattern) > 0 {
		if _, err := s.analyzer.Inspect(pattern); err != nil {
			return types.EncodedImage{}, err
		}
	}
	enc, _, err := warp.CreateWarpedImage(ctx, s.proc, background, pattern, corners, warp.CreateOptions{
		Width:  width,
		Height: height,
		Encode: s.encode,
	})
	return enc, err
}

// NewSession decodes data and opens an interactive session on it.
func (s *Studio) NewSession(ctx context.Context, data []byte) (*session.Session, error) {
	if _, err := s.analyzer.Inspect(data); err != nil {
		return nil, err
	}
	img, _, err := s.proc.Decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return s.store.Create(img)
}

// Sessions returns the studio's session store.
func (s *Studio) Sessions() *session.Store {
	return s.store
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
