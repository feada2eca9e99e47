// Package batch renders many presets of one source image concurrently.
package batch

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/menta2k/listing-studio/pkg/presets"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/types"
)

// Options configures one batch run.
type Options struct {
	Encode processing.EncodeOptions
	// Params holds per-preset overrides keyed by preset id.
	Params map[string]Params
}

// Orchestrator fans presets out over a bounded worker pool.
type Orchestrator struct {
	proc       *processing.Processor
	maxWorkers int
}

// New returns an orchestrator. maxWorkers <= 0 uses one worker per CPU.
func New(proc *processing.Processor, maxWorkers int) *Orchestrator {
	if proc == nil {
		proc = processing.NewProcessor()
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &Orchestrator{proc: proc, maxWorkers: maxWorkers}
}

// RunBytes decodes data once and runs the batch on it.
func (o *Orchestrator) RunBytes(ctx context.Context, data []byte, list []presets.Preset, opts Options) (map[string]types.EncodedImage, error) {
	src, _, err := o.proc.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, src, list, opts)
}

// Run renders and encodes every preset concurrently. The source is only
// read. It returns one entry per distinct preset id, or an error wrapping a
// *types.BatchError for the first preset that failed; partial results are
// never returned.
func (o *Orchestrator) Run(ctx context.Context, src image.Image, list []presets.Preset, opts Options) (map[string]types.EncodedImage, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", types.ErrRender)
	}
	for _, p := range list {
		if p.Mode == types.ModeWarp {
			return nil, fmt.Errorf("%w: warp preset %s cannot be batched", types.ErrInvalidArgument, p.ID)
		}
	}

	results := make(map[string]types.EncodedImage, len(list))
	if len(list) == 0 {
		log.Ctx(ctx).Warn().Msg("no presets to render")
		return results, nil
	}

	var mu sync.Mutex
	start := time.Now()
	pooler := pool.New().
		WithErrors().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(o.maxWorkers)

	for _, p := range dedupe(list) {
		pooler.Go(func(ctx context.Context) error {
			enc, err := o.renderOne(ctx, src, p, opts.Params[p.ID], opts.Encode)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("preset", p.ID).Msg("failed to render preset")
				return &types.BatchError{PresetID: p.ID, Err: err}
			}
			mu.Lock()
			results[p.ID] = enc
			mu.Unlock()
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("batch finished with errors")
		return nil, fmt.Errorf("batch: %w", err)
	}

	log.Ctx(ctx).Info().
		Int("presets", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return results, nil
}

func (o *Orchestrator) renderOne(ctx context.Context, src image.Image, p presets.Preset, params Params, enc processing.EncodeOptions) (types.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return types.EncodedImage{}, err
	}
	log.Ctx(ctx).Debug().Str("preset", p.ID).Str("mode", string(p.Mode)).Msg("rendering")

	img, err := RenderPreset(src, p, params)
	if err != nil {
		return types.EncodedImage{}, err
	}
	return o.proc.Encode(ctx, img, enc)
}

func dedupe(list []presets.Preset) []presets.Preset {
	seen := make(map[string]bool, len(list))
	out := make([]presets.Preset, 0, len(list))
	for _, p := range list {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
