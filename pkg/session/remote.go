package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/listing-studio/pkg/collab"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/types"
)

// Upscale sends the source to up, waits for the job and adopts the enlarged
// image as the new source.
func (s *Session) Upscale(ctx context.Context, up collab.Upscaler, scale float64, model string, opts collab.AwaitOptions) error {
	if up == nil {
		return fmt.Errorf("%w: no upscaler configured", types.ErrInvalidArgument)
	}
	enc, err := s.cfg.Processor.Encode(ctx, s.Source(), processing.EncodeOptions{Format: types.FormatPNG})
	if err != nil {
		return err
	}
	if model == "" {
		model = collab.ModelStandard
	}
	jobID, err := up.Submit(ctx, collab.UpscaleRequest{
		Image:  enc,
		Factor: collab.UpscaleFactor(scale),
		Model:  model,
	})
	if err != nil {
		return fmt.Errorf("submitting upscale: %w", err)
	}

	logger := log.Ctx(ctx).With().Str("session", s.id).Str("job", jobID).Logger()
	if opts.OnStatus == nil {
		opts.OnStatus = func(st collab.UpscaleStatus) {
			logger.Debug().Str("status", string(st)).Msg("upscale status")
		}
	}
	job, err := collab.AwaitUpscale(ctx, up, jobID, opts)
	if err != nil {
		return err
	}

	img, err := s.cfg.Processor.LoadImageFromURL(ctx, job.Output)
	if err != nil {
		return fmt.Errorf("fetching upscaled image: %w", err)
	}
	if err := s.ReplaceSource(img); err != nil {
		return err
	}
	b := img.Bounds()
	logger.Info().Int("width", b.Dx()).Int("height", b.Dy()).Msg("adopted upscaled source")
	return nil
}

// Generate asks gen for a new image from prompt, with the current source as
// reference, and adopts it as the new source.
func (s *Session) Generate(ctx context.Context, gen collab.GenerativeFill, prompt, aspectRatio string) error {
	if gen == nil {
		return fmt.Errorf("%w: no generator configured", types.ErrInvalidArgument)
	}
	if prompt == "" {
		return fmt.Errorf("%w: empty prompt", types.ErrInvalidArgument)
	}
	ref, err := s.cfg.Processor.Encode(ctx, s.Source(), processing.EncodeOptions{Format: types.FormatJPEG})
	if err != nil {
		return err
	}
	out, err := gen.Generate(ctx, collab.GenerateRequest{
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		References:  []types.EncodedImage{ref},
	})
	if err != nil {
		return fmt.Errorf("generating image: %w", err)
	}
	img, _, err := s.cfg.Processor.Decode(ctx, out.Data)
	if err != nil {
		return err
	}
	return s.ReplaceSource(img)
}
