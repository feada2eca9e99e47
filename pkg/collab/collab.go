// Package collab defines the remote services the studio hands images to:
// generative fill and upscaling. Only their contracts live here; the studio
// never retries them and only consumes the final image they produce.
package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/menta2k/listing-studio/pkg/types"
)

var (
	ErrUpscaleFailed  = errors.New("upscale failed")
	ErrUpscaleTimeout = errors.New("upscale timed out")
)

// GenerateRequest describes one generative fill call.
type GenerateRequest struct {
	Prompt      string               `json:"prompt"`
	AspectRatio string               `json:"aspect_ratio,omitempty"`
	References  []types.EncodedImage `json:"-"`
}

// GenerativeFill produces one image from an instruction and optional references.
type GenerativeFill interface {
	Generate(ctx context.Context, req GenerateRequest) (types.EncodedImage, error)
}

// UpscaleStatus is the lifecycle state of a remote upscale job.
type UpscaleStatus string

const (
	StatusStarting   UpscaleStatus = "starting"
	StatusProcessing UpscaleStatus = "processing"
	StatusSucceeded  UpscaleStatus = "succeeded"
	StatusFailed     UpscaleStatus = "failed"
	StatusCanceled   UpscaleStatus = "canceled"
)

// Terminal reports whether no further status change will happen.
func (s UpscaleStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Enhancement models offered by the upscale service.
const (
	ModelStandard      = "Standard V2"
	ModelHighFidelity  = "High Fidelity V2"
	ModelLowResolution = "Low Resolution V2"
	ModelCGI           = "CGI"
	ModelTextRefine    = "Text Refine"
)

// UpscaleRequest is submitted with the image to enlarge.
type UpscaleRequest struct {
	Image  types.EncodedImage `json:"-"`
	Factor string             `json:"upscale_factor"`
	Model  string             `json:"enhance_model"`
}

// UpscaleJob is one poll result. Output is the location of the final image.
type UpscaleJob struct {
	ID     string        `json:"id"`
	Status UpscaleStatus `json:"status"`
	Output string        `json:"output,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Upscaler submits jobs and reports their status.
type Upscaler interface {
	Submit(ctx context.Context, req UpscaleRequest) (string, error)
	Poll(ctx context.Context, jobID string) (UpscaleJob, error)
}

// UpscaleFactor maps a numeric scale onto the factors the service accepts.
func UpscaleFactor(scale float64) string {
	switch {
	case scale <= 2:
		return "2x"
	case scale <= 4:
		return "4x"
	}
	return "6x"
}

// AwaitOptions paces AwaitUpscale.
type AwaitOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// OnStatus is called after every poll.
	OnStatus func(UpscaleStatus)
}

// DefaultAwaitOptions polls every three seconds, at most 100 times.
func DefaultAwaitOptions() AwaitOptions {
	return AwaitOptions{Interval: 3 * time.Second, MaxAttempts: 100}
}

// AwaitUpscale polls jobID until it reaches a terminal status. It returns the
// succeeded job, ErrUpscaleFailed for failed or canceled jobs, and
// ErrUpscaleTimeout once MaxAttempts polls have not finished the job.
func AwaitUpscale(ctx context.Context, up Upscaler, jobID string, opts AwaitOptions) (UpscaleJob, error) {
	def := DefaultAwaitOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)

	for i := 0; i < opts.MaxAttempts; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return UpscaleJob{}, err
		}
		job, err := up.Poll(ctx, jobID)
		if err != nil {
			return UpscaleJob{}, fmt.Errorf("polling upscale job %s: %w", jobID, err)
		}
		if opts.OnStatus != nil {
			opts.OnStatus(job.Status)
		}
		if !job.Status.Terminal() {
			continue
		}
		if job.Status == StatusSucceeded {
			if job.Output == "" {
				return job, fmt.Errorf("%w: job %s has no output", ErrUpscaleFailed, jobID)
			}
			return job, nil
		}
		msg := job.Error
		if msg == "" {
			msg = string(job.Status)
		}
		return job, fmt.Errorf("%w: %s", ErrUpscaleFailed, msg)
	}
	return UpscaleJob{}, fmt.Errorf("%w: job %s after %d polls", ErrUpscaleTimeout, jobID, opts.MaxAttempts)
}
