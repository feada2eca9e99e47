package warp

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/listing-studio/pkg/types"
)

// CornerEstimator proposes wall corners for an image.
type CornerEstimator interface {
	EstimateCorners(ctx context.Context, img image.Image) (types.WallCoordinates, error)
}

// EstimatorFunc adapts a function to CornerEstimator.
type EstimatorFunc func(ctx context.Context, img image.Image) (types.WallCoordinates, error)

func (f EstimatorFunc) EstimateCorners(ctx context.Context, img image.Image) (types.WallCoordinates, error) {
	return f(ctx, img)
}

// InsetEstimator always proposes the default inset quad.
type InsetEstimator struct{}

func (InsetEstimator) EstimateCorners(context.Context, image.Image) (types.WallCoordinates, error) {
	return types.DefaultWallCoordinates(), nil
}

// EstimateOrDefault runs est and falls back to the default inset quad when
// it is nil, fails, or returns corners outside the unit square. The
// returned corners are always usable; the error reports why a fallback
// happened.
func EstimateOrDefault(ctx context.Context, est CornerEstimator, img image.Image) (types.WallCoordinates, error) {
	if est == nil {
		return types.DefaultWallCoordinates(), nil
	}
	c, err := est.EstimateCorners(ctx, img)
	if err != nil {
		return types.DefaultWallCoordinates(), fmt.Errorf("corner estimation: %w", err)
	}
	if !c.Valid() {
		return types.DefaultWallCoordinates(), fmt.Errorf("%w: estimated corners out of range", types.ErrInvalidArgument)
	}
	return c, nil
}
