package pipeline

import (
	"context"
	"math"

	"github.com/canvaslabs/canvas/internal/domain"
)

// Stage names carried by domain.StageError. Order is fixed: decode,
// auto-rotate, fit-resize, smart-crop, overlay, encode.
const (
	StageDecode     = "decode"
	StageAutoRotate = "auto_rotate"
	StageFitResize  = "fit_resize"
	StageSmartCrop  = "smart_crop"
	StageOverlay    = "overlay"
	StageEncode     = "encode"
)

const overlayMargin = 12

// Transformer runs the full stage sequence over one original and returns
// encoded bytes. Implementations are stateless; watermark is the preloaded
// overlay image, nil when none is configured.
type Transformer interface {
	Transform(ctx context.Context, src []byte, params domain.TransformParams, watermark []byte) ([]byte, error)
}

func stageErr(stage string, err error) error {
	return &domain.StageError{Stage: stage, Err: err}
}

// fitScale returns the factor that shrinks the source so its shorter side
// fits the requested box, capped at 1 so the image is never enlarged.
func fitScale(srcW, srcH, boxW, boxH int) float64 {
	if srcW < 1 || srcH < 1 {
		return 1
	}
	scale := math.Max(float64(boxW)/float64(srcW), float64(boxH)/float64(srcH))
	if scale > 1 {
		return 1
	}
	return scale
}

// cropExtent clamps a requested crop dimension to what the resized image can
// provide; a too-large request crops to the maximum available instead of
// failing.
func cropExtent(requested, actual int) int {
	if requested < actual {
		return requested
	}
	return actual
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
