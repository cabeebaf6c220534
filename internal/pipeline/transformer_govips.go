//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/canvaslabs/canvas/internal/domain"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, src []byte, params domain.TransformParams, watermark []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, stageErr(StageDecode, err)
	}
	defer img.Close()

	// Bake the EXIF orientation into pixel data; export with strip enabled
	// never re-emits the tag.
	if err := img.AutoRotate(); err != nil {
		return nil, stageErr(StageAutoRotate, err)
	}

	if scale := fitScale(img.Width(), img.Height(), params.Width, params.Height); scale < 1 {
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, stageErr(StageFitResize, err)
		}
	}

	cropW := cropExtent(params.Width, img.Width())
	cropH := cropExtent(params.Height, img.Height())
	if cropW < img.Width() || cropH < img.Height() {
		if err := img.SmartCrop(cropW, cropH, vips.InterestingAttention); err != nil {
			return nil, stageErr(StageSmartCrop, err)
		}
	}

	if params.Watermark && len(watermark) > 0 {
		if err := applyGovipsWatermark(img, watermark); err != nil {
			return nil, stageErr(StageOverlay, err)
		}
	}
	if params.OverlayText != "" {
		if err := applyGovipsOverlayText(img, params.OverlayText); err != nil {
			return nil, stageErr(StageOverlay, err)
		}
	}

	data, err := exportGovipsImage(img, params.Format, params.Quality)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}
	return data, nil
}

func applyGovipsWatermark(img *vips.ImageRef, watermark []byte) error {
	wm, err := vips.NewImageFromBuffer(watermark)
	if err != nil {
		return fmt.Errorf("decode watermark: %w", err)
	}
	defer wm.Close()

	// Anchor bottom-right; screen blend keeps the mark translucent over the
	// photo the same way the crop target never exceeds the image.
	x := max(0, img.Width()-wm.Width()-overlayMargin)
	y := max(0, img.Height()-wm.Height()-overlayMargin)
	if err := img.Composite(wm, vips.BlendModeScreen, x, y); err != nil {
		return fmt.Errorf("composite watermark: %w", err)
	}
	return nil
}

func applyGovipsOverlayText(img *vips.ImageRef, text string) error {
	label := &vips.LabelParams{
		Text:      text,
		Font:      "sans 24",
		Opacity:   0.9,
		Color:     vips.Color{R: 255, G: 255, B: 255},
		Alignment: vips.AlignLow,
	}
	label.Width.SetInt(max(1, img.Width()-2*overlayMargin))
	label.Height.SetInt(max(1, img.Height()-2*overlayMargin))
	label.OffsetX.SetInt(overlayMargin)
	label.OffsetY.SetInt(overlayMargin)

	if err := img.Label(label); err != nil {
		return fmt.Errorf("render overlay text: %w", err)
	}
	return nil
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
