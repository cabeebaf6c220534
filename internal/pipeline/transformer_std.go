//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	_ "golang.org/x/image/webp"

	"github.com/canvaslabs/canvas/internal/domain"
)

// stdTransformer is the pure-Go fallback used when the govips build tag is
// off. It mirrors the cgo path stage for stage; webp output is the one gap,
// since x/image decodes webp but does not encode it.
type stdTransformer struct{}

func (t stdTransformer) Transform(ctx context.Context, src []byte, params domain.TransformParams, watermark []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// AutoOrientation bakes the EXIF rotation in during decode and drops
	// the tag.
	decoded, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, stageErr(StageDecode, err)
	}
	img := imaging.Clone(decoded)

	bounds := img.Bounds()
	if scale := fitScale(bounds.Dx(), bounds.Dy(), params.Width, params.Height); scale < 1 {
		w := int(math.Round(float64(bounds.Dx()) * scale))
		h := int(math.Round(float64(bounds.Dy()) * scale))
		img = imaging.Resize(img, max(1, w), max(1, h), imaging.Lanczos)
	}

	bounds = img.Bounds()
	cropW := cropExtent(params.Width, bounds.Dx())
	cropH := cropExtent(params.Height, bounds.Dy())
	if cropW < bounds.Dx() || cropH < bounds.Dy() {
		img = imaging.Crop(img, salientWindow(img, cropW, cropH))
	}

	if params.Watermark && len(watermark) > 0 {
		img, err = overlayWatermark(img, watermark)
		if err != nil {
			return nil, stageErr(StageOverlay, err)
		}
	}
	if params.OverlayText != "" {
		img = overlayText(img, params.OverlayText)
	}

	return encodeStdImage(img, params.Format, params.Quality)
}

func overlayWatermark(img *image.NRGBA, watermark []byte) (*image.NRGBA, error) {
	wm, err := imaging.Decode(bytes.NewReader(watermark))
	if err != nil {
		return nil, fmt.Errorf("decode watermark: %w", err)
	}

	bounds := img.Bounds()
	wmBounds := wm.Bounds()
	if wmBounds.Dx() > bounds.Dx() || wmBounds.Dy() > bounds.Dy() {
		wm = imaging.Fit(wm, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
		wmBounds = wm.Bounds()
	}

	pos := image.Pt(
		max(0, bounds.Dx()-wmBounds.Dx()-overlayMargin),
		max(0, bounds.Dy()-wmBounds.Dy()-overlayMargin),
	)
	return imaging.Overlay(img, wm, pos, 0.4), nil
}

func overlayText(img *image.NRGBA, text string) *image.NRGBA {
	dc := gg.NewContextForImage(img)
	dc.SetRGBA(1, 1, 1, 0.9)
	dc.DrawString(text, overlayMargin, overlayMargin+13)
	return imaging.Clone(dc.Image())
}

func encodeStdImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, stageErr(StageEncode, err)
		}
	case domain.FormatWebP:
		return nil, stageErr(StageEncode, errors.New("webp encoding requires the govips build"))
	default:
		return nil, stageErr(StageEncode, fmt.Errorf("unsupported output format: %s", format))
	}
	return buf.Bytes(), nil
}

// salientWindow slides a cropW x cropH window over the image and returns the
// placement with the highest luminance-gradient energy. A detail-rich region
// scores above flat background, which approximates attention-based cropping
// without the native library.
func salientWindow(img *image.NRGBA, cropW, cropH int) image.Rectangle {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if cropW >= w && cropH >= h {
		return bounds
	}

	energy := gradientEnergy(img, w, h)

	// Integral over the energy map so each window sums in O(1).
	integral := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += energy[y*w+x]
			integral[(y+1)*(w+1)+(x+1)] = integral[y*(w+1)+(x+1)] + rowSum
		}
	}
	windowSum := func(x, y int) float64 {
		x1, y1 := x+cropW, y+cropH
		return integral[y1*(w+1)+x1] - integral[y*(w+1)+x1] - integral[y1*(w+1)+x] + integral[y*(w+1)+x]
	}

	step := max(1, min(w-cropW, h-cropH)/16)
	bestX, bestY := 0, 0
	bestScore := math.Inf(-1)
	for y := 0; y <= h-cropH; y = nextOffset(y, step, h-cropH) {
		for x := 0; x <= w-cropW; x = nextOffset(x, step, w-cropW) {
			if score := windowSum(x, y); score > bestScore {
				bestScore = score
				bestX, bestY = x, y
			}
			if x == w-cropW {
				break
			}
		}
		if y == h-cropH {
			break
		}
	}

	return image.Rect(bestX, bestY, bestX+cropW, bestY+cropH)
}

func gradientEnergy(img *image.NRGBA, w, h int) []float64 {
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			lum[y*w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}

	energy := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var e float64
			if x+1 < w {
				e += math.Abs(lum[y*w+x+1] - lum[y*w+x])
			}
			if y+1 < h {
				e += math.Abs(lum[(y+1)*w+x] - lum[y*w+x])
			}
			energy[y*w+x] = e
		}
	}
	return energy
}

// nextOffset advances by step but always lands on the final valid offset so
// edge placements are evaluated.
func nextOffset(cur, step, last int) int {
	next := cur + step
	if next > last {
		return last
	}
	return next
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
