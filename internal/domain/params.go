package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"

	DefaultWidth   = 1024
	DefaultHeight  = 1024
	DefaultQuality = 80
)

// TransformParams is the normalized description of a derived image. Filename
// only names the download; it is excluded from the cache key.
type TransformParams struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Quality     int    `json:"quality"`
	Watermark   bool   `json:"watermark,omitempty"`
	Format      string `json:"format"`
	OverlayText string `json:"overlay_text,omitempty"`
	Filename    string `json:"-"`
}

func DefaultParams() TransformParams {
	return TransformParams{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Quality: DefaultQuality,
		Format:  FormatWebP,
	}
}

// ParseParams builds normalized TransformParams from request query values.
// Out-of-range values are rejected here so they never reach the pipeline.
func ParseParams(values url.Values) (TransformParams, error) {
	p := DefaultParams()

	var err error
	if p.Width, err = intParam(values, "width", p.Width); err != nil {
		return TransformParams{}, err
	}
	if p.Height, err = intParam(values, "height", p.Height); err != nil {
		return TransformParams{}, err
	}
	if p.Quality, err = intParam(values, "quality", p.Quality); err != nil {
		return TransformParams{}, err
	}

	// Presence of the key enables the watermark, matching ?watermark with
	// no value.
	p.Watermark = values.Has("watermark")

	if raw := strings.TrimSpace(values.Get("format")); raw != "" {
		format, ok := NormalizeFormat(raw)
		if !ok {
			return TransformParams{}, &InvalidParamError{Name: "format", Value: raw}
		}
		p.Format = format
	}

	p.OverlayText = strings.TrimSpace(values.Get("overlay"))
	p.Filename = strings.TrimSpace(values.Get("filename"))

	if err := p.Validate(); err != nil {
		return TransformParams{}, err
	}
	return p, nil
}

func (p TransformParams) Validate() error {
	if p.Width < 1 {
		return &InvalidParamError{Name: "width", Value: strconv.Itoa(p.Width)}
	}
	if p.Height < 1 {
		return &InvalidParamError{Name: "height", Value: strconv.Itoa(p.Height)}
	}
	if p.Quality < 1 || p.Quality > 100 {
		return &InvalidParamError{Name: "quality", Value: strconv.Itoa(p.Quality)}
	}
	if p.Format != FormatJPEG && p.Format != FormatWebP {
		return &InvalidParamError{Name: "format", Value: p.Format}
	}
	return nil
}

// CacheKey derives the memoization key for this parameter set applied to the
// original identified by hash. Field order is fixed and the free-form overlay
// text is hex-encoded, so no two distinct parameter sets share a key. The
// filename is deliberately absent.
func (p TransformParams) CacheKey(hash string) []byte {
	key := fmt.Sprintf(
		"canvas:v1:%s:w=%d:h=%d:q=%d:wm=%t:f=%s:o=%x",
		hash, p.Width, p.Height, p.Quality, p.Watermark, p.Format, p.OverlayText,
	)
	return []byte(key)
}

func NormalizeFormat(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "webp":
		return FormatWebP, true
	default:
		return "", false
	}
}

func ContentTypeForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/webp"
	}
}

func intParam(values url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &InvalidParamError{Name: name, Value: raw}
	}
	return parsed, nil
}
