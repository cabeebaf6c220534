package domain

import (
	"bytes"
	"net/url"
	"testing"
)

func TestParseParamsDefaults(t *testing.T) {
	p, err := ParseParams(url.Values{})
	if err != nil {
		t.Fatalf("parse empty params: %v", err)
	}
	if p.Width != 1024 || p.Height != 1024 {
		t.Fatalf("expected 1024x1024 default box, got %dx%d", p.Width, p.Height)
	}
	if p.Quality != 80 {
		t.Fatalf("expected default quality 80, got %d", p.Quality)
	}
	if p.Format != FormatWebP {
		t.Fatalf("expected default format webp, got %s", p.Format)
	}
	if p.Watermark {
		t.Fatal("watermark must default to off")
	}
}

func TestParseParamsNormalization(t *testing.T) {
	values := url.Values{}
	values.Set("width", "200")
	values.Set("height", "100")
	values.Set("quality", "50")
	values.Set("format", "jpg")
	values.Set("watermark", "")
	values.Set("overlay", "hello")
	values.Set("filename", "photo.jpg")

	p, err := ParseParams(values)
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if p.Format != FormatJPEG {
		t.Fatalf("expected jpg alias to normalize to jpeg, got %s", p.Format)
	}
	if !p.Watermark {
		t.Fatal("presence of watermark key must enable the watermark")
	}
	if p.OverlayText != "hello" || p.Filename != "photo.jpg" {
		t.Fatalf("unexpected overlay/filename: %q %q", p.OverlayText, p.Filename)
	}
}

func TestParseParamsRejectsOutOfRange(t *testing.T) {
	cases := map[string]url.Values{
		"zero width":       {"width": {"0"}},
		"negative height":  {"height": {"-5"}},
		"quality too high": {"quality": {"101"}},
		"quality zero":     {"quality": {"0"}},
		"bad format":       {"format": {"tiff"}},
		"non-numeric":      {"width": {"wide"}},
	}
	for name, values := range cases {
		if _, err := ParseParams(values); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	const hash = "aabbcc"
	p1 := DefaultParams()
	p2 := DefaultParams()
	if !bytes.Equal(p1.CacheKey(hash), p2.CacheKey(hash)) {
		t.Fatal("identical params must derive identical keys")
	}

	// Filename never changes the key.
	p2.Filename = "download.webp"
	if !bytes.Equal(p1.CacheKey(hash), p2.CacheKey(hash)) {
		t.Fatal("filename must not affect the cache key")
	}
}

func TestCacheKeyDistinguishesParams(t *testing.T) {
	const hash = "aabbcc"
	base := DefaultParams()

	variants := []TransformParams{
		{Width: 100, Height: 200, Quality: 80, Format: FormatWebP},
		{Width: 200, Height: 100, Quality: 80, Format: FormatWebP},
		{Width: 1024, Height: 1024, Quality: 79, Format: FormatWebP},
		{Width: 1024, Height: 1024, Quality: 80, Format: FormatJPEG},
		{Width: 1024, Height: 1024, Quality: 80, Format: FormatWebP, Watermark: true},
		{Width: 1024, Height: 1024, Quality: 80, Format: FormatWebP, OverlayText: "x"},
	}

	seen := map[string]int{string(base.CacheKey(hash)): -1}
	for i, v := range variants {
		key := string(v.CacheKey(hash))
		if prev, dup := seen[key]; dup {
			t.Fatalf("variant %d collides with %d: %s", i, prev, key)
		}
		seen[key] = i
	}

	if bytes.Equal(base.CacheKey(hash), base.CacheKey("ddeeff")) {
		t.Fatal("different hashes must derive different keys")
	}
}

func TestCacheKeyOverlayCannotForgeDelimiters(t *testing.T) {
	a := DefaultParams()
	a.OverlayText = "x:wm=true"
	b := DefaultParams()
	b.Watermark = true
	b.OverlayText = "x"
	if bytes.Equal(a.CacheKey("aa"), b.CacheKey("aa")) {
		t.Fatal("overlay text must not be able to imitate other fields")
	}
}
