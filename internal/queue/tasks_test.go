package queue

import (
	"testing"

	"github.com/canvaslabs/canvas/internal/domain"
)

func TestPrewarmTaskRoundTrip(t *testing.T) {
	params := domain.DefaultParams()
	params.Width = 640
	params.Height = 480
	payload := PrewarmPayload{
		Hash:   "a1b2c3",
		Params: params,
	}

	task, err := NewPrewarmTask(payload)
	if err != nil {
		t.Fatalf("NewPrewarmTask returned error: %v", err)
	}

	parsed, err := ParsePrewarmPayload(task)
	if err != nil {
		t.Fatalf("ParsePrewarmPayload returned error: %v", err)
	}

	if parsed.Hash != payload.Hash {
		t.Fatalf("expected hash %q, got %q", payload.Hash, parsed.Hash)
	}
	if parsed.Params != params {
		t.Fatalf("expected params %+v, got %+v", params, parsed.Params)
	}
}

func TestParseVariants(t *testing.T) {
	variants, errs := ParseVariants([]string{"640x480", "160x160@70", "bogus", "0x10"})
	if len(errs) != 2 {
		t.Fatalf("expected 2 malformed variants, got %d (%v)", len(errs), errs)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 parsed variants, got %d", len(variants))
	}

	if variants[0].Width != 640 || variants[0].Height != 480 {
		t.Fatalf("unexpected first variant: %+v", variants[0])
	}
	if variants[0].Quality != domain.DefaultQuality {
		t.Fatalf("expected default quality, got %d", variants[0].Quality)
	}
	if variants[1].Quality != 70 {
		t.Fatalf("expected quality 70, got %d", variants[1].Quality)
	}
}
