package pipeline

import "testing"

func TestFitScaleNeverUpscales(t *testing.T) {
	if got := fitScale(200, 200, 1024, 1024); got != 1 {
		t.Fatalf("small source must not be scaled up, got factor %v", got)
	}
	if got := fitScale(200, 200, 200, 200); got != 1 {
		t.Fatalf("exact fit must be a no-op, got factor %v", got)
	}
}

func TestFitScaleShrinksShorterSideToBox(t *testing.T) {
	// 1600x800 into a 400x400 box: the shorter side (800) must land on 400,
	// so the factor follows the larger of the two ratios.
	got := fitScale(1600, 800, 400, 400)
	if got != 0.5 {
		t.Fatalf("expected factor 0.5, got %v", got)
	}
}

func TestCropExtentClamps(t *testing.T) {
	if got := cropExtent(400, 800); got != 400 {
		t.Fatalf("expected requested extent 400, got %d", got)
	}
	if got := cropExtent(800, 400); got != 400 {
		t.Fatalf("oversized request must clamp to 400, got %d", got)
	}
}
