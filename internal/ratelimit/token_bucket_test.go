package ratelimit

import (
	"testing"
	"time"
)

func TestDecodeDecision(t *testing.T) {
	decision, err := decodeDecision([]any{int64(1), int64(9), int64(0)})
	if err != nil {
		t.Fatalf("decodeDecision: %v", err)
	}
	if !decision.Allowed || decision.Remaining != 9 || decision.RetryAfter != 0 {
		t.Fatalf("decision = %+v", decision)
	}

	decision, err = decodeDecision([]any{int64(0), int64(0), int64(1500)})
	if err != nil {
		t.Fatalf("decodeDecision: %v", err)
	}
	if decision.Allowed {
		t.Error("expected rejection")
	}
	if decision.RetryAfter != 1500*time.Millisecond {
		t.Errorf("RetryAfter = %v", decision.RetryAfter)
	}
}

func TestDecodeDecisionRejectsMalformed(t *testing.T) {
	for _, raw := range []any{nil, "x", []any{int64(1)}, []any{int64(1), struct{}{}, int64(0)}} {
		if _, err := decodeDecision(raw); err == nil {
			t.Errorf("decodeDecision(%v) succeeded, want error", raw)
		}
	}
}

func TestNewRedisTokenBucketValidation(t *testing.T) {
	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Error("nil client accepted")
	}
}
