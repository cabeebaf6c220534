package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(maxAttempts int) *Client {
	return NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    maxAttempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
}

func TestSendSignsAndWrapsPayload(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(1).Send(context.Background(), srv.URL, "image.ingested", map[string]any{"hash": "a1b2"})
	if err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Event != "image.ingested" {
		t.Errorf("envelope event = %q", envelope.Event)
	}
	if envelope.DeliveryID == "" {
		t.Error("envelope missing delivery ID")
	}
	if gotHeaders.Get(HeaderEvent) != "image.ingested" {
		t.Errorf("event header = %q", gotHeaders.Get(HeaderEvent))
	}
	if gotHeaders.Get(HeaderDelivery) != envelope.DeliveryID {
		t.Errorf("delivery header = %q, envelope ID = %q", gotHeaders.Get(HeaderDelivery), envelope.DeliveryID)
	}

	sig := gotHeaders.Get(HeaderSignature)
	ts := gotHeaders.Get(HeaderTimestamp)
	if !Verify("test-secret", ts, gotBody, sig) {
		t.Error("signature does not verify against the received body")
	}
	if Verify("wrong-secret", ts, gotBody, sig) {
		t.Error("signature verifies under the wrong secret")
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	var deliveries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries = append(deliveries, r.Header.Get(HeaderDelivery))
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testClient(3).Send(context.Background(), srv.URL, "image.ingested", nil); err != nil {
		t.Fatalf("send returned error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	for i := 1; i < len(deliveries); i++ {
		if deliveries[i] != deliveries[0] {
			t.Errorf("retry %d used delivery ID %q, first was %q", i, deliveries[i], deliveries[0])
		}
	}
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(2).Send(context.Background(), srv.URL, "image.ingested", nil)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestSendEmptyEndpointIsNoop(t *testing.T) {
	if err := testClient(1).Send(context.Background(), "  ", "image.ingested", nil); err != nil {
		t.Fatalf("empty endpoint should be a no-op, got %v", err)
	}
}
