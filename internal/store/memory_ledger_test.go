package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLedgerFirstRecordWins(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	first := ImageRecord{Hash: "aa", SizeBytes: 10, ContentType: "image/png", CreatedAt: time.Unix(100, 0)}
	if err := l.Record(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, ImageRecord{Hash: "aa", SizeBytes: 10, CreatedAt: time.Unix(200, 0)}); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	rec, ok, err := l.Get(ctx, "aa")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("re-upload must not overwrite the original ingest record")
	}

	if _, ok, _ := l.Get(ctx, "bb"); ok {
		t.Fatal("expected miss for unknown hash")
	}
}
