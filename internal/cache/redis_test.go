package cache

import (
	"context"
	"log"
	"os"
	"testing"
	"time"
)

// An unreachable backend must read as a miss and a dropped write, never as a
// request failure.
func TestUnreachableBackendDegradesToMiss(t *testing.T) {
	logger := log.New(os.Stderr, "[cache-test] ", log.LstdFlags)
	c := New(Config{
		Addr:      "127.0.0.1:1", // nothing listens here
		PoolSize:  1,
		OpTimeout: 100 * time.Millisecond,
	}, logger, NewMetrics(nil))
	defer c.Close()

	ctx := context.Background()
	if _, ok := c.Get(ctx, []byte("canvas:v1:test")); ok {
		t.Fatal("expected miss against unreachable backend")
	}

	// Must return without error.
	c.Set(ctx, []byte("canvas:v1:test"), []byte("artifact"))
}
