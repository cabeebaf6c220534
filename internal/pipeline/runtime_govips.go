//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initializes libvips with its internal concurrency pinned to the
// CPU work pool size, so vips does not oversubscribe on top of the pool.
func Startup(concurrency int) error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			ConcurrencyLevel: max(1, concurrency),
			MaxCacheFiles:    0,
			MaxCacheMem:      128 * 1024 * 1024,
			MaxCacheSize:     100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newTransformer() (Transformer, error) {
	return govipsTransformer{}, nil
}
