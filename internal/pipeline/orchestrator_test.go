package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/canvaslabs/canvas/internal/domain"
	"github.com/canvaslabs/canvas/internal/workpool"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func (s *fakeStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := fmt.Sprintf("%064x", len(data))
	s.objects[hash] = data
	return hash, nil
}

func (s *fakeStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	data, ok := s.objects[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
	}
	return data, nil
}

type fakeCache struct {
	mu         sync.Mutex
	entries    map[string][]byte
	dropWrites bool
	gets, sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.entries[string(key)]
	return data, ok
}

func (c *fakeCache) Set(_ context.Context, key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.dropWrites {
		return
	}
	c.entries[string(key)] = value
}

type countingTransformer struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (t *countingTransformer) Transform(_ context.Context, src []byte, params domain.TransformParams, _ []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.fail != nil {
		return nil, t.fail
	}
	out := fmt.Sprintf("derived(%d bytes, %dx%d, %s)", len(src), params.Width, params.Height, params.Format)
	return []byte(out), nil
}

func (t *countingTransformer) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func newTestOrchestrator(t *testing.T, cache Cache, contentStore *fakeStore, transformer Transformer) *Orchestrator {
	t.Helper()

	pool := workpool.New(2, 4)
	t.Cleanup(pool.Shutdown)

	logger := log.New(os.Stderr, "[pipeline-test] ", log.LstdFlags)
	o, err := NewOrchestrator(contentStore, cache, pool, logger, Options{})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	o.transformer = transformer
	return o
}

func TestFetchCacheHitShortCircuits(t *testing.T) {
	contentStore := &fakeStore{objects: map[string][]byte{}}
	hash, _ := contentStore.Put(context.Background(), []byte("source image"))
	cache := newFakeCache()
	transformer := &countingTransformer{}
	o := newTestOrchestrator(t, cache, contentStore, transformer)

	params := domain.DefaultParams()
	first, err := o.Fetch(context.Background(), hash, params)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := o.Fetch(context.Background(), hash, params)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if string(first) != string(second) {
		t.Fatal("cached fetch must return byte-identical output")
	}
	if transformer.count() != 1 {
		t.Fatalf("expected exactly one transform, got %d", transformer.count())
	}
	if contentStore.gets != 1 {
		t.Fatalf("cache hit must not touch the content store, got %d store reads", contentStore.gets)
	}
}

func TestFetchUnknownHash(t *testing.T) {
	contentStore := &fakeStore{objects: map[string][]byte{}}
	transformer := &countingTransformer{}
	o := newTestOrchestrator(t, newFakeCache(), contentStore, transformer)

	_, err := o.Fetch(context.Background(), "deadbeef", domain.DefaultParams())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if transformer.count() != 0 {
		t.Fatal("unknown hash must not reach the transformer")
	}
}

func TestFetchSurvivesDroppedCacheWrites(t *testing.T) {
	contentStore := &fakeStore{objects: map[string][]byte{}}
	hash, _ := contentStore.Put(context.Background(), []byte("source image"))
	cache := newFakeCache()
	cache.dropWrites = true
	transformer := &countingTransformer{}
	o := newTestOrchestrator(t, cache, contentStore, transformer)

	params := domain.DefaultParams()
	for i := 0; i < 2; i++ {
		data, err := o.Fetch(context.Background(), hash, params)
		if err != nil {
			t.Fatalf("fetch %d with failing cache writes: %v", i, err)
		}
		if len(data) == 0 {
			t.Fatalf("fetch %d returned empty artifact", i)
		}
	}

	// Every miss recomputes, and every result still reaches the caller.
	if transformer.count() != 2 {
		t.Fatalf("expected 2 transforms with dropped writes, got %d", transformer.count())
	}
}

func TestFetchTransformFailureIsNotCached(t *testing.T) {
	contentStore := &fakeStore{objects: map[string][]byte{}}
	hash, _ := contentStore.Put(context.Background(), []byte("source image"))
	cache := newFakeCache()
	transformer := &countingTransformer{fail: stageErr(StageEncode, errors.New("boom"))}
	o := newTestOrchestrator(t, cache, contentStore, transformer)

	_, err := o.Fetch(context.Background(), hash, domain.DefaultParams())
	var stage *domain.StageError
	if !errors.As(err, &stage) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stage.Stage != StageEncode {
		t.Fatalf("expected encode stage, got %s", stage.Stage)
	}
	if cache.sets != 0 {
		t.Fatal("failed transforms must never be cached")
	}
}

func TestFetchDistinctParamsComputeSeparately(t *testing.T) {
	contentStore := &fakeStore{objects: map[string][]byte{}}
	hash, _ := contentStore.Put(context.Background(), []byte("source image"))
	transformer := &countingTransformer{}
	o := newTestOrchestrator(t, newFakeCache(), contentStore, transformer)

	a := domain.DefaultParams()
	a.Width, a.Height = 100, 200
	b := domain.DefaultParams()
	b.Width, b.Height = 200, 100

	outA, err := o.Fetch(context.Background(), hash, a)
	if err != nil {
		t.Fatalf("fetch a: %v", err)
	}
	outB, err := o.Fetch(context.Background(), hash, b)
	if err != nil {
		t.Fatalf("fetch b: %v", err)
	}

	if transformer.count() != 2 {
		t.Fatalf("swapped dimensions must not share a cache entry, got %d transforms", transformer.count())
	}
	if string(outA) == string(outB) {
		t.Fatal("expected distinct outputs for swapped dimensions")
	}
}
