package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/canvaslabs/canvas/internal/domain"
	"github.com/canvaslabs/canvas/internal/store"
	"github.com/canvaslabs/canvas/internal/workpool"
)

// Cache is the artifact cache as the orchestrator sees it: a miss and an
// unreachable backend look the same, and Set never reports failure.
type Cache interface {
	Get(ctx context.Context, key []byte) ([]byte, bool)
	Set(ctx context.Context, key, value []byte)
}

// Orchestrator drives one fetch: derive key, consult the cache, and on a
// miss load the original and run the transform stages on the CPU work pool.
type Orchestrator struct {
	store       store.ContentStore
	cache       Cache
	pool        *workpool.Pool
	transformer Transformer
	watermark   []byte
	logger      *log.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

type Options struct {
	// Watermark is the preloaded overlay image; nil disables the
	// watermark stage even when requested.
	Watermark []byte
	Metrics   *Metrics
}

func NewOrchestrator(contentStore store.ContentStore, artifactCache Cache, pool *workpool.Pool, logger *log.Logger, opts Options) (*Orchestrator, error) {
	if contentStore == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if artifactCache == nil {
		return nil, fmt.Errorf("artifact cache is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("work pool is required")
	}

	transformer, err := newTransformer()
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	return &Orchestrator{
		store:       contentStore,
		cache:       artifactCache,
		pool:        pool,
		transformer: transformer,
		watermark:   opts.Watermark,
		logger:      logger,
		metrics:     opts.Metrics,
		tracer:      otel.Tracer("canvas/pipeline"),
	}, nil
}

// Fetch returns the derived image for (hash, params). On a cache hit nothing
// else runs; on a miss the original is loaded (the only place an unknown
// hash surfaces), transformed inside the work pool, and the result is cached
// best-effort. Concurrent misses for one key may compute twice; results are
// identical and the last cache write wins.
func (o *Orchestrator) Fetch(ctx context.Context, hash string, params domain.TransformParams) ([]byte, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.fetch", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("image.hash", hash),
		attribute.Int("image.width", params.Width),
		attribute.Int("image.height", params.Height),
		attribute.String("image.format", params.Format),
	)
	defer span.End()

	key := params.CacheKey(hash)
	if data, ok := o.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return data, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	src, err := o.store.Get(ctx, hash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load original")
		return nil, err
	}

	// The job keeps running and populates the cache even if this request
	// is abandoned; native transform stages are not safely interruptible.
	jobCtx := context.WithoutCancel(ctx)

	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)

	started := time.Now()
	err = o.pool.Submit(ctx, func() {
		data, err := o.transformer.Transform(jobCtx, src, params, o.watermark)
		resCh <- result{data: data, err: err}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit transform")
		return nil, err
	}

	res := <-resCh
	if res.err != nil {
		o.metrics.observeTransform(params.Format, "failed", time.Since(started))
		span.RecordError(res.err)
		span.SetStatus(codes.Error, "transform")
		return nil, res.err
	}
	o.metrics.observeTransform(params.Format, "ok", time.Since(started))

	o.cache.Set(jobCtx, key, res.data)
	return res.data, nil
}
