// Package worker consumes variant pre-warm tasks in the background: each
// task runs one (hash, params) fetch through the pipeline so the artifact
// cache is populated before the first client asks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/canvaslabs/canvas/internal/domain"
	"github.com/canvaslabs/canvas/internal/queue"
)

type fetcher interface {
	Fetch(ctx context.Context, hash string, params domain.TransformParams) ([]byte, error)
}

type Server struct {
	logger       *log.Logger
	server       *asynq.Server
	queueName    string
	orchestrator fetcher
	metrics      *metrics
	tracer       trace.Tracer
}

func NewServer(logger *log.Logger, redisOpt asynq.RedisClientOpt, queueName string, concurrency int, orchestrator fetcher, registry prometheus.Registerer) *Server {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Server{
		logger:    logger,
		queueName: queueName,
		server: asynq.NewServer(
			redisOpt,
			asynq.Config{
				Concurrency: concurrency,
				Queues: map[string]int{
					queueName: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("prewarm task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		orchestrator: orchestrator,
		metrics:      newMetrics(registry),
		tracer:       otel.Tracer("canvas/worker"),
	}
}

// Start launches the consumer without blocking; Shutdown drains it.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePrewarmVariant, s.handlePrewarm)
	return s.server.Start(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) handlePrewarm(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParsePrewarmPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.prewarm_variant", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("image.hash", payload.Hash),
		attribute.Int("image.width", payload.Params.Width),
		attribute.Int("image.height", payload.Params.Height),
	)
	defer span.End()

	started := time.Now()
	data, err := s.orchestrator.Fetch(ctx, payload.Hash, payload.Params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prewarm fetch")
		if errors.Is(err, domain.ErrNotFound) {
			// The original vanished between upload and prewarm; retrying
			// cannot help.
			s.metrics.observe("not_found", time.Since(started))
			return fmt.Errorf("original %s not found: %w", payload.Hash, asynq.SkipRetry)
		}
		s.metrics.observe("failed", time.Since(started))
		return fmt.Errorf("prewarm %s: %w", payload.Hash, err)
	}

	s.metrics.observe("ok", time.Since(started))
	s.logger.Printf(
		"prewarmed hash=%s dims=%dx%d format=%s bytes=%d",
		payload.Hash,
		payload.Params.Width,
		payload.Params.Height,
		payload.Params.Format,
		len(data),
	)
	span.SetStatus(codes.Ok, "prewarmed")
	return nil
}

type metrics struct {
	prewarmTotal    *prometheus.CounterVec
	prewarmDuration *prometheus.HistogramVec
}

func newMetrics(registry prometheus.Registerer) *metrics {
	m := &metrics{
		prewarmTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_prewarm_tasks_total",
			Help: "Total variant pre-warm tasks by outcome.",
		}, []string{"status"}),
		prewarmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canvas_prewarm_task_duration_seconds",
			Help:    "Duration of variant pre-warm tasks.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if registry != nil {
		registry.MustRegister(m.prewarmTotal, m.prewarmDuration)
	}
	return m
}

func (m *metrics) observe(status string, elapsed time.Duration) {
	m.prewarmTotal.WithLabelValues(status).Inc()
	m.prewarmDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
