package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/canvaslabs/canvas/internal/api"
	"github.com/canvaslabs/canvas/internal/cache"
	"github.com/canvaslabs/canvas/internal/config"
	"github.com/canvaslabs/canvas/internal/pipeline"
	"github.com/canvaslabs/canvas/internal/queue"
	"github.com/canvaslabs/canvas/internal/ratelimit"
	"github.com/canvaslabs/canvas/internal/store"
	"github.com/canvaslabs/canvas/internal/telemetry"
	"github.com/canvaslabs/canvas/internal/webhook"
	"github.com/canvaslabs/canvas/internal/worker"
	"github.com/canvaslabs/canvas/internal/workpool"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[canvas] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "canvas",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
		SampleRatio:  cfg.Trace.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	if err := pipeline.Startup(cfg.Pipeline.Workers); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cacheClient := cache.New(cache.Config{
		Addr:      cfg.Cache.RedisAddr,
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		PoolSize:  cfg.Cache.PoolSize,
		OpTimeout: cfg.Cache.OpTimeout,
	}, logger, cache.NewMetrics(registry))
	defer func() {
		if err := cacheClient.Close(); err != nil {
			logger.Printf("cache close error: %v", err)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		logger.Printf("artifact cache unreachable, serving uncached: %v", err)
	}
	cancelPing()

	contentStore := buildContentStore(ctx, cfg.Store, logger)
	watermark := loadWatermark(cfg.Pipeline.WatermarkPath, logger)

	pool := workpool.New(cfg.Pipeline.Workers, cfg.Pipeline.QueueDepth)
	defer pool.Shutdown()

	orchestrator, err := pipeline.NewOrchestrator(contentStore, cacheClient, pool, logger, pipeline.Options{
		Watermark: watermark,
		Metrics:   pipeline.NewMetrics(registry),
	})
	if err != nil {
		logger.Fatalf("pipeline setup failed: %v", err)
	}

	ledger := buildLedger(ctx, cfg.Ledger, logger)

	var webhookClient *webhook.Client
	if cfg.Webhook.URL != "" {
		webhookClient = webhook.NewClient(webhook.Config{SigningSecret: cfg.Webhook.Secret})
	}

	opts := api.Options{
		Orchestrator:     orchestrator,
		ContentStore:     contentStore,
		Ledger:           ledger,
		WebhookURL:       cfg.Webhook.URL,
		UploadLimitBytes: int64(cfg.Server.UploadLimitKB) << 10,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		MetricsRegistry:  registry,
	}
	if webhookClient != nil {
		opts.Webhook = webhookClient
	}

	if limiter := buildRateLimiter(cacheClient, cfg.RateLimit, logger); limiter != nil {
		opts.RateLimiter = limiter
	}

	variants, variantErrs := queue.ParseVariants(cfg.Prewarm.Variants)
	for _, verr := range variantErrs {
		logger.Printf("ignoring prewarm variant: %v", verr)
	}
	if len(variants) > 0 {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}

		queueClient := queue.NewClient(redisOpt, cfg.Prewarm.QueueName)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}()
		opts.Prewarmer = prewarmClient{queueClient}
		opts.PrewarmVariants = variants

		prewarmWorker := worker.NewServer(logger, redisOpt, cfg.Prewarm.QueueName, cfg.Prewarm.Concurrency, orchestrator, registry)
		if err := prewarmWorker.Start(); err != nil {
			logger.Fatalf("prewarm worker failed to start: %v", err)
		}
		defer prewarmWorker.Shutdown()
	}

	app := api.NewServer(logger, opts)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

func buildContentStore(ctx context.Context, cfg config.StoreConfig, logger *log.Logger) store.ContentStore {
	switch cfg.Backend {
	case config.StoreBackendS3:
		objectStore, err := store.NewObjectStore(store.ObjectStoreConfig{
			Endpoint: cfg.Endpoint,
			Access:   cfg.AccessKey,
			Secret:   cfg.SecretKey,
			Bucket:   cfg.Bucket,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			logger.Fatalf("object store setup failed: %v", err)
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := objectStore.EnsureBucket(ensureCtx); err != nil {
			logger.Fatalf("object store bucket %s unavailable: %v", cfg.Bucket, err)
		}
		return objectStore
	case config.StoreBackendFS:
		fsStore, err := store.NewFSStore(cfg.UploadDir)
		if err != nil {
			logger.Fatalf("upload dir %s unusable: %v", cfg.UploadDir, err)
		}
		return fsStore
	default:
		logger.Fatalf("unknown store backend %q", cfg.Backend)
		return nil
	}
}

func buildLedger(ctx context.Context, cfg config.LedgerConfig, logger *log.Logger) store.Ledger {
	if cfg.PostgresDSN == "" {
		return store.NewMemoryLedger()
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ledger, err := store.NewPostgresLedger(connectCtx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres ledger setup failed: %v", err)
	}
	return ledger
}

func buildRateLimiter(cacheClient *cache.Client, cfg config.RateLimitConfig, logger *log.Logger) api.RateLimiter {
	if cfg.UploadsPerWindow <= 0 {
		return nil
	}
	limiter, err := ratelimit.NewRedisTokenBucket(cacheClient.Redis(), cfg.UploadsPerWindow, cfg.Window, "canvas:ratelimit")
	if err != nil {
		logger.Fatalf("rate limiter setup failed: %v", err)
	}
	return limiter
}

func loadWatermark(path string, logger *log.Logger) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatalf("watermark file %s unreadable: %v", path, err)
	}
	return data
}

// prewarmClient narrows the queue client for the upload handler, which only
// needs best-effort enqueue.
type prewarmClient struct {
	client *queue.Client
}

func (p prewarmClient) EnqueuePrewarm(ctx context.Context, payload queue.PrewarmPayload) error {
	_, err := p.client.EnqueuePrewarm(ctx, payload)
	return err
}
