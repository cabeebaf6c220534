package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/canvaslabs/canvas/internal/domain"
	"github.com/canvaslabs/canvas/internal/queue"
	"github.com/canvaslabs/canvas/internal/store"
)

const uploadFieldName = "image"

type ImageFetcher interface {
	Fetch(ctx context.Context, hash string, params domain.TransformParams) ([]byte, error)
}

type PrewarmEnqueuer interface {
	EnqueuePrewarm(ctx context.Context, payload queue.PrewarmPayload) error
}

type WebhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Server struct {
	logger          *log.Logger
	orchestrator    ImageFetcher
	contentStore    store.ContentStore
	ledger          store.Ledger
	prewarmer       PrewarmEnqueuer
	prewarmVariants []domain.TransformParams
	webhookClient   WebhookSender
	webhookURL      string
	rateLimiter     RateLimiter
	uploadLimit     int64
	allowedOrigins  []string
	metrics         *metrics
	mux             *http.ServeMux
}

type Options struct {
	Orchestrator ImageFetcher
	ContentStore store.ContentStore

	// Ledger, Prewarmer, Webhook and RateLimiter are optional; nil disables
	// the feature.
	Ledger          store.Ledger
	Prewarmer       PrewarmEnqueuer
	PrewarmVariants []domain.TransformParams
	Webhook         WebhookSender
	WebhookURL      string
	RateLimiter     RateLimiter

	UploadLimitBytes int64
	AllowedOrigins   []string
	MetricsRegistry  Registry
}

func NewServer(logger *log.Logger, opts Options) *Server {
	uploadLimit := opts.UploadLimitBytes
	if uploadLimit <= 0 {
		uploadLimit = 4096 << 10
	}

	s := &Server{
		logger:          logger,
		orchestrator:    opts.Orchestrator,
		contentStore:    opts.ContentStore,
		ledger:          opts.Ledger,
		prewarmer:       opts.Prewarmer,
		prewarmVariants: opts.PrewarmVariants,
		webhookClient:   opts.Webhook,
		webhookURL:      strings.TrimSpace(opts.WebhookURL),
		rateLimiter:     opts.RateLimiter,
		uploadLimit:     uploadLimit,
		allowedOrigins:  opts.AllowedOrigins,
		metrics:         newMetrics(opts.MetricsRegistry),
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /images", s.handleUpload)
	s.mux.HandleFunc("GET /images/{hash}", s.handleGetImage)
	s.mux.Handle("GET /metrics", s.metrics.handler())
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.metrics.withHTTPMetrics(h)
	h = s.withTracing(h)
	h = s.withCORS(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit)

	file, _, err := r.FormFile(uploadFieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "missing 'image' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable upload: "+err.Error())
		return
	}
	if len(data) == 0 || !strings.HasPrefix(http.DetectContentType(data), "image/") {
		writeError(w, http.StatusBadRequest, "upload is not a decodable image")
		return
	}

	hash, err := s.contentStore.Put(r.Context(), data)
	if err != nil {
		s.logger.Printf("upload store failed bytes=%d err=%v", len(data), err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	s.metrics.imagesUploaded.Inc()
	s.recordIngest(r.Context(), hash, data)
	s.dispatchIngestWebhook(r.Context(), hash, len(data))
	s.enqueuePrewarms(r.Context(), hash)

	writeJSON(w, http.StatusOK, map[string]string{"hash": hash})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !store.ValidHash(hash) {
		writeError(w, http.StatusNotFound, "image "+hash+" was not found")
		return
	}

	params, err := domain.ParseParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	etag := artifactETag(hash, params)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "max-age=604800")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := s.orchestrator.Fetch(r.Context(), hash, params)
	if err != nil {
		s.writeFetchError(w, hash, err)
		return
	}

	w.Header().Set("Content-Type", domain.ContentTypeForFormat(params.Format))
	if params.Filename != "" {
		w.Header().Set("Content-Disposition", contentDisposition(params.Filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeFetchError(w http.ResponseWriter, hash string, err error) {
	var invalid *domain.InvalidParamError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "image "+hash+" was not found")
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	default:
		s.logger.Printf("fetch failed hash=%s err=%v", hash, err)
		writeError(w, http.StatusInternalServerError, "image processing failed")
	}
}

func (s *Server) recordIngest(ctx context.Context, hash string, data []byte) {
	if s.ledger == nil {
		return
	}
	rec := store.ImageRecord{
		Hash:        hash,
		SizeBytes:   int64(len(data)),
		ContentType: http.DetectContentType(data),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		s.logger.Printf("ledger record failed hash=%s err=%v", hash, err)
	}
}

func (s *Server) dispatchIngestWebhook(ctx context.Context, hash string, size int) {
	if s.webhookClient == nil || s.webhookURL == "" {
		return
	}

	// Delivery retries outlive the upload request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	go func() {
		defer cancel()
		err := s.webhookClient.Send(ctx, s.webhookURL, "image.ingested", map[string]any{
			"hash":        hash,
			"size_bytes":  size,
			"ingested_at": time.Now().UTC(),
		})
		if err != nil {
			s.logger.Printf("ingest webhook failed hash=%s err=%v", hash, err)
		}
	}()
}

func (s *Server) enqueuePrewarms(ctx context.Context, hash string) {
	if s.prewarmer == nil {
		return
	}
	for _, params := range s.prewarmVariants {
		payload := queue.PrewarmPayload{Hash: hash, Params: params}
		if err := s.prewarmer.EnqueuePrewarm(ctx, payload); err != nil {
			s.logger.Printf("prewarm enqueue failed hash=%s dims=%dx%d err=%v", hash, params.Width, params.Height, err)
		}
	}
}

// artifactETag fingerprints the derived artifact identity so conditional
// requests revalidate without touching the cache.
func artifactETag(hash string, params domain.TransformParams) string {
	sum := sha256.Sum256(params.CacheKey(hash))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func contentDisposition(filename string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '\r', '\n', ';':
			return '_'
		}
		return r
	}, filename)
	return `inline; filename="` + sanitized + `"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status_code": status,
		"message":     message,
	})
}
