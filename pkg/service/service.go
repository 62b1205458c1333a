// Package service wires the engine together: storage, embedding, background
// chunking, retrieval, tier aging, and archive, behind one injected facade.
package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/archive"
	"github.com/fikri/engram/pkg/chunker"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/extract"
	"github.com/fikri/engram/pkg/jobs"
	"github.com/fikri/engram/pkg/lifecycle"
	"github.com/fikri/engram/pkg/refrag"
	"github.com/fikri/engram/pkg/retrieval"
	"github.com/fikri/engram/pkg/safety"
	"github.com/fikri/engram/pkg/scoring"
	"github.com/fikri/engram/pkg/store"
	"github.com/fikri/engram/pkg/tokenizer"
)

// Service is the assembled memory engine
type Service struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	store    *store.Store
	provider embedding.Provider
	tok      *tokenizer.Tokenizer
	chunker  *chunker.Chunker
	safety   *safety.Checker
	extract  *extract.Extractor

	retrieval *retrieval.Orchestrator
	refrag    *refrag.Engine
	lifecycle *lifecycle.Engine
	archiver  *archive.Archiver

	queue     *jobs.Queue
	pool      *jobs.Pool
	scheduler *lifecycle.Scheduler
}

// New assembles a service from validated configuration. Every component is
// constructed here and injected; nothing is package-global.
func New(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Service, error) {
	if report := config.Validate(cfg); !report.Valid() {
		return nil, report.Err()
	}

	tok, err := tokenizer.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	s, err := store.Open(store.Config{
		Path:   cfg.DBPath,
		Dim:    cfg.Embedding.StorageDim,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg, m)
	if err != nil {
		s.Close()
		return nil, err
	}

	scorer := scoring.New(cfg.Scoring)
	svc := &Service{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		store:    s,
		provider: provider,
		tok:      tok,
		chunker:  chunker.New(tok, cfg.Chunking.ChunkTokens, cfg.Chunking.MinChunkTokens),
		safety:   safety.New(cfg.Safety),
		extract:  extract.New(logger),

		retrieval: retrieval.New(s, provider, scorer, cfg.Retrieval, logger, m),
		refrag:    refrag.New(s, provider, cfg.Refrag, logger, m),
		lifecycle: lifecycle.New(s, cfg.Tiers, logger, m),
		archiver:  archive.New(s, logger),
	}

	svc.queue = jobs.NewQueue(s.DB(), cfg.Jobs, logger)
	svc.pool = jobs.NewPool(svc.queue, cfg.Jobs, logger, m)
	svc.pool.Register(jobs.KindChunk,
		jobs.NewChunkHandler(s, provider, svc.chunker, cfg.Embedding, logger, m))

	svc.scheduler, err = lifecycle.NewScheduler(svc.lifecycle, cfg.Tiers.Schedule, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	return svc, nil
}

// buildProvider selects the embedding backend and fronts it with the cache
func buildProvider(cfg *config.Config, m *metrics.Metrics) (embedding.Provider, error) {
	var inner embedding.Provider
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an api key")
		}
		inner = embedding.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model)
	case "ollama":
		inner = embedding.NewOllamaProvider(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	case "mock":
		inner = embedding.NewMockProvider(cfg.Embedding.StorageDim)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	cached, err := embedding.NewCachedProvider(inner, cfg.Embedding.CacheMaxMB)
	if err != nil {
		return nil, err
	}
	if m != nil {
		cached.OnHit = m.EmbeddingCacheHits.Inc
		cached.OnMiss = m.EmbeddingCacheMiss.Inc
	}
	return cached, nil
}

// Start launches the background workers and the tier scheduler
func (s *Service) Start(ctx context.Context) {
	s.pool.Start(ctx)
	s.scheduler.Start()
}

// Close stops background work and releases the database
func (s *Service) Close() error {
	s.scheduler.Stop()
	s.pool.Stop()
	return s.store.Close()
}

// Store returns the underlying repository, for the ingest watcher and tests
func (s *Service) Store() *store.Store {
	return s.store
}

// Queue exposes the job queue for inspection commands
func (s *Service) Queue() *jobs.Queue {
	return s.queue
}

// StoreRequest is one memory write
type StoreRequest struct {
	Content        string
	ContentType    string
	UserID         string
	OrgID          string
	AgentID        string
	ConversationID string
	Important      bool
}

// StoreResult reports what happened to one write
type StoreResult struct {
	ID string `json:"id"`
	// Blocked is a policy outcome, not a fault; Reason says why
	Blocked     bool   `json:"blocked"`
	Reason      string `json:"reason,omitempty"`
	PIIDetected bool   `json:"pii_detected"`
	PIIRedacted bool   `json:"pii_redacted"`
	// ChunkJobQueued is false when the content was too short to chunk or
	// the queue was unavailable
	ChunkJobQueued bool `json:"chunk_job_queued"`
}

// StoreMemory prechecks, embeds, and persists one memory item, then queues
// background chunking when the content is long enough. Queueing is
// best-effort: an unavailable queue never fails the write.
func (s *Service) StoreMemory(ctx context.Context, req StoreRequest) (*StoreResult, error) {
	start := time.Now()

	check := s.safety.Check(req.Content)
	if check.Blocked {
		if s.metrics != nil {
			reason := "pii"
			if !check.PIIDetected {
				reason = "malicious"
			}
			s.metrics.ItemsBlockedTotal.WithLabelValues(reason).Inc()
		}
		return &StoreResult{Blocked: true, Reason: check.Reason}, nil
	}

	content := check.Content
	contentType := req.ContentType
	if contentType == "" {
		contentType = "message"
	}

	// Providers reject over-long input, so truncate to the embedding window
	embedInput := s.tok.Truncate(content, s.provider.MaxTokens())
	vec, err := s.provider.Embed(ctx, embedInput)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	item := &store.MemoryItem{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		OrgID:          req.OrgID,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		Content:        content,
		ContentType:    contentType,
		Important:      req.Important,
		PIIDetected:    check.PIIDetected,
		PIIRedacted:    check.PIIRedacted,
		Embedding:      embedding.Normalize(vec, s.store.Dim()),
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		return nil, err
	}

	result := &StoreResult{
		ID:          item.ID,
		PIIDetected: check.PIIDetected,
		PIIRedacted: check.PIIRedacted,
	}

	if s.chunker.ShouldChunk(content) {
		if s.queue.Available() {
			if err := s.queue.Enqueue(ctx, jobs.ChunkKey(item.ID), jobs.KindChunk, item.ID); err != nil {
				s.logger.Warn().Err(err).Str("id", item.ID).Msg("failed to queue chunk job")
			} else {
				result.ChunkJobQueued = true
			}
		} else {
			s.logger.Warn().Str("id", item.ID).Msg("chunk job skipped, queue unavailable")
		}
	}

	if s.metrics != nil {
		s.metrics.ItemsStoredTotal.WithLabelValues(contentType).Inc()
		s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}

	s.logger.Info().
		Str("id", item.ID).
		Str("content_type", contentType).
		Bool("chunk_queued", result.ChunkJobQueued).
		Msg("memory stored")

	return result, nil
}

// IngestDocument extracts a document and stores the text as one memory item
func (s *Service) IngestDocument(ctx context.Context, name string, data []byte, req StoreRequest) (*StoreResult, error) {
	extracted, err := s.extract.Extract(bytes.NewReader(data), name)
	if err != nil {
		return nil, err
	}
	req.Content = extracted.Text
	req.ContentType = "document"

	s.logger.Debug().
		Str("name", name).
		Int("pages", extracted.Pages).
		Float64("confidence", extracted.Confidence).
		Msg("document extracted")

	return s.StoreMemory(ctx, req)
}

// Search runs the retrieval pipeline
func (s *Service) Search(ctx context.Context, req retrieval.Request) (*retrieval.Response, error) {
	return s.retrieval.Search(ctx, req)
}

// RefragRetrieve runs chunk-level retrieval with selective expansion
func (s *Service) RefragRetrieve(ctx context.Context, req refrag.Request) (*refrag.Result, error) {
	return s.refrag.Retrieve(ctx, req)
}

// TransitionTiers ages stored memory through the retention tiers
func (s *Service) TransitionTiers(ctx context.Context, dryRun bool) (*lifecycle.Report, error) {
	return s.lifecycle.Run(ctx, dryRun)
}

// Export snapshots an organization's memory into an archive payload
func (s *Service) Export(ctx context.Context, orgID string, from, to time.Time, mode archive.Mode) (*archive.Payload, error) {
	return s.archiver.Export(ctx, orgID, from, to, mode)
}

// Restore replays an archive payload into the live store
func (s *Service) Restore(ctx context.Context, data []byte, orgID string) (*archive.RestoreReport, error) {
	return s.archiver.Restore(ctx, data, orgID)
}

// Status summarizes the engine's current state
type Status struct {
	Items       store.Stats `json:"items"`
	JobsPending int         `json:"jobs_pending"`
	JobsParked  int         `json:"jobs_parked"`
	Provider    string      `json:"provider"`
	StorageDim  int         `json:"storage_dim"`
}

// GetStatus reports stored counts, queue depth, and the active provider
func (s *Service) GetStatus(ctx context.Context) (*Status, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Items:      stats,
		Provider:   s.provider.Name(),
		StorageDim: s.store.Dim(),
	}

	if s.queue.Available() {
		if status.JobsPending, err = s.queue.PendingCount(ctx); err != nil {
			return nil, err
		}
		parked, err := s.queue.ListByStatus(ctx, jobs.StatusExhausted)
		if err != nil {
			return nil, err
		}
		status.JobsParked = len(parked)
	}

	return status, nil
}
