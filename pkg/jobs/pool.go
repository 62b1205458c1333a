package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/embedding"
)

// Handler executes one claimed job. A nil return marks the job succeeded;
// an error is classified retryable or permanent through the provider error
// typing and routed back into the queue accordingly.
type Handler func(ctx context.Context, job *Job) error

// Pool polls the queue with a bounded set of workers
type Pool struct {
	queue    *Queue
	handlers map[string]Handler
	cfg      config.JobsConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool over the queue. Handlers are registered per
// job kind before Start. Metrics may be nil.
func NewPool(queue *Queue, cfg config.JobsConfig, logger zerolog.Logger, m *metrics.Metrics) *Pool {
	return &Pool{
		queue:    queue,
		handlers: make(map[string]Handler),
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Register binds a handler to a job kind
func (p *Pool) Register(kind string, handler Handler) {
	p.handlers[kind] = handler
}

// Start launches the workers. A no-op when the queue is unavailable.
func (p *Pool) Start(ctx context.Context) {
	if !p.queue.Available() {
		p.logger.Warn().Msg("worker pool not started, queue unavailable")
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info().Int("workers", p.cfg.Workers).Msg("worker pool started")
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.PollIntervalMs) * time.Millisecond
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Int("worker", id).Msg("dequeue failed")
		}

		if job != nil {
			p.run(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (p *Pool) run(ctx context.Context, job *Job) {
	start := time.Now()
	handler, ok := p.handlers[job.Kind]

	var err error
	if !ok {
		p.logger.Error().Str("kind", job.Kind).Str("key", job.Key).Msg("no handler for job kind")
		err = p.queue.Fail(ctx, job.Key, "no handler registered for kind "+job.Kind, false)
		p.observe("dropped", start)
		if err != nil {
			p.logger.Error().Err(err).Str("key", job.Key).Msg("failed to park job")
		}
		return
	}

	if err = handler(ctx, job); err != nil {
		retryable := embedding.IsRetryable(err)
		p.logger.Warn().Err(err).
			Str("key", job.Key).
			Int("attempts", job.Attempts+1).
			Bool("retryable", retryable).
			Msg("job failed")
		if ferr := p.queue.Fail(ctx, job.Key, err.Error(), retryable); ferr != nil {
			p.logger.Error().Err(ferr).Str("key", job.Key).Msg("failed to record job failure")
		}
		p.observe("failed", start)
		return
	}

	if err = p.queue.Succeed(ctx, job.Key); err != nil {
		p.logger.Error().Err(err).Str("key", job.Key).Msg("failed to record job success")
	}
	p.observe("succeeded", start)
}

func (p *Pool) observe(status string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.JobsProcessedTotal.WithLabelValues(status).Inc()
	p.metrics.JobDuration.Observe(time.Since(start).Seconds())
	if n, err := p.queue.PendingCount(context.Background()); err == nil {
		p.metrics.JobsPending.Set(float64(n))
	}
}
