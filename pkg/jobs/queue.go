// Package jobs is the durable background work layer: a SQLite-backed queue
// with idempotency keys and retry backoff, a bounded worker pool, and the
// chunk-and-embed job that runs on it.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
)

// Job statuses. A job moves pending, running, then succeeded; a retryable
// failure parks it as failed until its backoff elapses, and once attempts
// reach the limit it lands in exhausted, which only a fresh enqueue revives.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusExhausted = "exhausted"
)

// ErrQueueUnavailable is returned by queue operations when the backend could
// not be reached at construction time.
var ErrQueueUnavailable = errors.New("job queue unavailable")

// Job is one row of queued work
type Job struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	NextRunAt time.Time `json:"next_run_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Queue persists jobs in the shared SQLite database, keyed by a stable
// idempotency key so re-enqueueing the same work never duplicates it.
type Queue struct {
	db        *sql.DB
	cfg       config.JobsConfig
	logger    zerolog.Logger
	available bool
}

// NewQueue wires the queue to the shared database handle. A nil or
// unreachable handle leaves the queue constructed but unavailable; callers
// treat enqueueing as best-effort in that state.
func NewQueue(db *sql.DB, cfg config.JobsConfig, logger zerolog.Logger) *Queue {
	q := &Queue{db: db, cfg: cfg, logger: logger}
	if db == nil || db.Ping() != nil {
		logger.Warn().Msg("job queue backend unavailable, background work disabled")
		return q
	}
	q.available = true
	return q
}

// Available reports whether the queue backend accepted the connection
func (q *Queue) Available() bool {
	return q.available
}

// Enqueue inserts or refreshes a job under its idempotency key. An existing
// pending or failed job is reset in place; a running job is left alone so an
// in-flight execution is never yanked.
func (q *Queue) Enqueue(ctx context.Context, key, kind, payload string) error {
	if !q.available {
		return ErrQueueUnavailable
	}

	now := time.Now().UTC().Unix()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (key, kind, payload, status, attempts, last_error, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', 0, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			status = ?,
			attempts = 0,
			last_error = '',
			next_run_at = 0,
			updated_at = excluded.updated_at
		WHERE jobs.status != ?`,
		key, kind, payload, StatusPending, now, now, StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", key, err)
	}
	return nil
}

// Dequeue claims the oldest runnable pending job and marks it running.
// Returns nil when nothing is due. Claiming is one UPDATE, so two workers
// racing for the same row can never both win it.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if !q.available {
		return nil, ErrQueueUnavailable
	}

	now := time.Now().UTC()
	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ?
		WHERE key = (
			SELECT key FROM jobs
			WHERE status IN (?, ?) AND next_run_at <= ?
			ORDER BY next_run_at, created_at
			LIMIT 1)
		RETURNING key, kind, payload, status, attempts, last_error, next_run_at, created_at, updated_at`,
		StatusRunning, now.Unix(), StatusPending, StatusFailed, now.Unix())

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Succeed marks a job done
func (q *Queue) Succeed(ctx context.Context, key string) error {
	if !q.available {
		return ErrQueueUnavailable
	}
	_, err := q.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, last_error = '', updated_at = ? WHERE key = ?",
		StatusSucceeded, time.Now().UTC().Unix(), key)
	return err
}

// Fail records a failed attempt. Retryable failures park as failed with an
// exponential-backoff retry time until the attempt limit, then as exhausted.
// Permanent failures go straight to exhausted.
func (q *Queue) Fail(ctx context.Context, key, message string, retryable bool) error {
	if !q.available {
		return ErrQueueUnavailable
	}

	var attempts int
	err := q.db.QueryRowContext(ctx,
		"SELECT attempts FROM jobs WHERE key = ?", key).Scan(&attempts)
	if err != nil {
		return err
	}
	attempts++

	now := time.Now().UTC()
	status := StatusFailed
	nextRun := now.Add(q.backoff(attempts))
	if !retryable || attempts >= q.cfg.MaxAttempts {
		status = StatusExhausted
		nextRun = now
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempts = ?, last_error = ?, next_run_at = ?, updated_at = ?
		WHERE key = ?`,
		status, attempts, message, nextRun.Unix(), now.Unix(), key)
	return err
}

// backoff doubles per attempt from the configured base, capped at the
// configured maximum.
func (q *Queue) backoff(attempts int) time.Duration {
	base := float64(q.cfg.BackoffBaseMs)
	delay := base * math.Pow(2, float64(attempts-1))
	if ceiling := float64(q.cfg.BackoffMaxMs); delay > ceiling {
		delay = ceiling
	}
	return time.Duration(delay) * time.Millisecond
}

// Get fetches one job by key
func (q *Queue) Get(ctx context.Context, key string) (*Job, error) {
	if !q.available {
		return nil, ErrQueueUnavailable
	}
	row := q.db.QueryRowContext(ctx, `
		SELECT key, kind, payload, status, attempts, last_error, next_run_at, created_at, updated_at
		FROM jobs WHERE key = ?`, key)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s not found", key)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListByStatus returns jobs in a given status, oldest first. Exhausted jobs
// stay inspectable this way.
func (q *Queue) ListByStatus(ctx context.Context, status string) ([]Job, error) {
	if !q.available {
		return nil, ErrQueueUnavailable
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, kind, payload, status, attempts, last_error, next_run_at, created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// PendingCount counts jobs waiting to run, including failed jobs awaiting a
// retry.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	if !q.available {
		return 0, ErrQueueUnavailable
	}
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE status IN (?, ?)", StatusPending, StatusFailed).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(r rowScanner) (*Job, error) {
	var job Job
	var nextRun, createdAt, updatedAt int64
	if err := r.Scan(&job.Key, &job.Kind, &job.Payload, &job.Status,
		&job.Attempts, &job.LastError, &nextRun, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.NextRunAt = time.Unix(nextRun, 0).UTC()
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	job.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &job, nil
}
