// Package store is the typed repository over SQLite with the sqlite-vec
// extension. All vector-query syntax lives here so the storage engine can be
// swapped behind one boundary.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database holding memory items, chunks, vectors,
// jobs, and the archive-side tables.
type Store struct {
	db     *sql.DB
	dim    int
	logger zerolog.Logger
}

// Config holds store configuration
type Config struct {
	// Path is the SQLite database file; ":memory:" works for tests
	Path string
	// Dim is the storage dimension every persisted embedding must have
	Dim    int
	Logger zerolog.Logger
}

// Open opens the database and initializes the schema
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Dim <= 0 {
		return nil, errors.New("storage dimension must be positive")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for better concurrency between interactive reads and workers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		dim:    cfg.Dim,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memory_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			org_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'message',
			tier TEXT NOT NULL DEFAULT 'hot',
			chunks_computed INTEGER NOT NULL DEFAULT 0,
			pii_detected INTEGER NOT NULL DEFAULT 0,
			pii_redacted INTEGER NOT NULL DEFAULT 0,
			important INTEGER NOT NULL DEFAULT 0,
			embedding TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_tier ON memory_items(tier, created_at);
		CREATE INDEX IF NOT EXISTS idx_items_org ON memory_items(org_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_items_conversation ON memory_items(conversation_id);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			embedding TEXT,
			FOREIGN KEY (memory_id) REFERENCES memory_items(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_memory ON chunks(memory_id, idx);

		CREATE TABLE IF NOT EXISTS jobs (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			next_run_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, next_run_at);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_org ON conversations(org_id, created_at);

		CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_org ON decisions(org_id, created_at);

		CREATE TABLE IF NOT EXISTS usage_ledger (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			amount INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_usage_org ON usage_ledger(org_id, created_at);

		CREATE TABLE IF NOT EXISTS purchase_ledger (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL DEFAULT '',
			amount_cents INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_purchase_org ON purchase_ledger(org_id, created_at);

		CREATE TABLE IF NOT EXISTS access_logs (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			target_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_access_org ON access_logs(org_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(
			item_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.dim, s.dim)

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector tables: %w", err)
	}

	return nil
}

// Dim returns the configured storage dimension
func (s *Store) Dim() int {
	return s.dim
}

// DB exposes the underlying handle for components that share the database
// file, such as the job queue.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// marshalVec encodes a vector as the JSON array form sqlite-vec accepts
func marshalVec(vec []float32) (string, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return string(data), nil
}

// unmarshalVec decodes a stored JSON vector; empty input yields nil
func unmarshalVec(data sql.NullString) ([]float32, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(data.String), &vec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return vec, nil
}
