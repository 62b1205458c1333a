package config

// Config represents the main Engram configuration
type Config struct {
	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Database path (SQLite file with sqlite-vec extension)
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Scoring configuration
	Scoring ScoringConfig `json:"scoring" mapstructure:"scoring"`

	// Chunking configuration
	Chunking ChunkingConfig `json:"chunking" mapstructure:"chunking"`

	// Retrieval configuration
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// REFRAG configuration
	Refrag RefragConfig `json:"refrag" mapstructure:"refrag"`

	// Retention tier configuration
	Tiers TiersConfig `json:"tiers" mapstructure:"tiers"`

	// Background job configuration
	Jobs JobsConfig `json:"jobs" mapstructure:"jobs"`

	// Content safety configuration
	Safety SafetyConfig `json:"safety" mapstructure:"safety"`

	// Ingest directory watcher configuration
	Watch WatchConfig `json:"watch" mapstructure:"watch"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider     string `json:"provider" mapstructure:"provider"` // openai, ollama, mock
	Model        string `json:"model" mapstructure:"model"`
	APIKey       string `json:"api_key" mapstructure:"api_key"`
	BaseURL      string `json:"base_url" mapstructure:"base_url"`
	StorageDim   int    `json:"storage_dim" mapstructure:"storage_dim"`
	BatchSize    int    `json:"batch_size" mapstructure:"batch_size"`
	BatchDelayMs int    `json:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	CacheMaxMB   int    `json:"cache_max_mb" mapstructure:"cache_max_mb"`
}

// ScoringConfig holds relevance scoring configuration
type ScoringConfig struct {
	SimilarityWeight  float64        `json:"similarity_weight" mapstructure:"similarity_weight"`
	RecencyWeight     float64        `json:"recency_weight" mapstructure:"recency_weight"`
	DecayHalfLifeDays float64        `json:"decay_half_life_days" mapstructure:"decay_half_life_days"`
	Thresholds        TierThresholds `json:"thresholds" mapstructure:"thresholds"`
}

// TierThresholds holds the descending confidence tier cutoffs
type TierThresholds struct {
	High   float64 `json:"high" mapstructure:"high"`
	Medium float64 `json:"medium" mapstructure:"medium"`
	Low    float64 `json:"low" mapstructure:"low"`
}

// ChunkingConfig holds token window chunking configuration
type ChunkingConfig struct {
	ChunkTokens    int `json:"chunk_tokens" mapstructure:"chunk_tokens"`
	MinChunkTokens int `json:"min_chunk_tokens" mapstructure:"min_chunk_tokens"`
}

// RetrievalConfig holds search pipeline configuration
type RetrievalConfig struct {
	Limit               int      `json:"limit" mapstructure:"limit"`
	OverqueryMultiplier int      `json:"overquery_multiplier" mapstructure:"overquery_multiplier"`
	MinSimilarity       float64  `json:"min_similarity" mapstructure:"min_similarity"`
	ScoreFloor          float64  `json:"score_floor" mapstructure:"score_floor"`
	DedupThreshold      float64  `json:"dedup_threshold" mapstructure:"dedup_threshold"`
	TierCaps            TierCaps `json:"tier_caps" mapstructure:"tier_caps"`
	TokenBudget         int      `json:"token_budget" mapstructure:"token_budget"`
	CharsPerToken       float64  `json:"chars_per_token" mapstructure:"chars_per_token"`
}

// TierCaps holds per-confidence-tier result caps
type TierCaps struct {
	High   int `json:"high" mapstructure:"high"`
	Medium int `json:"medium" mapstructure:"medium"`
	Low    int `json:"low" mapstructure:"low"`
}

// RefragConfig holds SENSE/REFRAG retrieval configuration
type RefragConfig struct {
	Enabled          bool    `json:"enabled" mapstructure:"enabled"`
	CompressionRatio float64 `json:"compression_ratio" mapstructure:"compression_ratio"`
	MinSimilarity    float64 `json:"min_similarity" mapstructure:"min_similarity"`
	CandidateLimit   int     `json:"candidate_limit" mapstructure:"candidate_limit"`
	TokenBudget      int     `json:"token_budget" mapstructure:"token_budget"`
}

// TiersConfig holds retention tier lifecycle configuration
type TiersConfig struct {
	HotDays        int     `json:"hot_days" mapstructure:"hot_days"`
	WarmDays       int     `json:"warm_days" mapstructure:"warm_days"`
	ColdDays       int     `json:"cold_days" mapstructure:"cold_days"`
	Schedule       string  `json:"schedule" mapstructure:"schedule"` // cron expression
	CostPerGBMonth float64 `json:"cost_per_gb_month" mapstructure:"cost_per_gb_month"`
}

// JobsConfig holds background worker configuration
type JobsConfig struct {
	MaxAttempts    int `json:"max_attempts" mapstructure:"max_attempts"`
	BackoffBaseMs  int `json:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int `json:"backoff_max_ms" mapstructure:"backoff_max_ms"`
	Workers        int `json:"workers" mapstructure:"workers"`
	PollIntervalMs int `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// SafetyConfig holds content safety precheck configuration
type SafetyConfig struct {
	BlockMalicious bool `json:"block_malicious" mapstructure:"block_malicious"`
	BlockPII       bool `json:"block_pii" mapstructure:"block_pii"`
	RedactPII      bool `json:"redact_pii" mapstructure:"redact_pii"`
}

// WatchConfig holds ingest directory watcher configuration
type WatchConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Dir        string `json:"dir" mapstructure:"dir"`
	DebounceMs int    `json:"debounce_ms" mapstructure:"debounce_ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:     "openai",
			Model:        "text-embedding-3-small",
			StorageDim:   1536,
			BatchSize:    16,
			BatchDelayMs: 200,
			CacheMaxMB:   64,
		},
		Scoring: ScoringConfig{
			SimilarityWeight:  0.7,
			RecencyWeight:     0.3,
			DecayHalfLifeDays: 30,
			Thresholds: TierThresholds{
				High:   0.8,
				Medium: 0.65,
				Low:    0.5,
			},
		},
		Chunking: ChunkingConfig{
			ChunkTokens:    256,
			MinChunkTokens: 128,
		},
		Retrieval: RetrievalConfig{
			Limit:               10,
			OverqueryMultiplier: 3,
			MinSimilarity:       0.3,
			ScoreFloor:          0.5,
			DedupThreshold:      0.92,
			TierCaps: TierCaps{
				High:   5,
				Medium: 3,
				Low:    2,
			},
			TokenBudget:   2000,
			CharsPerToken: 4.0,
		},
		Refrag: RefragConfig{
			Enabled:          true,
			CompressionRatio: 0.7,
			MinSimilarity:    0.3,
			CandidateLimit:   50,
			TokenBudget:      2000,
		},
		Tiers: TiersConfig{
			HotDays:        7,
			WarmDays:       30,
			ColdDays:       90,
			Schedule:       "0 3 * * *",
			CostPerGBMonth: 0.25,
		},
		Jobs: JobsConfig{
			MaxAttempts:    5,
			BackoffBaseMs:  1000,
			BackoffMaxMs:   60000,
			Workers:        4,
			PollIntervalMs: 500,
		},
		Safety: SafetyConfig{
			BlockMalicious: true,
			BlockPII:       false,
			RedactPII:      true,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9190",
		},
	}
}
