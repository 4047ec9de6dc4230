package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int              `json:"port"`
	LogConfig        logger.LogConfig `json:"log_config"`
	CORSAllowlist    []string         `json:"cors_allowlist"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	Index            IndexConfig      `json:"index"`
	Archive          ArchiveConfig    `json:"archive"`
	Database         DatabaseConfig   `json:"database"`
	AI               AIConfig         `json:"ai"`
	Chunking         ChunkingConfig   `json:"chunking"`
	Retrieval        RetrievalConfig  `json:"retrieval"`
}

// IndexConfig selects the vector index backend. Data is decoded by the
// backend factory itself.
type IndexConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ArchiveConfig selects where raw document text snapshots are kept.
// An empty type disables archiving.
type ArchiveConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
	// Fallbacks are tried in order when the primary provider fails.
	// Embedding fallbacks must produce the same vector dimension.
	Fallbacks []ProviderConfig `json:"fallbacks"`
}

type AIConfig struct {
	Embedding       ProviderConfig `json:"embedding"`
	Generation      ProviderConfig `json:"generation"`
	Dimension       int            `json:"dimension"`
	BatchSize       int            `json:"batch_size"`
	TimeoutSeconds  int            `json:"timeout_seconds"`
	CacheSize       int            `json:"cache_size"`
	CacheTTLHours   int            `json:"cache_ttl_hours"`
	CacheMaxAgeDays int            `json:"cache_max_age_days"`
}

// Overlap and ContextWindow are pointers because zero is a legal,
// meaningful setting for both; nil means defaulted.
type ChunkingConfig struct {
	ChunkSize int  `json:"chunk_size"`
	Overlap   *int `json:"overlap"`
}

type RetrievalConfig struct {
	TopK             int  `json:"top_k"`
	ContextWindow    *int `json:"context_window"`
	RelatedQuestions int  `json:"related_questions"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Type == "pgvector" && !cfg.Database.Enabled() {
		return fmt.Errorf("database is required for pgvector index")
	}
	if cfg.Database.Enabled() && cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.AI.Embedding.Provider == "" {
		return fmt.Errorf("ai.embedding.provider is required")
	}
	if cfg.AI.Generation.Provider == "" {
		return fmt.Errorf("ai.generation.provider is required")
	}
	if cfg.AI.Dimension <= 0 {
		return fmt.Errorf("ai.dimension is required")
	}
	if cfg.AI.BatchSize <= 0 {
		cfg.AI.BatchSize = 32
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours == 0 {
		cfg.AI.CacheTTLHours = 2
	}
	if cfg.AI.CacheMaxAgeDays == 0 {
		cfg.AI.CacheMaxAgeDays = 30
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.Overlap == nil {
		overlap := 100
		cfg.Chunking.Overlap = &overlap
	}
	if *cfg.Chunking.Overlap < 0 || *cfg.Chunking.Overlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, chunk_size)")
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextWindow == nil {
		window := 1
		cfg.Retrieval.ContextWindow = &window
	}
	if *cfg.Retrieval.ContextWindow < 0 {
		return fmt.Errorf("retrieval.context_window must be >= 0")
	}
	if cfg.Retrieval.RelatedQuestions == 0 {
		cfg.Retrieval.RelatedQuestions = 3
	}
	if cfg.Retrieval.RelatedQuestions > 5 {
		cfg.Retrieval.RelatedQuestions = 5
	}
	return nil
}
