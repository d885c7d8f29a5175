// Package config defines the tunable configuration surface for the memory
// engine: store location, algorithm thresholds, embedder/ANN collaborator
// settings, and the optional REST facade.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete engine configuration.
type Config struct {
	Profile   string          `mapstructure:"profile"`
	Store     StoreConfig     `mapstructure:"store"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Profiles  ProfileConfig   `mapstructure:"profiles"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	RestAPI   RestAPIConfig   `mapstructure:"rest_api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StoreConfig holds durable-store configuration.
type StoreConfig struct {
	Path           string        `mapstructure:"path"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	MaxBackups     int           `mapstructure:"max_backups"`
}

// EngineConfig holds the closed set of algorithm tunables.
type EngineConfig struct {
	EmbeddingDimensions int `mapstructure:"embedding_dimensions"`

	// Relationship-detection thresholds.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	TUpdate             float64 `mapstructure:"t_update"`
	TExtend             float64 `mapstructure:"t_extend"`
	TRel                float64 `mapstructure:"t_rel"`
	NCandidates         int     `mapstructure:"n_candidates"`
	MinLexicalOverlap   int     `mapstructure:"min_lexical_overlap"`
	ExtendLengthRatio   float64 `mapstructure:"extend_length_ratio"`
	MaxRelationshipEdges int    `mapstructure:"max_relationship_edges"`

	// Retrieval thresholds and fusion weights.
	TActive             float64 `mapstructure:"t_active"`
	TSearch             float64 `mapstructure:"t_search"`
	DenseWeight         float64 `mapstructure:"dense_weight"`
	SparseWeight        float64 `mapstructure:"sparse_weight"`
	SparseTokenScore    float64 `mapstructure:"sparse_token_score"`
	StaticBoost         float64 `mapstructure:"static_boost"`
	GraphExpansionDecay float64 `mapstructure:"graph_expansion_decay"`

	// Decay thresholds and formula constants.
	RStatic                   float64       `mapstructure:"r_static"`
	REpisodic                 float64       `mapstructure:"r_episodic"`
	IDecay                    time.Duration `mapstructure:"i_decay"`
	IPrune                    time.Duration `mapstructure:"i_prune"`
	TPrune                    float64       `mapstructure:"t_prune"`
	TemporalPenaltyAgeDays    float64       `mapstructure:"temporal_penalty_age_days"`
	TemporalMultiplier        float64       `mapstructure:"temporal_multiplier"`
	AccessBoostCap            float64       `mapstructure:"access_boost_cap"`
	AccessBoostRate           float64       `mapstructure:"access_boost_rate"`
	AccessBoostRecencyDays    float64       `mapstructure:"access_boost_recency_days"`
	ImportanceBrakeWeight     float64       `mapstructure:"importance_brake_weight"`
	PruneExceptionImportance  float64       `mapstructure:"prune_exception_importance"`
	PruneExceptionRecencyDays float64       `mapstructure:"prune_exception_recency_days"`

	// Consolidation threshold.
	TConsol float64 `mapstructure:"t_consol"`
}

// ProfileConfig holds user-profile cache and dynamic ring-buffer tunables.
type ProfileConfig struct {
	CacheCapacity             int           `mapstructure:"cache_capacity"`
	CacheExpiry               time.Duration `mapstructure:"cache_expiry"`
	DynamicCapacity           int           `mapstructure:"dynamic_capacity"`
	DynamicMaxAge             time.Duration `mapstructure:"dynamic_max_age"`
	DynamicMinImportance      float64       `mapstructure:"dynamic_min_importance"`
	StaticImportanceThreshold float64       `mapstructure:"static_importance_threshold"`
}

// OllamaConfig holds the Ollama-backed embedder collaborator configuration.
type OllamaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AutoDetect     bool   `mapstructure:"auto_detect"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// QdrantConfig holds the optional ANN index collaborator configuration.
type QdrantConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AutoDetect     bool   `mapstructure:"auto_detect"`
	URL            string `mapstructure:"url"`
	CollectionName string `mapstructure:"collection_name"`
}

// RestAPIConfig holds the optional REST facade configuration.
type RestAPIConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AutoPort     bool     `mapstructure:"auto_port"`
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	CORS         bool     `mapstructure:"cors"`
	APIKey       string   `mapstructure:"api_key"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LimitConfig mirrors internal/ratelimit's bucket parameters.
type LimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// ToolLimit names a per-route or per-collaborator rate limit.
type ToolLimit struct {
	Name              string  `mapstructure:"name"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// RateLimitConfig configures request throttling for both the REST facade
// and the embedder collaborator call path.
type RateLimitConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Global  LimitConfig `mapstructure:"global"`
	Tools   []ToolLimit `mapstructure:"tools"`
}

// LoggingConfig holds structured-logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with the engine's pinned defaults.
func DefaultConfig() *Config {
	configDir := ConfigPath()

	return &Config{
		Profile: "default",
		Store: StoreConfig{
			Path:           filepath.Join(configDir, "memories.db"),
			BackupInterval: 24 * time.Hour,
			MaxBackups:     7,
		},
		Engine: EngineConfig{
			EmbeddingDimensions:       768,
			SimilarityThreshold:       0.60,
			TUpdate:                   0.85,
			TExtend:                   0.72,
			TRel:                      0.60,
			NCandidates:               10,
			MinLexicalOverlap:         2,
			ExtendLengthRatio:         1.2,
			MaxRelationshipEdges:      5,
			TActive:                   0.3,
			TSearch:                   0.3,
			DenseWeight:               0.7,
			SparseWeight:              0.3,
			SparseTokenScore:          0.15,
			StaticBoost:               0.1,
			GraphExpansionDecay:       0.8,
			RStatic:                   0.001,
			REpisodic:                 0.08,
			IDecay:                    24 * time.Hour,
			IPrune:                    7 * 24 * time.Hour,
			TPrune:                    0.1,
			TemporalPenaltyAgeDays:    30,
			TemporalMultiplier:        1.5,
			AccessBoostCap:            0.2,
			AccessBoostRate:           0.02,
			AccessBoostRecencyDays:    7,
			ImportanceBrakeWeight:     0.5,
			PruneExceptionImportance: 0.7,
			PruneExceptionRecencyDays: 7,
			TConsol:                   0.85,
		},
		Profiles: ProfileConfig{
			CacheCapacity:             10,
			CacheExpiry:               time.Hour,
			DynamicCapacity:           5,
			DynamicMaxAge:             7 * 24 * time.Hour,
			DynamicMinImportance:      0.6,
			StaticImportanceThreshold: 0.9,
		},
		Ollama: OllamaConfig{
			Enabled:        true,
			AutoDetect:     true,
			BaseURL:        "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
		},
		Qdrant: QdrantConfig{
			Enabled:        false,
			AutoDetect:     true,
			URL:            "http://localhost:6333",
			CollectionName: "synapse_candidates",
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			AutoPort: true,
			Port:     3210,
			Host:     "localhost",
			CORS:     true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Global: LimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
			Tools: []ToolLimit{
				{Name: "embedder", RequestsPerSecond: 5, BurstSize: 10},
				{Name: "search", RequestsPerSecond: 10, BurstSize: 20},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file with fallback to defaults.
// Search order: ./config.yaml, ~/.synapse/config.yaml, /etc/synapse/config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".synapse"))
	v.AddConfigPath("/etc/synapse")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return unmarshalAndValidate(v)
}

// LoadFrom loads configuration from an explicit file path instead of
// searching the default locations.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshalAndValidate(v)
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults seeds viper with the same defaults as DefaultConfig, so that a
// partial config.yaml only overrides the keys it sets.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("profile", def.Profile)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.backup_interval", def.Store.BackupInterval)
	v.SetDefault("store.max_backups", def.Store.MaxBackups)

	v.SetDefault("engine.embedding_dimensions", def.Engine.EmbeddingDimensions)
	v.SetDefault("engine.similarity_threshold", def.Engine.SimilarityThreshold)
	v.SetDefault("engine.t_update", def.Engine.TUpdate)
	v.SetDefault("engine.t_extend", def.Engine.TExtend)
	v.SetDefault("engine.t_rel", def.Engine.TRel)
	v.SetDefault("engine.n_candidates", def.Engine.NCandidates)
	v.SetDefault("engine.min_lexical_overlap", def.Engine.MinLexicalOverlap)
	v.SetDefault("engine.extend_length_ratio", def.Engine.ExtendLengthRatio)
	v.SetDefault("engine.max_relationship_edges", def.Engine.MaxRelationshipEdges)
	v.SetDefault("engine.t_active", def.Engine.TActive)
	v.SetDefault("engine.t_search", def.Engine.TSearch)
	v.SetDefault("engine.dense_weight", def.Engine.DenseWeight)
	v.SetDefault("engine.sparse_weight", def.Engine.SparseWeight)
	v.SetDefault("engine.sparse_token_score", def.Engine.SparseTokenScore)
	v.SetDefault("engine.static_boost", def.Engine.StaticBoost)
	v.SetDefault("engine.graph_expansion_decay", def.Engine.GraphExpansionDecay)
	v.SetDefault("engine.r_static", def.Engine.RStatic)
	v.SetDefault("engine.r_episodic", def.Engine.REpisodic)
	v.SetDefault("engine.i_decay", def.Engine.IDecay)
	v.SetDefault("engine.i_prune", def.Engine.IPrune)
	v.SetDefault("engine.t_prune", def.Engine.TPrune)
	v.SetDefault("engine.temporal_penalty_age_days", def.Engine.TemporalPenaltyAgeDays)
	v.SetDefault("engine.temporal_multiplier", def.Engine.TemporalMultiplier)
	v.SetDefault("engine.access_boost_cap", def.Engine.AccessBoostCap)
	v.SetDefault("engine.access_boost_rate", def.Engine.AccessBoostRate)
	v.SetDefault("engine.access_boost_recency_days", def.Engine.AccessBoostRecencyDays)
	v.SetDefault("engine.importance_brake_weight", def.Engine.ImportanceBrakeWeight)
	v.SetDefault("engine.prune_exception_importance", def.Engine.PruneExceptionImportance)
	v.SetDefault("engine.prune_exception_recency_days", def.Engine.PruneExceptionRecencyDays)
	v.SetDefault("engine.t_consol", def.Engine.TConsol)

	v.SetDefault("profiles.cache_capacity", def.Profiles.CacheCapacity)
	v.SetDefault("profiles.cache_expiry", def.Profiles.CacheExpiry)
	v.SetDefault("profiles.dynamic_capacity", def.Profiles.DynamicCapacity)
	v.SetDefault("profiles.dynamic_max_age", def.Profiles.DynamicMaxAge)
	v.SetDefault("profiles.dynamic_min_importance", def.Profiles.DynamicMinImportance)
	v.SetDefault("profiles.static_importance_threshold", def.Profiles.StaticImportanceThreshold)

	v.SetDefault("ollama.enabled", def.Ollama.Enabled)
	v.SetDefault("ollama.auto_detect", def.Ollama.AutoDetect)
	v.SetDefault("ollama.base_url", def.Ollama.BaseURL)
	v.SetDefault("ollama.embedding_model", def.Ollama.EmbeddingModel)

	v.SetDefault("qdrant.enabled", def.Qdrant.Enabled)
	v.SetDefault("qdrant.auto_detect", def.Qdrant.AutoDetect)
	v.SetDefault("qdrant.url", def.Qdrant.URL)
	v.SetDefault("qdrant.collection_name", def.Qdrant.CollectionName)

	v.SetDefault("rest_api.enabled", def.RestAPI.Enabled)
	v.SetDefault("rest_api.auto_port", def.RestAPI.AutoPort)
	v.SetDefault("rest_api.port", def.RestAPI.Port)
	v.SetDefault("rest_api.host", def.RestAPI.Host)
	v.SetDefault("rest_api.cors", def.RestAPI.CORS)

	v.SetDefault("rate_limit.enabled", def.RateLimit.Enabled)
	v.SetDefault("rate_limit.global.requests_per_second", def.RateLimit.Global.RequestsPerSecond)
	v.SetDefault("rate_limit.global.burst_size", def.RateLimit.Global.BurstSize)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

// Validate checks the closed config option set for internal consistency.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.MaxBackups < 0 {
		return fmt.Errorf("store.max_backups must be >= 0")
	}

	if c.Engine.EmbeddingDimensions <= 0 {
		return fmt.Errorf("engine.embedding_dimensions must be > 0")
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"engine.t_update", c.Engine.TUpdate},
		{"engine.t_extend", c.Engine.TExtend},
		{"engine.t_rel", c.Engine.TRel},
		{"engine.t_active", c.Engine.TActive},
		{"engine.t_search", c.Engine.TSearch},
		{"engine.t_prune", c.Engine.TPrune},
		{"engine.t_consol", c.Engine.TConsol},
		{"engine.r_static", c.Engine.RStatic},
		{"engine.r_episodic", c.Engine.REpisodic},
	} {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", f.name, f.v)
		}
	}

	if !(c.Engine.TRel <= c.Engine.TExtend && c.Engine.TExtend <= c.Engine.TUpdate) {
		return fmt.Errorf("engine thresholds must satisfy t_rel <= t_extend <= t_update")
	}
	if c.Engine.NCandidates <= 0 {
		return fmt.Errorf("engine.n_candidates must be > 0")
	}
	if c.Engine.DenseWeight+c.Engine.SparseWeight <= 0 {
		return fmt.Errorf("engine.dense_weight + engine.sparse_weight must be > 0")
	}

	if c.Profiles.CacheCapacity <= 0 {
		return fmt.Errorf("profiles.cache_capacity must be > 0")
	}
	if c.Profiles.DynamicCapacity <= 0 {
		return fmt.Errorf("profiles.dynamic_capacity must be > 0")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when the REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Ollama.Enabled && c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required when Ollama is enabled")
	}
	if c.Qdrant.Enabled && c.Qdrant.URL == "" {
		return fmt.Errorf("qdrant.url is required when Qdrant is enabled")
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".synapse")
}

// DatabasePath returns the default store path.
func DatabasePath() string {
	return filepath.Join(ConfigPath(), "memories.db")
}
