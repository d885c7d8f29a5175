package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapsegraph/synapse/internal/embedder"
	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/pkg/config"
	"github.com/synapsegraph/synapse/pkg/synapse"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "synapse",
	Short:   "A graph-structured, self-decaying AI memory engine",
	Version: Version,
	Long: `synapse stores memories as a graph of typed relationships, classifies
them static or dynamic, decays their confidence over time, and serves
hybrid dense/sparse retrieval with one-hop graph expansion.

Examples:
  synapse add "prefers dark mode" --user alice
  synapse search "editor preferences" --user alice
  synapse context alice
  synapse serve`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the store path from config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level from config (debug, info, warn, error)")
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads config.yaml (or defaults) and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stderr"})
	return cfg, nil
}

// openEngine loads config, constructs an engine backed by the Ollama
// embedder (or the deterministic embedder when Ollama is disabled), and
// initializes it. Callers must Close it when done.
func openEngine(ctx context.Context) (*synapse.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, nil, fmt.Errorf("preparing store directory: %w", err)
	}

	var emb embedder.Embedder
	if cfg.Ollama.Enabled {
		emb = embedder.NewOllama(cfg.Ollama, cfg.Engine.EmbeddingDimensions, cfg.RateLimit.Global)
	} else {
		emb = embedder.NewDeterministic(cfg.Engine.EmbeddingDimensions)
	}

	eng := synapse.New(cfg, emb)
	if err := eng.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, cfg, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
