package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/creastat/vecstore/config"
	"github.com/creastat/vecstore/vectorstore"
)

var (
	// Global flags
	verbose    bool
	configPath  string
	indexName   string
	backendName string
)

var rootCmd = &cobra.Command{
	Use:   "vecstore",
	Short: "Vector record store over Redis, Qdrant or memory",
	Long: `vecstore - store embedded documents in a vector index and search them.

Configuration is read from a YAML file (--config) and environment variables:
  VECSTORE_BACKEND, VECSTORE_INDEX, VECSTORE_REDIS_ADDR, VECSTORE_QDRANT_URL,
  OPENAI_API_KEY, SUPABASE_URL, SUPABASE_KEY

The memory backend keeps records only for the lifetime of one command, so
records added by one invocation are not visible to the next.

Examples:
  # Create the index for 1536-dim vectors
  vecstore index create --dim 1536

  # Add texts with shared metadata
  vecstore add "first note" "second note" --metadata '{"topic":"notes"}'

  # Search with a tag filter
  vecstore search "notes" -k 5 --tag notes`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "", "index name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "backend: redis, qdrant or memory (overrides config)")

	rootCmd.AddCommand(indexCmd, addCmd, searchCmd, ingestCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// env bundles what a command needs to talk to the index.
type env struct {
	cfg    *config.Config
	store  *vectorstore.Store
	logger *slog.Logger
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close backend", "error", err)
	}
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if indexName != "" {
		cfg.Index.Name = indexName
	}
	if backendName != "" {
		cfg.Backend = config.BackendType(backendName)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStore loads the configuration and opens the store. withEmbedder
// attaches the configured embedder.
func openStore(ctx context.Context, withEmbedder bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()
	if cfg.Backend == config.BackendMemory {
		logger.WarnContext(ctx, "memory backend: records are lost when the command exits")
	}

	opts, err := cfg.StoreOptions(logger)
	if err != nil {
		return nil, err
	}
	if withEmbedder {
		e, err := cfg.NewEmbedder()
		if err != nil {
			return nil, err
		}
		opts = append(opts, vectorstore.WithEmbedder(e))
	}

	backend, err := cfg.OpenBackend()
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	store, err := vectorstore.New(backend, cfg.Index.Name, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger.DebugContext(ctx, "store opened", "backend", cfg.Backend, "index", cfg.Index.Name)
	return &env{cfg: cfg, store: store, logger: logger}, nil
}
