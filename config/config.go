// Package config loads the vecstore YAML configuration and builds the
// backend, embedder, store options and document source it describes.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/embed"
	"github.com/creastat/vecstore/supabase"
	"github.com/creastat/vecstore/vectorstore"
	"github.com/creastat/vecstore/vectorstore/memory"
	"github.com/creastat/vecstore/vectorstore/qdrant"
	"github.com/creastat/vecstore/vectorstore/redis"
)

// BackendType represents the kind of vector backend.
type BackendType string

const (
	BackendRedis  BackendType = "redis"
	BackendQdrant BackendType = "qdrant"
	BackendMemory BackendType = "memory"
)

// Config is the top-level configuration file.
type Config struct {
	Backend  BackendType    `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Index    IndexConfig    `yaml:"index"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Supabase SupabaseConfig `yaml:"supabase"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// QdrantConfig holds the Qdrant connection settings.
type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
}

// IndexConfig describes the index and how records are written to it.
type IndexConfig struct {
	Name          string   `yaml:"name"`
	Prefix        string   `yaml:"prefix,omitempty"`
	VectorField   string   `yaml:"vector_field,omitempty"`
	ContentField  string   `yaml:"content_field,omitempty"`
	MetadataField string   `yaml:"metadata_field,omitempty"`
	Algorithm     string   `yaml:"algorithm,omitempty"`
	Metric        string   `yaml:"metric,omitempty"`
	HNSW          HNSW     `yaml:"hnsw,omitempty"`
	Flat          Flat     `yaml:"flat,omitempty"`
	BatchSize     int      `yaml:"batch_size,omitempty"`
	KeyPolicy     string   `yaml:"key_policy,omitempty"`
	Filter        []string `yaml:"filter,omitempty"`
}

// HNSW holds the optional HNSW parameters.
type HNSW struct {
	M              int     `yaml:"m,omitempty"`
	EFConstruction int     `yaml:"ef_construction,omitempty"`
	EFRuntime      int     `yaml:"ef_runtime,omitempty"`
	Epsilon        float64 `yaml:"epsilon,omitempty"`
	InitialCap     int     `yaml:"initial_cap,omitempty"`
}

// Flat holds the optional FLAT parameters.
type Flat struct {
	InitialCap int `yaml:"initial_cap,omitempty"`
	BlockSize  int `yaml:"block_size,omitempty"`
}

// EmbedderConfig configures the OpenAI-compatible embedder.
type EmbedderConfig struct {
	APIKey         string `yaml:"api_key,omitempty"`
	BaseURL        string `yaml:"base_url,omitempty"`
	Model          string `yaml:"model,omitempty"`
	Dimension      int    `yaml:"dimension,omitempty"`
	MaxBatchTokens int    `yaml:"max_batch_tokens,omitempty"`
}

// SupabaseConfig configures the document source.
type SupabaseConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
	Table  string `yaml:"table,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Backend: BackendRedis,
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Index:   IndexConfig{Name: "documents"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides maps environment variables onto config fields.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"VECSTORE_BACKEND":        (*string)(&c.Backend),
		"VECSTORE_INDEX":          &c.Index.Name,
		"VECSTORE_REDIS_ADDR":     &c.Redis.Addr,
		"VECSTORE_REDIS_PASSWORD": &c.Redis.Password,
		"VECSTORE_QDRANT_URL":     &c.Qdrant.URL,
		"QDRANT_API_KEY":          &c.Qdrant.APIKey,
		"OPENAI_API_KEY":          &c.Embedder.APIKey,
		"OPENAI_BASE_URL":         &c.Embedder.BaseURL,
		"SUPABASE_URL":            &c.Supabase.URL,
		"SUPABASE_KEY":            &c.Supabase.APIKey,
	}
}

func (c *Config) applyEnv() {
	for name, field := range c.envOverrides() {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRedis, BackendQdrant, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", vecstore.ErrInvalidConfig, c.Backend)
	}
	if c.Index.Name == "" {
		return fmt.Errorf("%w: index.name is required", vecstore.ErrInvalidConfig)
	}
	if c.Index.BatchSize < 0 {
		return fmt.Errorf("%w: index.batch_size must not be negative", vecstore.ErrInvalidConfig)
	}
	if _, err := c.keyPolicy(); err != nil {
		return err
	}
	return nil
}

// OpenBackend connects to the configured backend.
func (c *Config) OpenBackend() (vectorstore.Backend, error) {
	switch c.Backend {
	case BackendRedis:
		return redis.New(redis.Config{
			Addr:     c.Redis.Addr,
			Username: c.Redis.Username,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	case BackendQdrant:
		return qdrant.New(qdrant.Config{URL: c.Qdrant.URL, APIKey: c.Qdrant.APIKey})
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", vecstore.ErrInvalidConfig, c.Backend)
	}
}

// NewEmbedder builds the embedder. It fails without an API key.
func (c *Config) NewEmbedder() (embed.Embedder, error) {
	if c.Embedder.APIKey == "" {
		return nil, fmt.Errorf("%w: embedder.api_key (or OPENAI_API_KEY) is required", vecstore.ErrInvalidConfig)
	}
	var opts []embed.Option
	if c.Embedder.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(c.Embedder.BaseURL))
	}
	if c.Embedder.Model != "" {
		opts = append(opts, embed.WithModel(c.Embedder.Model))
	}
	if c.Embedder.Dimension > 0 {
		opts = append(opts, embed.WithDimension(c.Embedder.Dimension))
	}
	if c.Embedder.MaxBatchTokens > 0 {
		opts = append(opts, embed.WithMaxBatchTokens(c.Embedder.MaxBatchTokens))
	}
	return embed.NewOpenAI(c.Embedder.APIKey, opts...), nil
}

// NewSource builds the Supabase document source.
func (c *Config) NewSource() (supabase.Source, error) {
	return supabase.New(supabase.Config{
		URL:    c.Supabase.URL,
		APIKey: c.Supabase.APIKey,
		Table:  c.Supabase.Table,
	})
}

// StoreOptions translates the index section into store options.
func (c *Config) StoreOptions(logger *slog.Logger) ([]vectorstore.Option, error) {
	ix := c.Index
	var opts []vectorstore.Option
	if ix.Prefix != "" {
		opts = append(opts, vectorstore.WithKeyPrefix(ix.Prefix))
	}
	if ix.VectorField != "" {
		opts = append(opts, vectorstore.WithVectorField(ix.VectorField))
	}
	if ix.ContentField != "" {
		opts = append(opts, vectorstore.WithContentField(ix.ContentField))
	}
	if ix.MetadataField != "" {
		opts = append(opts, vectorstore.WithMetadataField(ix.MetadataField))
	}
	if ix.Metric != "" {
		opts = append(opts, vectorstore.WithDistanceMetric(vectorstore.DistanceMetric(strings.ToUpper(ix.Metric))))
	}
	switch strings.ToUpper(ix.Algorithm) {
	case "", string(vectorstore.AlgorithmHNSW):
		opts = append(opts, vectorstore.WithHNSW(vectorstore.HNSWParams{
			M:              ix.HNSW.M,
			EFConstruction: ix.HNSW.EFConstruction,
			EFRuntime:      ix.HNSW.EFRuntime,
			Epsilon:        ix.HNSW.Epsilon,
			InitialCap:     ix.HNSW.InitialCap,
		}))
	case string(vectorstore.AlgorithmFlat):
		opts = append(opts, vectorstore.WithFlat(vectorstore.FlatParams{
			InitialCap: ix.Flat.InitialCap,
			BlockSize:  ix.Flat.BlockSize,
		}))
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", vecstore.ErrInvalidConfig, ix.Algorithm)
	}
	if ix.BatchSize > 0 {
		opts = append(opts, vectorstore.WithBatchSize(ix.BatchSize))
	}
	if len(ix.Filter) > 0 {
		opts = append(opts, vectorstore.WithFilter(ix.Filter...))
	}
	policy, err := c.keyPolicy()
	if err != nil {
		return nil, err
	}
	opts = append(opts, vectorstore.WithKeyPolicy(policy))
	if logger != nil {
		opts = append(opts, vectorstore.WithLogger(logger))
	}
	return opts, nil
}

func (c *Config) keyPolicy() (vectorstore.KeyPolicy, error) {
	switch strings.ToLower(c.Index.KeyPolicy) {
	case "", "uuid":
		return vectorstore.UUIDKeys(), nil
	case "sequence":
		return vectorstore.SequenceKeys(), nil
	case "count":
		return vectorstore.CountKeys(), nil
	default:
		return nil, fmt.Errorf("%w: unknown key_policy %q", vecstore.ErrInvalidConfig, c.Index.KeyPolicy)
	}
}
