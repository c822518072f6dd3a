package vectorstore

import (
	"log/slog"

	"github.com/creastat/vecstore/embed"
)

const (
	DefaultVectorField   = "content_vector"
	DefaultContentField  = "content"
	DefaultMetadataField = "metadata"
	DefaultScoreField    = "vector_score"
	DefaultBatchSize     = 1000
)

// DefaultKeyPrefix returns the key prefix used when none is configured.
func DefaultKeyPrefix(indexName string) string {
	return "doc:" + indexName + ":"
}

// Option is a functional option for configuring a Store.
type Option func(*storeConfig)

// storeConfig holds configuration for a Store.
type storeConfig struct {
	prefix        string
	vectorField   string
	contentField  string
	metadataField string
	algorithm     Algorithm
	metric        DistanceMetric
	hnsw          HNSWParams
	flat          FlatParams
	filter        []string
	batchSize     int
	keys          KeyPolicy
	embedder      embed.Embedder
	logger        *slog.Logger
}

func defaultConfig(indexName string) *storeConfig {
	return &storeConfig{
		prefix:        DefaultKeyPrefix(indexName),
		vectorField:   DefaultVectorField,
		contentField:  DefaultContentField,
		metadataField: DefaultMetadataField,
		algorithm:     AlgorithmHNSW,
		metric:        MetricCosine,
		batchSize:     DefaultBatchSize,
		keys:          UUIDKeys(),
		logger:        slog.New(slog.DiscardHandler),
	}
}

// WithKeyPrefix sets the prefix shared by every record key of the index.
func WithKeyPrefix(prefix string) Option {
	return func(c *storeConfig) {
		c.prefix = prefix
	}
}

// WithVectorField sets the hash field holding the vector bytes.
func WithVectorField(name string) Option {
	return func(c *storeConfig) {
		c.vectorField = name
	}
}

// WithContentField sets the hash field holding the document text.
func WithContentField(name string) Option {
	return func(c *storeConfig) {
		c.contentField = name
	}
}

// WithMetadataField sets the hash field holding the escaped metadata JSON.
func WithMetadataField(name string) Option {
	return func(c *storeConfig) {
		c.metadataField = name
	}
}

// WithDistanceMetric sets the distance metric of the vector index.
func WithDistanceMetric(m DistanceMetric) Option {
	return func(c *storeConfig) {
		c.metric = m
	}
}

// WithAlgorithm sets the vector index algorithm.
func WithAlgorithm(a Algorithm) Option {
	return func(c *storeConfig) {
		c.algorithm = a
	}
}

// WithHNSW selects HNSW with the given parameters.
func WithHNSW(p HNSWParams) Option {
	return func(c *storeConfig) {
		c.algorithm = AlgorithmHNSW
		c.hnsw = p
	}
}

// WithFlat selects FLAT with the given parameters.
func WithFlat(p FlatParams) Option {
	return func(c *storeConfig) {
		c.algorithm = AlgorithmFlat
		c.flat = p
	}
}

// WithFilter sets the store-level default tag filter. A store with a
// default filter rejects searches that pass their own filter.
func WithFilter(tags ...string) Option {
	return func(c *storeConfig) {
		c.filter = tags
	}
}

// WithBatchSize sets how many records are written per transaction.
func WithBatchSize(n int) Option {
	return func(c *storeConfig) {
		c.batchSize = n
	}
}

// WithKeyPolicy sets how keys are assigned to records inserted without
// explicit keys. Defaults to UUIDKeys.
func WithKeyPolicy(p KeyPolicy) Option {
	return func(c *storeConfig) {
		c.keys = p
	}
}

// WithEmbedder sets the embedder used by the text-based operations.
func WithEmbedder(e embed.Embedder) Option {
	return func(c *storeConfig) {
		c.embedder = e
	}
}

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *storeConfig) {
		c.logger = l
	}
}

// AddOption configures a single AddVectors call.
type AddOption func(*addConfig)

type addConfig struct {
	keys      []string
	batchSize int
}

// WithKeys supplies explicit record keys, one per vector.
func WithKeys(keys ...string) AddOption {
	return func(c *addConfig) {
		c.keys = keys
	}
}

// WithBatch overrides the store batch size for one call.
func WithBatch(n int) AddOption {
	return func(c *addConfig) {
		c.batchSize = n
	}
}
