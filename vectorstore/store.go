// Package vectorstore stores embedding vectors with their text and metadata
// in a search-capable key-value backend and runs KNN queries against the
// backend's vector index.
//
// The Store only shapes requests and responses. Indexing, distance
// computation and persistence belong to the Backend (see the redis, qdrant
// and memory subpackages).
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/embed"
)

// Store is a vector record store facade over a Backend.
//
// A Store is immutable after New and does no locking of its own. Concurrent
// use is as safe as the backend is, except that EnsureIndex is not atomic.
type Store struct {
	backend   Backend
	schema    IndexSchema
	filter    []string
	batchSize int
	keys      KeyPolicy
	embedder  embed.Embedder
	logger    *slog.Logger
}

// New creates a Store for the named index.
func New(backend Backend, indexName string, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", vecstore.ErrInvalidConfig)
	}
	if indexName == "" {
		return nil, fmt.Errorf("%w: index name is required", vecstore.ErrInvalidConfig)
	}

	cfg := defaultConfig(indexName)
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", vecstore.ErrInvalidConfig, cfg.batchSize)
	}
	switch cfg.algorithm {
	case AlgorithmHNSW, AlgorithmFlat:
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", vecstore.ErrInvalidConfig, cfg.algorithm)
	}
	switch cfg.metric {
	case MetricCosine, MetricL2, MetricIP:
	default:
		return nil, fmt.Errorf("%w: unknown distance metric %q", vecstore.ErrInvalidConfig, cfg.metric)
	}
	if cfg.prefix == "" || cfg.vectorField == "" || cfg.contentField == "" || cfg.metadataField == "" {
		return nil, fmt.Errorf("%w: key prefix and field names must not be empty", vecstore.ErrInvalidConfig)
	}
	if cfg.keys == nil {
		cfg.keys = UUIDKeys()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		backend: backend,
		schema: IndexSchema{
			Name:          indexName,
			Prefix:        cfg.prefix,
			VectorField:   cfg.vectorField,
			ContentField:  cfg.contentField,
			MetadataField: cfg.metadataField,
			Algorithm:     cfg.algorithm,
			Metric:        cfg.metric,
			HNSW:          cfg.hnsw,
			Flat:          cfg.flat,
		},
		filter:    cfg.filter,
		batchSize: cfg.batchSize,
		keys:      cfg.keys,
		embedder:  cfg.embedder,
		logger:    cfg.logger.With("index", indexName),
	}, nil
}

// Schema returns the index schema. Dim is always zero: the dimensionality
// is chosen per index by EnsureIndex and only recorded by the backend.
func (s *Store) Schema() IndexSchema {
	return s.schema
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// EnsureIndex creates the index with the given dimensionality unless it
// already exists. The existence check and the creation are not atomic.
func (s *Store) EnsureIndex(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimensionality must be positive, got %d", vecstore.ErrInvalidInput, dim)
	}

	_, err := s.backend.IndexInfo(ctx, s.schema.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, vecstore.ErrIndexNotFound) {
		return fmt.Errorf("describe index %s: %w", s.schema.Name, err)
	}

	schema := s.schema
	schema.Dim = dim
	if err := s.backend.CreateIndex(ctx, schema); err != nil {
		return fmt.Errorf("create index %s: %w", s.schema.Name, err)
	}
	s.logger.DebugContext(ctx, "index created",
		"dimension", dim,
		"algorithm", schema.Algorithm,
		"metric", schema.Metric,
		"prefix", schema.Prefix,
	)
	return nil
}

// AddVectors stores each vector with its document and returns the keys
// written, in input order.
//
// Records are written in transactional batches of the configured batch
// size. A failed batch returns an error; earlier batches stay committed.
func (s *Store) AddVectors(ctx context.Context, vectors [][]float32, docs []Document, opts ...AddOption) ([]string, error) {
	cfg := addConfig{batchSize: s.batchSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors", vecstore.ErrInvalidInput)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: %d vectors for %d documents", vecstore.ErrInvalidInput, len(vectors), len(docs))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", vecstore.ErrInvalidInput, i, len(v), dim)
		}
	}
	if cfg.keys != nil && len(cfg.keys) != len(vectors) {
		return nil, fmt.Errorf("%w: %d keys for %d vectors", vecstore.ErrInvalidInput, len(cfg.keys), len(vectors))
	}
	if cfg.batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", vecstore.ErrInvalidInput, cfg.batchSize)
	}

	if err := s.EnsureIndex(ctx, dim); err != nil {
		return nil, err
	}

	keys := cfg.keys
	if keys == nil {
		var err error
		keys, err = s.keys.AssignKeys(ctx, s.backend, s.schema, len(vectors))
		if err != nil {
			return nil, fmt.Errorf("assign keys: %w", err)
		}
	}

	batch := make([]Record, 0, min(cfg.batchSize, len(vectors)))
	flushes := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.backend.WriteBatch(ctx, s.schema, batch); err != nil {
			return fmt.Errorf("write batch %d (%d records): %w", flushes, len(batch), err)
		}
		flushes++
		s.logger.DebugContext(ctx, "batch flushed", "records", len(batch))
		batch = batch[:0]
		return nil
	}

	for i, v := range vectors {
		md, err := EncodeMetadata(docs[i].Metadata)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		batch = append(batch, Record{
			Key:      keys[i],
			Vector:   v,
			Content:  docs[i].PageContent,
			Metadata: md,
		})
		if len(batch) == cfg.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "vectors added", "count", len(vectors), "batches", flushes)
	return keys, nil
}

// AddDocuments embeds the documents with the store embedder and adds them.
func (s *Store) AddDocuments(ctx context.Context, docs []Document, opts ...AddOption) ([]string, error) {
	if s.embedder == nil {
		return nil, vecstore.ErrNoEmbedder
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return s.AddVectors(ctx, vectors, docs, opts...)
}

// SimilaritySearchVectorWithScore returns up to k records nearest to vector,
// sorted by ascending score.
//
// filter restricts the search to records whose metadata matches any of the
// tags. It is an error to pass a filter to a store that has a default one.
func (s *Store) SimilaritySearchVectorWithScore(ctx context.Context, vector []float32, k int, filter []string) ([]SearchResult, error) {
	if len(filter) > 0 && len(s.filter) > 0 {
		return nil, vecstore.ErrFilterConflict
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", vecstore.ErrInvalidInput, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", vecstore.ErrInvalidInput)
	}
	if len(filter) == 0 {
		filter = s.filter
	}

	q := Query{
		Filter:     Filter{Tags: filter},
		KNN:        KNN{Vector: vector, K: k},
		ScoreField: DefaultScoreField,
	}
	resp, err := s.backend.Search(ctx, s.schema, q)
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", s.schema.Name, err)
	}

	results := make([]SearchResult, 0, len(resp.Hits))
	if resp.Total == 0 {
		return results, nil
	}
	for _, hit := range resp.Hits {
		if hit.Score == nil {
			s.logger.DebugContext(ctx, "skipping hit without score", "key", hit.Key)
			continue
		}
		md, err := DecodeMetadata(hit.Metadata)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", hit.Key, err)
		}
		results = append(results, SearchResult{
			Key:      hit.Key,
			Score:    *hit.Score,
			Content:  hit.Content,
			Metadata: md,
		})
	}

	s.logger.DebugContext(ctx, "search completed", "k", k, "tags", len(filter), "results", len(results))
	return results, nil
}

// SimilaritySearchWithScore embeds query and searches with the vector.
func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int, filter []string) ([]SearchResult, error) {
	if s.embedder == nil {
		return nil, vecstore.ErrNoEmbedder
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.SimilaritySearchVectorWithScore(ctx, vector, k, filter)
}

// SimilaritySearch returns the documents nearest to query.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, filter []string) ([]Document, error) {
	results, err := s.SimilaritySearchWithScore(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = Document{PageContent: r.Content, Metadata: r.Metadata}
	}
	return docs, nil
}

// DropIndex removes the index, and its records when deleteRecords is set.
// It returns (false, nil) when the index did not exist and (false, err) on
// backend failure.
func (s *Store) DropIndex(ctx context.Context, deleteRecords bool) (bool, error) {
	err := s.backend.DropIndex(ctx, s.schema.Name, deleteRecords)
	if errors.Is(err, vecstore.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("drop index %s: %w", s.schema.Name, err)
	}
	s.logger.InfoContext(ctx, "index dropped", "delete_records", deleteRecords)
	return true, nil
}

// Delete drops the index together with every record under its prefix.
func (s *Store) Delete(ctx context.Context) error {
	_, err := s.DropIndex(ctx, true)
	return err
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// FromTexts embeds texts, stores them in a new Store and returns it.
//
// metadatas may be empty, hold a single value shared by every text, or
// hold one value per text.
func FromTexts(ctx context.Context, texts []string, metadatas []map[string]any, embedder embed.Embedder, backend Backend, indexName string, opts ...Option) (*Store, error) {
	if len(metadatas) > 1 && len(metadatas) < len(texts) {
		return nil, fmt.Errorf("%w: %d metadata values for %d texts", vecstore.ErrInvalidInput, len(metadatas), len(texts))
	}
	docs := make([]Document, len(texts))
	for i, text := range texts {
		var md map[string]any
		switch len(metadatas) {
		case 0:
		case 1:
			md = metadatas[0]
		default:
			md = metadatas[i]
		}
		docs[i] = Document{PageContent: text, Metadata: md}
	}
	return FromDocuments(ctx, docs, embedder, backend, indexName, opts...)
}

// FromDocuments embeds docs, stores them in a new Store and returns it.
func FromDocuments(ctx context.Context, docs []Document, embedder embed.Embedder, backend Backend, indexName string, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, vecstore.ErrNoEmbedder
	}
	s, err := New(backend, indexName, append(opts, WithEmbedder(embedder))...)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return s, nil
}

// Compile-time check that Store implements VectorStore.
var _ VectorStore = (*Store)(nil)
