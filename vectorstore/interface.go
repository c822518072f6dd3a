package vectorstore

import "context"

// Algorithm is the vector index algorithm used by the backend.
type Algorithm string

const (
	AlgorithmHNSW Algorithm = "HNSW"
	AlgorithmFlat Algorithm = "FLAT"
)

// DistanceMetric is the distance function used by the backend index.
type DistanceMetric string

const (
	MetricCosine DistanceMetric = "COSINE"
	MetricL2     DistanceMetric = "L2"
	MetricIP     DistanceMetric = "IP"
)

// HNSWParams are the optional HNSW tuning parameters. Zero values leave
// the backend default in place.
type HNSWParams struct {
	M              int
	EFConstruction int
	EFRuntime      int
	Epsilon        float64
	InitialCap     int
}

// FlatParams are the optional FLAT tuning parameters.
type FlatParams struct {
	InitialCap int
	BlockSize  int
}

// IndexSchema describes one logical collection: the index name, the key
// prefix its records share and the field layout of each record.
type IndexSchema struct {
	Name          string
	Prefix        string
	VectorField   string
	ContentField  string
	MetadataField string

	// Dim is set only on the schema passed to CreateIndex, from the first
	// vector inserted.
	Dim       int
	Algorithm Algorithm
	Metric    DistanceMetric
	HNSW      HNSWParams
	Flat      FlatParams
}

// IndexInfo is what a backend reports about an existing index.
type IndexInfo struct {
	Name    string
	NumDocs int64
}

// Record is a single stored item. Metadata holds escaped JSON.
type Record struct {
	Key      string
	Vector   []float32
	Content  string
	Metadata string
}

// Filter restricts a query to records whose metadata matches any of Tags.
// An empty filter matches every record of the index.
type Filter struct {
	Tags []string
}

// MatchAll reports whether the filter places no restriction.
func (f Filter) MatchAll() bool {
	return len(f.Tags) == 0
}

// KNN asks for the K nearest neighbours of Vector.
type KNN struct {
	Vector []float32
	K      int
}

// Query is a hybrid query: a metadata filter combined with a KNN clause.
// Backends render it into their own query language.
type Query struct {
	Filter Filter
	KNN    KNN

	// ScoreField is the alias under which the distance is returned.
	ScoreField string
}

// Hit is a raw result as returned by a backend. Score is nil when the
// backend did not populate the score field.
type Hit struct {
	Key      string
	Content  string
	Metadata string
	Score    *float32
}

// SearchResponse is the raw result set of a backend search.
type SearchResponse struct {
	Total int64
	Hits  []Hit
}

// Backend is the search-capable key-value store a Store delegates to.
// Implementations can use Redis, Qdrant or an in-process map.
type Backend interface {
	// IndexInfo describes the named index. Returns an error wrapping
	// vecstore.ErrIndexNotFound when the index does not exist.
	IndexInfo(ctx context.Context, name string) (IndexInfo, error)

	// CreateIndex creates the index described by schema over all records
	// whose key starts with schema.Prefix.
	CreateIndex(ctx context.Context, schema IndexSchema) error

	// DropIndex removes the named index, and its records when deleteRecords
	// is set. Returns an error wrapping vecstore.ErrIndexNotFound when the
	// index does not exist.
	DropIndex(ctx context.Context, name string, deleteRecords bool) error

	// WriteBatch writes records in a single transactional round trip.
	WriteBatch(ctx context.Context, schema IndexSchema, records []Record) error

	// Search runs q against the index described by schema.
	Search(ctx context.Context, schema IndexSchema, q Query) (SearchResponse, error)

	// Reserve atomically reserves n sequence numbers for the named index
	// and returns the first one.
	Reserve(ctx context.Context, name string, n int) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Document is a piece of text with its metadata.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	// Key is the store key of the record.
	Key string `json:"key"`

	// Score is the distance reported by the backend. Lower is closer.
	Score float32 `json:"score"`

	// Content is the text content associated with this vector.
	Content string `json:"content"`

	// Metadata contains additional key-value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorStore is a technology-agnostic interface for vector record storage
// and similarity search.
type VectorStore interface {
	// AddVectors stores vectors with their documents and returns the keys used.
	AddVectors(ctx context.Context, vectors [][]float32, docs []Document, opts ...AddOption) ([]string, error)

	// SimilaritySearchVectorWithScore performs KNN search with optional tag filtering.
	SimilaritySearchVectorWithScore(ctx context.Context, vector []float32, k int, filter []string) ([]SearchResult, error)

	// DropIndex removes the index. It reports false with a nil error when the
	// index did not exist.
	DropIndex(ctx context.Context, deleteRecords bool) (bool, error)

	// Close releases any resources held by the vector store.
	Close() error
}
