// Package memory implements vectorstore.Backend in process with a
// brute-force scan. It mirrors how the Redis backend behaves: records live
// in a flat keyspace and an index covers every record under its prefix,
// including records written before the index was created.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/vectorstore"
)

// Store implements vectorstore.Backend using in-memory maps.
type Store struct {
	mu       sync.RWMutex
	records  map[string]vectorstore.Record
	indexes  map[string]vectorstore.IndexSchema
	counters map[string]int64
	closed   bool
}

// New creates an empty in-memory backend.
func New() *Store {
	return &Store{
		records:  make(map[string]vectorstore.Record),
		indexes:  make(map[string]vectorstore.IndexSchema),
		counters: make(map[string]int64),
	}
}

// IndexInfo implements vectorstore.Backend.
func (s *Store) IndexInfo(ctx context.Context, name string) (vectorstore.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return vectorstore.IndexInfo{}, errClosed
	}
	schema, ok := s.indexes[name]
	if !ok {
		return vectorstore.IndexInfo{}, fmt.Errorf("%s: %w", name, vecstore.ErrIndexNotFound)
	}
	var n int64
	for key := range s.records {
		if strings.HasPrefix(key, schema.Prefix) {
			n++
		}
	}
	return vectorstore.IndexInfo{Name: name, NumDocs: n}, nil
}

// CreateIndex implements vectorstore.Backend. An index that already exists
// is left untouched, as on Redis.
func (s *Store) CreateIndex(ctx context.Context, schema vectorstore.IndexSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	if _, ok := s.indexes[schema.Name]; ok {
		return nil
	}
	s.indexes[schema.Name] = schema
	return nil
}

// DropIndex implements vectorstore.Backend.
func (s *Store) DropIndex(ctx context.Context, name string, deleteRecords bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	schema, ok := s.indexes[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, vecstore.ErrIndexNotFound)
	}
	delete(s.indexes, name)
	if deleteRecords {
		for key := range s.records {
			if strings.HasPrefix(key, schema.Prefix) {
				delete(s.records, key)
			}
		}
	}
	return nil
}

// WriteBatch implements vectorstore.Backend. The whole batch becomes
// visible at once.
func (s *Store) WriteBatch(ctx context.Context, schema vectorstore.IndexSchema, records []vectorstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		s.records[r.Key] = r
	}
	return nil
}

// Search implements vectorstore.Backend.
func (s *Store) Search(ctx context.Context, schema vectorstore.IndexSchema, q vectorstore.Query) (vectorstore.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return vectorstore.SearchResponse{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return vectorstore.SearchResponse{}, errClosed
	}
	index, ok := s.indexes[schema.Name]
	if !ok {
		return vectorstore.SearchResponse{}, fmt.Errorf("%s: %w", schema.Name, vecstore.ErrIndexNotFound)
	}
	if len(q.KNN.Vector) != index.Dim {
		return vectorstore.SearchResponse{}, fmt.Errorf("%w: query vector has length %d, index %s has %d",
			vecstore.ErrInvalidInput, len(q.KNN.Vector), index.Name, index.Dim)
	}

	type scored struct {
		rec   vectorstore.Record
		score float32
	}
	var candidates []scored
	for key, rec := range s.records {
		if !strings.HasPrefix(key, index.Prefix) || len(rec.Vector) != index.Dim {
			continue
		}
		if !matchTags(rec.Metadata, q.Filter) {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: distance(index.Metric, q.KNN.Vector, rec.Vector)})
	}

	slices.SortFunc(candidates, func(a, b scored) int {
		if a.score != b.score {
			if a.score < b.score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.rec.Key, b.rec.Key)
	})
	if len(candidates) > q.KNN.K {
		candidates = candidates[:q.KNN.K]
	}

	resp := vectorstore.SearchResponse{
		Total: int64(len(candidates)),
		Hits:  make([]vectorstore.Hit, len(candidates)),
	}
	for i, c := range candidates {
		score := c.score
		resp.Hits[i] = vectorstore.Hit{
			Key:      c.rec.Key,
			Content:  c.rec.Content,
			Metadata: c.rec.Metadata,
			Score:    &score,
		}
	}
	return resp, nil
}

// Reserve implements vectorstore.Backend.
func (s *Store) Reserve(ctx context.Context, name string, n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	first := s.counters[name]
	s.counters[name] = first + int64(n)
	return first, nil
}

// Len returns the number of records in the keyspace.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements vectorstore.Backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	s.indexes = nil
	s.counters = nil
	return nil
}

var errClosed = errors.New("memory backend closed")

// matchTags reports whether the unescaped metadata contains any of the tags,
// ignoring case.
func matchTags(metadata string, f vectorstore.Filter) bool {
	if f.MatchAll() {
		return true
	}
	md := strings.ToLower(vectorstore.Unescape(metadata))
	for _, tag := range f.Tags {
		if strings.Contains(md, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// distance follows the Redis conventions: cosine and inner product are
// reported as 1-similarity, L2 as the squared euclidean distance.
func distance(metric vectorstore.DistanceMetric, a, b []float32) float32 {
	var dot, na, nb, l2 float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		d := x - y
		l2 += d * d
	}
	switch metric {
	case vectorstore.MetricL2:
		return float32(l2)
	case vectorstore.MetricIP:
		return float32(1 - dot)
	default:
		if na == 0 || nb == 0 {
			return 1
		}
		return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
	}
}

var _ vectorstore.Backend = (*Store)(nil)
