package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/vectorstore"
	"github.com/creastat/vecstore/vectorstore/memory"
)

// recordingBackend wraps a backend and counts calls.
type recordingBackend struct {
	vectorstore.Backend
	batches   []int
	searches  int
	creates   int
	created   vectorstore.IndexSchema
	infoErr   error
	writeErr  error
	failAfter int
}

func (b *recordingBackend) IndexInfo(ctx context.Context, name string) (vectorstore.IndexInfo, error) {
	if b.infoErr != nil {
		return vectorstore.IndexInfo{}, b.infoErr
	}
	return b.Backend.IndexInfo(ctx, name)
}

func (b *recordingBackend) CreateIndex(ctx context.Context, schema vectorstore.IndexSchema) error {
	b.creates++
	b.created = schema
	return b.Backend.CreateIndex(ctx, schema)
}

func (b *recordingBackend) WriteBatch(ctx context.Context, schema vectorstore.IndexSchema, records []vectorstore.Record) error {
	if b.writeErr != nil && len(b.batches) >= b.failAfter {
		return b.writeErr
	}
	b.batches = append(b.batches, len(records))
	return b.Backend.WriteBatch(ctx, schema, records)
}

func (b *recordingBackend) Search(ctx context.Context, schema vectorstore.IndexSchema, q vectorstore.Query) (vectorstore.SearchResponse, error) {
	b.searches++
	return b.Backend.Search(ctx, schema, q)
}

// fakeEmbedder maps each text to a deterministic 3-dim vector.
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = textVector(t)
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return textVector(text), nil
}

func textVector(t string) []float32 {
	return []float32{float32(len(t)), float32(strings.Count(t, "a")) + 1, 1}
}

func newTestStore(t *testing.T, opts ...vectorstore.Option) (*vectorstore.Store, *recordingBackend) {
	t.Helper()
	b := &recordingBackend{Backend: memory.New()}
	s, err := vectorstore.New(b, "test", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, b
}

func docs(n int) ([][]float32, []vectorstore.Document) {
	vectors := make([][]float32, n)
	ds := make([]vectorstore.Document, n)
	for i := range n {
		vectors[i] = []float32{float32(i + 1), 1, 0}
		ds[i] = vectorstore.Document{
			PageContent: fmt.Sprintf("doc %d", i),
			Metadata:    map[string]any{"n": float64(i)},
		}
	}
	return vectors, ds
}

func TestNew_InvalidConfig(t *testing.T) {
	b := memory.New()
	tests := []struct {
		name    string
		backend vectorstore.Backend
		index   string
		opts    []vectorstore.Option
	}{
		{"nil backend", nil, "idx", nil},
		{"empty name", b, "", nil},
		{"zero batch", b, "idx", []vectorstore.Option{vectorstore.WithBatchSize(0)}},
		{"bad metric", b, "idx", []vectorstore.Option{vectorstore.WithDistanceMetric("MANHATTAN")}},
		{"bad algorithm", b, "idx", []vectorstore.Option{vectorstore.WithAlgorithm("IVF")}},
		{"empty field", b, "idx", []vectorstore.Option{vectorstore.WithContentField("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vectorstore.New(tt.backend, tt.index, tt.opts...)
			assert.ErrorIs(t, err, vecstore.ErrInvalidConfig)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestStore(t)
	schema := s.Schema()
	assert.Equal(t, "test", schema.Name)
	assert.Equal(t, "doc:test:", schema.Prefix)
	assert.Equal(t, "content_vector", schema.VectorField)
	assert.Equal(t, "content", schema.ContentField)
	assert.Equal(t, "metadata", schema.MetadataField)
	assert.Equal(t, vectorstore.AlgorithmHNSW, schema.Algorithm)
	assert.Equal(t, vectorstore.MetricCosine, schema.Metric)
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)

	require.NoError(t, s.EnsureIndex(ctx, 3))
	require.NoError(t, s.EnsureIndex(ctx, 3))
	assert.Equal(t, 1, b.creates)
	assert.Equal(t, 3, b.created.Dim)
	assert.Zero(t, s.Schema().Dim)
}

func TestStore_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s, err := vectorstore.New(memory.New(), "test", vectorstore.WithBatchSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureIndex(ctx, 3))

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for range 20 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := s.DropIndex(ctx, false); err != nil {
				errs <- err
				return
			}
			if err := s.EnsureIndex(ctx, 3); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			vectors, ds := docs(3)
			if _, err := s.AddVectors(ctx, vectors, ds); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			// The index may be dropped underneath; only the shape of a
			// successful result is checked.
			results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 1, 0}, 2, nil)
			if err == nil && len(results) > 2 {
				errs <- fmt.Errorf("got %d results for k=2", len(results))
			}
			_ = s.Schema()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestEnsureIndex_BackendError(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)
	b.infoErr = errors.New("connection refused")

	err := s.EnsureIndex(ctx, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, b.creates)
}

func TestSearch_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.EnsureIndex(ctx, 3))

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 1, 0}, 4, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_AtMostKSorted(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, vectorstore.WithDistanceMetric(vectorstore.MetricL2))

	vectors, ds := docs(6)
	_, err := s.AddVectors(ctx, vectors, ds)
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{0, 1, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "doc 0", results[0].Content)
	assert.Equal(t, map[string]any{"n": float64(0)}, results[0].Metadata)
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	md := map[string]any{"a": "x-y", "nested": map[string]any{"b": `c\-d--e`}}
	_, err := s.AddVectors(ctx, [][]float32{{1, 2, 3}}, []vectorstore.Document{{PageContent: "hello", Metadata: md}})
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 2, 3}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, md, results[0].Metadata)
	assert.Equal(t, "hello", results[0].Content)
}

func TestSearch_FilterConflict(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, vectorstore.WithFilter("a"))

	_, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 1, 1}, 1, []string{"b"})
	assert.ErrorIs(t, err, vecstore.ErrFilterConflict)
	assert.Equal(t, 0, b.searches)
}

func TestSearch_StoreFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, vectorstore.WithFilter("x-ray"))

	_, err := s.AddVectors(ctx,
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]vectorstore.Document{
			{PageContent: "tagged", Metadata: map[string]any{"kind": "x-ray"}},
			{PageContent: "untagged", Metadata: map[string]any{"kind": "photo"}},
		})
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{0, 1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tagged", results[0].Content)
}

func TestSearch_CallFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddVectors(ctx,
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]vectorstore.Document{
			{PageContent: "one", Metadata: map[string]any{"tag": "red"}},
			{PageContent: "two", Metadata: map[string]any{"tag": "green"}},
			{PageContent: "three", Metadata: map[string]any{"tag": "blue"}},
		})
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 1, 1}, 5, []string{"red", "blue"})
	require.NoError(t, err)
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	assert.ElementsMatch(t, []string{"one", "three"}, contents)
}

func TestSearch_InvalidK(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.SimilaritySearchVectorWithScore(context.Background(), []float32{1}, 0, nil)
	assert.ErrorIs(t, err, vecstore.ErrInvalidInput)
}

func TestAddVectors_BatchSizeOne(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, vectorstore.WithBatchSize(1))

	vectors, ds := docs(3)
	keys, err := s.AddVectors(ctx, vectors, ds)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.Equal(t, []int{1, 1, 1}, b.batches)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestAddVectors_FlushEveryN(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)

	vectors, ds := docs(5)
	_, err := s.AddVectors(ctx, vectors, ds, vectorstore.WithBatch(2))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, b.batches)
}

func TestAddVectors_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, vectorstore.WithBatchSize(2))
	b.writeErr = errors.New("boom")
	b.failAfter = 1

	vectors, ds := docs(5)
	_, err := s.AddVectors(ctx, vectors, ds)
	require.Error(t, err)
	assert.Equal(t, []int{2}, b.batches)

	info, err := s.Backend().IndexInfo(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.NumDocs)
}

func TestAddVectors_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)

	_, err := s.AddVectors(ctx, nil, nil)
	assert.ErrorIs(t, err, vecstore.ErrInvalidInput)

	_, err = s.AddVectors(ctx, [][]float32{{1}}, nil)
	assert.ErrorIs(t, err, vecstore.ErrInvalidInput)

	_, err = s.AddVectors(ctx, [][]float32{{1, 2}, {1}}, make([]vectorstore.Document, 2))
	assert.ErrorIs(t, err, vecstore.ErrInvalidInput)

	_, err = s.AddVectors(ctx, [][]float32{{1}}, make([]vectorstore.Document, 1), vectorstore.WithKeys("a", "b"))
	assert.ErrorIs(t, err, vecstore.ErrInvalidInput)

	assert.Equal(t, 0, b.creates)
}

func TestAddVectors_ExplicitKeysOverwrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.AddVectors(ctx, [][]float32{{1, 0}}, []vectorstore.Document{{PageContent: "v1"}}, vectorstore.WithKeys("doc:test:k"))
	require.NoError(t, err)
	keys, err := s.AddVectors(ctx, [][]float32{{1, 0}}, []vectorstore.Document{{PageContent: "v2"}}, vectorstore.WithKeys("doc:test:k"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:test:k"}, keys)

	results, err := s.SimilaritySearchVectorWithScore(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2", results[0].Content)
	assert.Equal(t, map[string]any{}, results[0].Metadata)
}

func TestKeyPolicies_NoCollision(t *testing.T) {
	policies := map[string]vectorstore.KeyPolicy{
		"uuid":     vectorstore.UUIDKeys(),
		"sequence": vectorstore.SequenceKeys(),
		"count":    vectorstore.CountKeys(),
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestStore(t, vectorstore.WithKeyPolicy(policy))

			vectors, ds := docs(5)
			first, err := s.AddVectors(ctx, vectors, ds)
			require.NoError(t, err)

			vectors, ds = docs(2)
			second, err := s.AddVectors(ctx, vectors, ds)
			require.NoError(t, err)

			seen := map[string]bool{}
			for _, k := range append(first, second...) {
				assert.True(t, strings.HasPrefix(k, "doc:test:"), k)
				assert.False(t, seen[k], "duplicate key %s", k)
				seen[k] = true
			}

			info, err := s.Backend().IndexInfo(ctx, "test")
			require.NoError(t, err)
			assert.Equal(t, int64(7), info.NumDocs)
		})
	}
}

func TestCountKeys_Sequential(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, vectorstore.WithKeyPolicy(vectorstore.CountKeys()))

	vectors, ds := docs(2)
	keys, err := s.AddVectors(ctx, vectors, ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:test:0", "doc:test:1"}, keys)

	keys, err = s.AddVectors(ctx, vectors, ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:test:2", "doc:test:3"}, keys)
}

func TestDropIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	dropped, err := s.DropIndex(ctx, false)
	require.NoError(t, err)
	assert.False(t, dropped)

	require.NoError(t, s.EnsureIndex(ctx, 2))
	dropped, err = s.DropIndex(ctx, false)
	require.NoError(t, err)
	assert.True(t, dropped)
}

func TestDelete_RemovesRecords(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s, err := vectorstore.New(b, "test")
	require.NoError(t, err)

	vectors, ds := docs(3)
	_, err = s.AddVectors(ctx, vectors, ds)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx))
	assert.Equal(t, 0, b.Len())
}

func TestFromTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("shared metadata", func(t *testing.T) {
		s, err := vectorstore.FromTexts(ctx, []string{"a", "bb", "ccc"},
			[]map[string]any{{"src": "shared"}}, fakeEmbedder{}, memory.New(), "texts")
		require.NoError(t, err)

		results, err := s.SimilaritySearchWithScore(ctx, "bb", 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, r := range results {
			assert.Equal(t, "shared", r.Metadata["src"])
		}
	})

	t.Run("positional metadata", func(t *testing.T) {
		s, err := vectorstore.FromTexts(ctx, []string{"a", "bbbbbbbb"},
			[]map[string]any{{"i": "0"}, {"i": "1"}}, fakeEmbedder{}, memory.New(), "texts",
			vectorstore.WithDistanceMetric(vectorstore.MetricL2))
		require.NoError(t, err)

		found, err := s.SimilaritySearch(ctx, "bbbbbbbb", 1, nil)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "bbbbbbbb", found[0].PageContent)
		assert.Equal(t, "1", found[0].Metadata["i"])
	})

	t.Run("short metadata list", func(t *testing.T) {
		_, err := vectorstore.FromTexts(ctx, []string{"a", "b", "c"},
			[]map[string]any{{}, {}}, fakeEmbedder{}, memory.New(), "texts")
		assert.ErrorIs(t, err, vecstore.ErrInvalidInput)
	})
}

func TestFromDocuments(t *testing.T) {
	ctx := context.Background()
	s, err := vectorstore.FromDocuments(ctx, []vectorstore.Document{
		{PageContent: "alpha", Metadata: map[string]any{"k": "v"}},
	}, fakeEmbedder{}, memory.New(), "docs")
	require.NoError(t, err)

	found, err := s.SimilaritySearch(ctx, "alpha", 1, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alpha", found[0].PageContent)

	_, err = vectorstore.FromDocuments(ctx, nil, nil, memory.New(), "docs")
	assert.ErrorIs(t, err, vecstore.ErrNoEmbedder)
}

func TestSearch_NoEmbedder(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.SimilaritySearch(context.Background(), "q", 1, nil)
	assert.ErrorIs(t, err, vecstore.ErrNoEmbedder)
	_, err = s.AddDocuments(context.Background(), []vectorstore.Document{{PageContent: "x"}})
	assert.ErrorIs(t, err, vecstore.ErrNoEmbedder)
}

// hitBackend returns a canned search response.
type hitBackend struct {
	vectorstore.Backend
	resp vectorstore.SearchResponse
}

func (b hitBackend) Search(context.Context, vectorstore.IndexSchema, vectorstore.Query) (vectorstore.SearchResponse, error) {
	return b.resp, nil
}

func TestSearch_SkipsHitsWithoutScore(t *testing.T) {
	score := float32(0.5)
	b := hitBackend{Backend: memory.New(), resp: vectorstore.SearchResponse{
		Total: 2,
		Hits: []vectorstore.Hit{
			{Key: "a", Content: "no score", Metadata: "{}"},
			{Key: "b", Content: "scored", Metadata: "{}", Score: &score},
		},
	}}
	s, err := vectorstore.New(b, "test")
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(context.Background(), []float32{1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "scored", results[0].Content)
	assert.Equal(t, float32(0.5), results[0].Score)
}

func TestSearch_MalformedMetadata(t *testing.T) {
	score := float32(0.1)
	b := hitBackend{Backend: memory.New(), resp: vectorstore.SearchResponse{
		Total: 1,
		Hits:  []vectorstore.Hit{{Key: "a", Metadata: "{not json", Score: &score}},
	}}
	s, err := vectorstore.New(b, "test")
	require.NoError(t, err)

	_, err = s.SimilaritySearchVectorWithScore(context.Background(), []float32{1}, 1, nil)
	assert.ErrorIs(t, err, vecstore.ErrMalformedMetadata)
}

func TestSearch_ZeroTotal(t *testing.T) {
	b := hitBackend{Backend: memory.New()}
	s, err := vectorstore.New(b, "test")
	require.NoError(t, err)

	results, err := s.SimilaritySearchVectorWithScore(context.Background(), []float32{1}, 1, nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}
