// Package qdrant implements vectorstore.Backend on a Qdrant collection.
//
// One index maps to one collection. A record becomes a point whose id is a
// UUIDv5 of the record key, with the key, content and escaped metadata in
// the payload. Scores are converted to the Redis convention where lower is
// closer.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/vectorstore"
)

const (
	payloadKey      = "key"
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// APIKey is optional API key for authentication.
	APIKey string
}

// Client implements vectorstore.Backend for Qdrant.
type Client struct {
	client *qdrant.Client
}

// New creates a new Qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", vecstore.ErrInvalidConfig)
	}

	// Parse the URL to extract host, port, and scheme
	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{client: qdrantClient}, nil
}

// IndexInfo implements vectorstore.Backend.
func (c *Client) IndexInfo(ctx context.Context, name string) (vectorstore.IndexInfo, error) {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return vectorstore.IndexInfo{}, fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !exists {
		return vectorstore.IndexInfo{}, fmt.Errorf("%s: %w", name, vecstore.ErrIndexNotFound)
	}

	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return vectorstore.IndexInfo{}, fmt.Errorf("qdrant count: %w", err)
	}
	return vectorstore.IndexInfo{Name: name, NumDocs: int64(n)}, nil
}

// CreateIndex implements vectorstore.Backend. Qdrant has no FLAT index;
// FLAT schemas get a collection with default HNSW settings.
func (c *Client) CreateIndex(ctx context.Context, schema vectorstore.IndexSchema) error {
	err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: schema.Name,
		VectorsConfig:  qdrant.NewVectorsConfig(vectorParams(schema)),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

// DropIndex implements vectorstore.Backend. Points always go with the
// collection, whatever deleteRecords says.
func (c *Client) DropIndex(ctx context.Context, name string, deleteRecords bool) error {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", name, vecstore.ErrIndexNotFound)
	}
	if err := c.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}

// WriteBatch implements vectorstore.Backend with a single waited upsert.
func (c *Client) WriteBatch(ctx context.Context, schema vectorstore.IndexSchema, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: schema.Name,
		Wait:           qdrant.PtrOf(true),
		Points:         toPoints(records),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search implements vectorstore.Backend.
func (c *Client) Search(ctx context.Context, schema vectorstore.IndexSchema, q vectorstore.Query) (vectorstore.SearchResponse, error) {
	limit := uint64(q.KNN.K)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: schema.Name,
		Query:          qdrant.NewQuery(q.KNN.Vector...),
		Limit:          &limit,
		Filter:         buildFilter(q.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return vectorstore.SearchResponse{}, fmt.Errorf("qdrant search failed: %w", err)
	}

	resp := vectorstore.SearchResponse{
		Total: int64(len(points)),
		Hits:  make([]vectorstore.Hit, 0, len(points)),
	}
	for _, point := range points {
		resp.Hits = append(resp.Hits, toHit(schema.Metric, point))
	}
	return resp, nil
}

// Reserve implements vectorstore.Backend. Qdrant has no atomic counter.
func (c *Client) Reserve(ctx context.Context, name string, n int) (int64, error) {
	return 0, fmt.Errorf("qdrant reserve: %w", vecstore.ErrUnsupported)
}

// Close implements vectorstore.Backend.
func (c *Client) Close() error {
	return c.client.Close()
}

func vectorParams(schema vectorstore.IndexSchema) *qdrant.VectorParams {
	params := &qdrant.VectorParams{
		Size:     uint64(schema.Dim),
		Distance: distance(schema.Metric),
	}
	if schema.Algorithm == vectorstore.AlgorithmHNSW && (schema.HNSW.M > 0 || schema.HNSW.EFConstruction > 0) {
		hnsw := &qdrant.HnswConfigDiff{}
		if schema.HNSW.M > 0 {
			hnsw.M = qdrant.PtrOf(uint64(schema.HNSW.M))
		}
		if schema.HNSW.EFConstruction > 0 {
			hnsw.EfConstruct = qdrant.PtrOf(uint64(schema.HNSW.EFConstruction))
		}
		params.HnswConfig = hnsw
	}
	return params
}

func distance(m vectorstore.DistanceMetric) qdrant.Distance {
	switch m {
	case vectorstore.MetricL2:
		return qdrant.Distance_Euclid
	case vectorstore.MetricIP:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// pointID derives a stable point id from a record key.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func toPoints(records []vectorstore.Record) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.Key)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadKey:      r.Key,
				payloadContent:  r.Content,
				payloadMetadata: r.Metadata,
			}),
		}
	}
	return points
}

// buildFilter converts a tag filter to a Should (OR) of text matches on the
// metadata payload.
func buildFilter(f vectorstore.Filter) *qdrant.Filter {
	if f.MatchAll() {
		return nil
	}
	conditions := make([]*qdrant.Condition, len(f.Tags))
	for i, tag := range f.Tags {
		conditions[i] = qdrant.NewMatchText(payloadMetadata, vectorstore.Escape(tag))
	}
	return &qdrant.Filter{Should: conditions}
}

// toHit converts a scored point. Cosine and dot similarities become
// 1-similarity; euclidean scores are already distances.
func toHit(metric vectorstore.DistanceMetric, point *qdrant.ScoredPoint) vectorstore.Hit {
	hit := vectorstore.Hit{}
	if point.Payload != nil {
		hit.Key = point.Payload[payloadKey].GetStringValue()
		hit.Content = point.Payload[payloadContent].GetStringValue()
		hit.Metadata = point.Payload[payloadMetadata].GetStringValue()
	}
	if hit.Key == "" && point.Id != nil {
		hit.Key = point.Id.GetUuid()
	}

	score := point.Score
	if metric != vectorstore.MetricL2 {
		score = 1 - score
	}
	hit.Score = &score
	return hit
}

// Compile-time check that Client implements Backend.
var _ vectorstore.Backend = (*Client)(nil)
