// Package redis implements vectorstore.Backend on the Redis query engine
// (FT.* commands) with records stored as hashes.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/vectorstore"
)

const (
	// Redis key prefix for per-index key sequences
	sequenceKeyPrefix = "vecstore:seq:"

	vectorType    = "FLOAT32"
	vectorParam   = "vector"
	searchDialect = 2
)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string

	Username string
	Password string
	DB       int

	// Protocol is the RESP version. Defaults to 2, where the query engine
	// replies have a stable shape.
	Protocol int
}

// Client implements vectorstore.Backend for Redis.
type Client struct {
	client *redis.Client
}

// New creates a new Redis backend.
func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis addr is required", vecstore.ErrInvalidConfig)
	}
	if cfg.Protocol == 0 {
		cfg.Protocol = 2
	}

	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		Protocol: cfg.Protocol,
	})), nil
}

// NewFromClient wraps an existing go-redis client. The client should use
// RESP2 unless it enables UnstableResp3.
func NewFromClient(client *redis.Client) *Client {
	return &Client{client: client}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// IndexInfo implements vectorstore.Backend.
func (c *Client) IndexInfo(ctx context.Context, name string) (vectorstore.IndexInfo, error) {
	info, err := c.client.FTInfo(ctx, name).Result()
	if err != nil {
		return vectorstore.IndexInfo{}, indexError(name, err)
	}
	return vectorstore.IndexInfo{
		Name:    name,
		NumDocs: int64(info.NumDocs),
	}, nil
}

// CreateIndex implements vectorstore.Backend. An index that already exists
// is left untouched.
func (c *Client) CreateIndex(ctx context.Context, schema vectorstore.IndexSchema) error {
	opts, fields := createArgs(schema)
	err := c.client.FTCreate(ctx, schema.Name, opts, fields...).Err()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return nil
	}
	return err
}

// DropIndex implements vectorstore.Backend.
func (c *Client) DropIndex(ctx context.Context, name string, deleteRecords bool) error {
	err := c.client.FTDropIndexWithArgs(ctx, name, &redis.FTDropIndexOptions{
		DeleteDocs: deleteRecords,
	}).Err()
	if err != nil {
		return indexError(name, err)
	}
	return nil
}

// WriteBatch implements vectorstore.Backend using MULTI/EXEC.
func (c *Client) WriteBatch(ctx context.Context, schema vectorstore.IndexSchema, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.HSet(ctx, r.Key, hashFields(schema, r))
		}
		return nil
	})
	return err
}

// Search implements vectorstore.Backend.
func (c *Client) Search(ctx context.Context, schema vectorstore.IndexSchema, q vectorstore.Query) (vectorstore.SearchResponse, error) {
	query, opts := renderQuery(schema, q)
	res, err := c.client.FTSearchWithArgs(ctx, schema.Name, query, opts).Result()
	if err != nil {
		return vectorstore.SearchResponse{}, indexError(schema.Name, err)
	}
	return toResponse(schema, q, res)
}

// Reserve implements vectorstore.Backend with INCRBY on a per-index counter.
func (c *Client) Reserve(ctx context.Context, name string, n int) (int64, error) {
	end, err := c.client.IncrBy(ctx, sequenceKeyPrefix+name, int64(n)).Result()
	if err != nil {
		return 0, err
	}
	return end - int64(n), nil
}

// Close implements vectorstore.Backend.
func (c *Client) Close() error {
	return c.client.Close()
}

// createArgs builds the FT.CREATE options and schema: the vector field plus
// the content and metadata text fields, over hashes under schema.Prefix.
func createArgs(schema vectorstore.IndexSchema) (*redis.FTCreateOptions, []*redis.FieldSchema) {
	opts := &redis.FTCreateOptions{
		OnHash: true,
		Prefix: []interface{}{schema.Prefix},
	}

	vectorArgs := &redis.FTVectorArgs{}
	switch schema.Algorithm {
	case vectorstore.AlgorithmFlat:
		vectorArgs.FlatOptions = &redis.FTFlatOptions{
			Type:            vectorType,
			Dim:             schema.Dim,
			DistanceMetric:  string(schema.Metric),
			InitialCapacity: schema.Flat.InitialCap,
			BlockSize:       schema.Flat.BlockSize,
		}
	default:
		vectorArgs.HNSWOptions = &redis.FTHNSWOptions{
			Type:                   vectorType,
			Dim:                    schema.Dim,
			DistanceMetric:         string(schema.Metric),
			InitialCapacity:        schema.HNSW.InitialCap,
			MaxEdgesPerNode:        schema.HNSW.M,
			MaxAllowedEdgesPerNode: schema.HNSW.EFConstruction,
			EFRunTime:              schema.HNSW.EFRuntime,
			Epsilon:                schema.HNSW.Epsilon,
		}
	}

	fields := []*redis.FieldSchema{
		{FieldName: schema.VectorField, FieldType: redis.SearchFieldTypeVector, VectorArgs: vectorArgs},
		{FieldName: schema.ContentField, FieldType: redis.SearchFieldTypeText},
		{FieldName: schema.MetadataField, FieldType: redis.SearchFieldTypeText},
	}
	return opts, fields
}

func hashFields(schema vectorstore.IndexSchema, r vectorstore.Record) map[string]interface{} {
	return map[string]interface{}{
		schema.VectorField:   vectorstore.EncodeVector(r.Vector),
		schema.ContentField:  r.Content,
		schema.MetadataField: r.Metadata,
	}
}

// renderQuery renders q in query dialect 2:
//
//	*=>[KNN k @vector_field $vector AS score]
//	(@metadata_field:(tag1|tag2))=>[KNN k @vector_field $vector AS score]
func renderQuery(schema vectorstore.IndexSchema, q vectorstore.Query) (string, *redis.FTSearchOptions) {
	filter := "*"
	if !q.Filter.MatchAll() {
		tags := make([]string, len(q.Filter.Tags))
		for i, tag := range q.Filter.Tags {
			tags[i] = vectorstore.Escape(tag)
		}
		filter = fmt.Sprintf("(@%s:(%s))", schema.MetadataField, strings.Join(tags, "|"))
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $%s AS %s]", filter, q.KNN.K, schema.VectorField, vectorParam, q.ScoreField)

	opts := &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: schema.MetadataField},
			{FieldName: schema.ContentField},
			{FieldName: q.ScoreField},
		},
		SortBy:         []redis.FTSearchSortBy{{FieldName: q.ScoreField, Asc: true}},
		LimitOffset:    0,
		Limit:          q.KNN.K,
		Params:         map[string]interface{}{vectorParam: vectorstore.EncodeVector(q.KNN.Vector)},
		DialectVersion: searchDialect,
	}
	return query, opts
}

// toResponse converts FT.SEARCH documents into hits. A document whose score
// field is missing or empty yields a hit with a nil Score.
func toResponse(schema vectorstore.IndexSchema, q vectorstore.Query, res redis.FTSearchResult) (vectorstore.SearchResponse, error) {
	resp := vectorstore.SearchResponse{
		Total: int64(res.Total),
		Hits:  make([]vectorstore.Hit, 0, len(res.Docs)),
	}
	for _, doc := range res.Docs {
		hit := vectorstore.Hit{
			Key:      doc.ID,
			Content:  doc.Fields[schema.ContentField],
			Metadata: doc.Fields[schema.MetadataField],
		}
		if raw := doc.Fields[q.ScoreField]; raw != "" {
			f, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return vectorstore.SearchResponse{}, fmt.Errorf("parse %s of %s: %w", q.ScoreField, doc.ID, err)
			}
			score := float32(f)
			hit.Score = &score
		}
		resp.Hits = append(resp.Hits, hit)
	}
	return resp, nil
}

// indexError maps the query engine's missing-index replies to
// vecstore.ErrIndexNotFound.
func indexError(name string, err error) error {
	if isUnknownIndex(err) {
		return fmt.Errorf("%s: %w: %v", name, vecstore.ErrIndexNotFound, err)
	}
	return err
}

func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// Compile-time check that Client implements Backend.
var _ vectorstore.Backend = (*Client)(nil)
