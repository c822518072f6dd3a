package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/vecstore"
	"github.com/creastat/vecstore/vectorstore"
)

const defaultTable = "documents"

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
	Table  string // Default: documents
}

// Client implements the Source interface using Supabase
type Client struct {
	client *supabase.Client
	table  string
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", vecstore.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", vecstore.ErrInvalidConfig)
	}
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{client: client, table: cfg.Table}, nil
}

// DocumentsBySource retrieves all documents of a source that are not deleted
func (c *Client) DocumentsBySource(ctx context.Context, sourceID string) ([]vectorstore.Document, error) {
	var rows []Document
	_, err := c.client.From(c.table).
		Select("*", "", false).
		Eq("source_id", sourceID).
		Eq("is_deleted", "false").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents by source_id: %w", err)
	}
	return toVectorDocuments(rows), nil
}

// DocumentsByIDs retrieves multiple documents by their IDs
func (c *Client) DocumentsByIDs(ctx context.Context, documentIDs []string) ([]vectorstore.Document, error) {
	if len(documentIDs) == 0 {
		return []vectorstore.Document{}, nil
	}

	var rows []Document
	_, err := c.client.From(c.table).
		Select("*", "", false).
		In("id", documentIDs).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	return toVectorDocuments(rows), nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// toVectorDocuments converts rows, skipping deleted and empty documents.
func toVectorDocuments(rows []Document) []vectorstore.Document {
	docs := make([]vectorstore.Document, 0, len(rows))
	for _, row := range rows {
		if row.IsDeleted || row.Content == "" {
			continue
		}
		docs = append(docs, row.ToVectorDocument())
	}
	return docs
}

// Compile-time check that Client implements Source
var _ Source = (*Client)(nil)
