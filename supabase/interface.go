package supabase

import (
	"context"
	"time"

	"github.com/creastat/vecstore/vectorstore"
)

// Source loads documents to be indexed from Supabase.
type Source interface {
	// DocumentsBySource retrieves all live documents of a source.
	DocumentsBySource(ctx context.Context, sourceID string) ([]vectorstore.Document, error)

	// DocumentsByIDs retrieves multiple documents by their IDs.
	DocumentsByIDs(ctx context.Context, documentIDs []string) ([]vectorstore.Document, error)

	// Close closes the Supabase client and releases resources
	Close() error
}

// Document represents a row of the documents table
type Document struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	URL         string         `json:"url"`
	Metadata    map[string]any `json:"metadata"`
	Language    string         `json:"language"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	IsDeleted   bool           `json:"is_deleted"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToVectorDocument converts a row into a vectorstore.Document. Row columns
// are folded into the metadata next to the row's own metadata.
func (d Document) ToVectorDocument() vectorstore.Document {
	md := make(map[string]any, len(d.Metadata)+5)
	for k, v := range d.Metadata {
		md[k] = v
	}
	md["document_id"] = d.ID
	md["source_id"] = d.SourceID
	if d.Title != "" {
		md["title"] = d.Title
	}
	if d.URL != "" {
		md["url"] = d.URL
	}
	if d.Language != "" {
		md["language"] = d.Language
	}
	return vectorstore.Document{PageContent: d.Content, Metadata: md}
}
