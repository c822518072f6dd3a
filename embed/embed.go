// Package embed converts text into dense float32 vectors.
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithModel(embed.ModelOpenAI3Small))
//	vecs, err := e.EmbedDocuments(ctx, []string{"hello", "world"})
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in the same order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the vector for a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("embed: empty input")
