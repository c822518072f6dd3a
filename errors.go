package vecstore

import "errors"

// Common errors for vector store operations.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidInput      = errors.New("invalid input")
	ErrFilterConflict    = errors.New("filter conflict: store filter and call filter are both set")
	ErrIndexNotFound     = errors.New("index not found")
	ErrNoEmbedder        = errors.New("no embedder configured")
	ErrMalformedMetadata = errors.New("malformed metadata")
	ErrUnsupported       = errors.New("operation not supported by backend")
)
