package embed

import "net/http"

// config collects the OpenAI embedder settings before the client is built.
type config struct {
	model          string
	dim            int
	baseURL        string
	httpClient     *http.Client
	maxBatchTokens int
}

// Option configures an embedder.
type Option func(*config)

// WithModel selects the embedding model. Defaults to ModelOpenAI3Small.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithDimension requests vectors of dim components. It must match the
// dimensionality of the index the vectors are written to. The value is not
// sent for ModelOpenAIAda002, which always returns 1536 components.
// Non-positive values keep the default of 1536.
func WithDimension(dim int) Option {
	return func(c *config) {
		if dim > 0 {
			c.dim = dim
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible server, such as a
// proxy or a self-hosted gateway.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for every API call. A nil client
// keeps http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxBatchTokens caps the estimated tokens of the texts sent in one
// request. Documents are split into more requests when the cap is reached.
// Non-positive values keep the default.
func WithMaxBatchTokens(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBatchTokens = n
		}
	}
}
