package embed

import "context"

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	// Embed generates an embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName identifies the underlying model, for cache keys and logs.
	ModelName() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Defaults shared by the embedder implementations.
const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultDimensions = 768
)
