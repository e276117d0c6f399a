package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	// ErrTimeout means embedding generation exceeded the Gateway's bound.
	// The underlying provider call is abandoned, not cancelled server-side.
	ErrTimeout = errors.New("embedding timed out")
	// ErrFailed means the provider returned an error. The text is not
	// recoverable by retrying; the caller must skip the document.
	ErrFailed = errors.New("embedding failed")
	// ErrEmptyText rejects empty input before any provider call.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrUnsupportedProvider is returned for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
)

// Provider generates embeddings for text. Implementations are HTTP
// clients for a specific inference backend; they honor context
// cancellation but perform no retries of their own.
type Provider interface {
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension, or 0 if no embedding has
	// been generated yet and the model's dimension is unknown.
	Dimension() int

	// Name returns the provider name ("ollama", "openai").
	Name() string

	// Model returns the model identifier.
	Model() string

	// Close releases the provider's resources. For local backends this
	// asks the runtime to unload the model.
	Close() error
}

// Config holds provider selection and connection settings.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	CacheSize int
}

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 4096
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size.
		cache, _ = lru.New[string, []float32](4096)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. The copy prevents caller
// mutations from reaching the cached value.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector under hash with automatic LRU eviction.
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, vector)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ComputeHash returns the hex SHA-256 of text, the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
