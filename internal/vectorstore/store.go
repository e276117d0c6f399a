// Package vectorstore persists document embeddings in SQLite and answers
// nearest-neighbour queries over them.
//
// One entry per document, keyed by the vault-relative path. Writes can be
// grouped into a single open transaction (Begin/End) so a long indexing
// run flushes durably only at checkpoints; outside a transaction every
// write is immediate. Similarity is cosine, computed in SQL when built
// with the sqlite_vec tag and in Go otherwise.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/rhagen/vaultsearch-mcp/pkg/types"
)

var (
	// ErrNotCreated is returned for operations on a store whose index
	// has not been created yet.
	ErrNotCreated = errors.New("vector index not created")
	// ErrTxOpen is returned by Begin when a transaction is already open.
	ErrTxOpen = errors.New("transaction already open")
	// ErrNoTx is returned by End when no transaction is open.
	ErrNoTx = errors.New("no open transaction")
)

// Metadata is the per-entry payload stored next to the vector.
type Metadata struct {
	Title       string
	Tags        string
	Excerpt     string
	LastIndexed time.Time
}

// Store is the vector index contract the indexing pipeline writes to.
type Store interface {
	// Create builds the index storage (idempotent).
	Create(ctx context.Context) error

	// IsCreated reports whether index storage exists on disk.
	IsCreated() bool

	// Begin opens the single write transaction. Writes issued while it
	// is open become durable only at End.
	Begin(ctx context.Context) error

	// End commits the open transaction, flushing all buffered writes.
	End() error

	// Insert adds an entry. Insert does not replace: callers re-indexing
	// a path delete the old entry first.
	Insert(ctx context.Context, id string, vector []float32, meta Metadata) error

	// Delete removes the entry for id if present.
	Delete(ctx context.Context, id string) error

	// ListIDs returns every entry id.
	ListIDs(ctx context.Context) ([]string, error)

	// Query returns up to topK entries nearest to vector with cosine
	// similarity >= minScore, best first.
	Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]types.SearchResult, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	// Drop deletes the index storage entirely.
	Drop() error

	// Close releases the underlying database.
	Close() error
}
