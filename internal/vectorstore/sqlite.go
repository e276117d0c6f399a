package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rhagen/vaultsearch-mcp/pkg/types"
)

// SQLite implements Store on a single SQLite database file.
type SQLite struct {
	path string

	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

// NewSQLite creates a store backed by the database file at path. The
// database is not opened until Create or the first operation against an
// existing index.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// openDatabase opens the SQLite file with the pragmas the single-writer
// indexing pipeline wants.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked during long write transactions.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// IsCreated reports whether the index database file exists on disk.
func (s *SQLite) IsCreated() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Create opens (creating if needed) the database and applies migrations.
// Idempotent.
func (s *SQLite) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	db, err := openDatabase(s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	s.db = db
	return nil
}

// ensureOpen opens an existing database lazily. Callers hold s.mu.
func (s *SQLite) ensureOpen(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if !s.IsCreated() {
		return ErrNotCreated
	}
	db, err := openDatabase(s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}
	s.db = db
	return nil
}

// querier is implemented by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// writer returns the open transaction when one exists, the bare
// connection otherwise. Callers hold s.mu.
func (s *SQLite) writer() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Begin opens the single write transaction.
func (s *SQLite) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	if s.tx != nil {
		return ErrTxOpen
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// End commits the open transaction, making all buffered writes durable.
func (s *SQLite) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTx
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Insert adds an entry for id.
func (s *SQLite) Insert(ctx context.Context, id string, vector []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	_, err := s.writer().ExecContext(ctx, `
		INSERT INTO entries (id, vector, dimension, title, tags, excerpt, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, serializeVector(vector), len(vector),
		meta.Title, meta.Tags, meta.Excerpt, meta.LastIndexed)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", id, err)
	}
	return nil
}

// Delete removes the entry for id if present.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}

	if _, err := s.writer().ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// ListIDs returns every entry id.
func (s *SQLite) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	rows, err := s.writer().QueryContext(ctx, "SELECT id FROM entries")
	if err != nil {
		return nil, fmt.Errorf("list entry ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of entries.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return 0, err
	}

	var n int
	if err := s.writer().QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Query returns up to topK entries nearest to vector, best first,
// filtered to cosine similarity >= minScore.
func (s *SQLite) Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]types.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []types.SearchResult{}, nil
	}

	if VectorExtensionAvailable {
		return s.queryOptimized(ctx, vector, topK, minScore)
	}
	return s.queryFallback(ctx, vector, topK, minScore)
}

// queryOptimized computes cosine distance at the database layer via the
// sqlite-vec extension. Callers hold s.mu.
func (s *SQLite) queryOptimized(ctx context.Context, vector []float32, topK int, minScore float64) ([]types.SearchResult, error) {
	blob := serializeVector(vector)
	rows, err := s.writer().QueryContext(ctx, `
		SELECT id, title, tags, excerpt, last_indexed,
		       1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM entries
		WHERE (1.0 - vec_distance_cosine(vector, ?)) >= ?
		ORDER BY similarity DESC
		LIMIT ?`,
		blob, blob, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// queryFallback scans candidate rows and computes cosine similarity in
// Go. Used for purego builds. Callers hold s.mu.
func (s *SQLite) queryFallback(ctx context.Context, vector []float32, topK int, minScore float64) ([]types.SearchResult, error) {
	rows, err := s.writer().QueryContext(ctx,
		"SELECT id, title, tags, excerpt, last_indexed, vector FROM entries")
	if err != nil {
		return nil, fmt.Errorf("load candidate vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []types.SearchResult
	for rows.Next() {
		var (
			r    types.SearchResult
			blob []byte
		)
		if err := rows.Scan(&r.Path, &r.Title, &r.Tags, &r.Excerpt, &r.LastIndexed, &blob); err != nil {
			return nil, err
		}
		candidate, err := deserializeVector(blob)
		if err != nil {
			continue
		}
		r.Score = cosineSimilarity(vector, candidate)
		if r.Score < minScore {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// scanResults reads search-result rows produced by the optimized query.
func scanResults(rows *sql.Rows) ([]types.SearchResult, error) {
	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Tags, &r.Excerpt, &r.LastIndexed, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Drop rolls back any open transaction, closes the database, and deletes
// the index files.
func (s *SQLite) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove index file: %w", err)
		}
	}
	return nil
}

// Close rolls back any open transaction and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var _ Store = (*SQLite)(nil)
