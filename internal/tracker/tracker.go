// Package tracker maintains per-document modification fingerprints and
// the index metadata record, persisted together as one JSON document.
//
// A document is unchanged iff a fingerprint exists for its path and the
// recorded mtime equals the current one exactly. Content is never hashed:
// a touched-but-identical file counts as changed, an accepted trade-off
// for never reading file bodies during change detection.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// metaKey is the reserved key holding the index metadata record inside
// the fingerprint JSON document.
const metaKey = "__meta__"

// SchemaVersion is the persisted-state schema version.
const SchemaVersion = 1

// Fingerprint records the basis of a document's last successful indexing.
type Fingerprint struct {
	// LastModified is the backing file's mtime in unix milliseconds as
	// observed at last successful index.
	LastModified int64 `json:"lastModified"`
	// LastIndexed is when the document was last indexed, unix milliseconds.
	LastIndexed int64 `json:"lastIndexed"`
}

// Meta is the singleton index metadata record. All vectors currently in
// the index were produced by Model; a mismatch with the configured model
// triggers a full reindex.
type Meta struct {
	Model         string `json:"model"`
	Provider      string `json:"provider"`
	CreatedAt     int64  `json:"createdAt"`
	LastIndexedAt int64  `json:"lastIndexedAt"`
	SchemaVersion int    `json:"schemaVersion"`
}

// Tracker holds the in-memory fingerprint map and metadata, loaded fully
// at startup and rewritten wholesale at each Flush.
type Tracker struct {
	mu   sync.Mutex
	path string
	fps  map[string]Fingerprint
	meta *Meta
}

// Load reads the fingerprint store at path. A missing, unreadable, or
// corrupt file yields an empty store (which drives a full reindex
// upstream), never an error; only the path itself is required.
func Load(path string) *Tracker {
	t := &Tracker{
		path: path,
		fps:  make(map[string]Fingerprint),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return t
	}

	for key, msg := range raw {
		if key == metaKey {
			var m Meta
			if err := json.Unmarshal(msg, &m); err == nil {
				t.meta = &m
			}
			continue
		}
		var fp Fingerprint
		if err := json.Unmarshal(msg, &fp); err == nil {
			t.fps[key] = fp
		}
	}

	return t
}

// IsUnchanged reports whether path has a fingerprint whose recorded mtime
// equals mtime exactly.
func (t *Tracker) IsUnchanged(path string, mtime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	fp, ok := t.fps[path]
	return ok && fp.LastModified == mtime.UnixMilli()
}

// RecordIndexed upserts the fingerprint for path after a successful index.
// The change is in-memory only until Flush.
func (t *Tracker) RecordIndexed(path string, mtime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fps[path] = Fingerprint{
		LastModified: mtime.UnixMilli(),
		LastIndexed:  time.Now().UnixMilli(),
	}
}

// Forget removes the fingerprint for path.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fps, path)
}

// Meta returns a copy of the index metadata, or nil if none was ever
// recorded (first run or legacy/corrupt state).
func (t *Tracker) Meta() *Meta {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.meta == nil {
		return nil
	}
	m := *t.meta
	return &m
}

// SetMeta replaces the index metadata record. CreatedAt is preserved from
// an existing record when the incoming value is zero.
func (t *Tracker) SetMeta(m Meta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.CreatedAt == 0 {
		if t.meta != nil && t.meta.CreatedAt != 0 {
			m.CreatedAt = t.meta.CreatedAt
		} else {
			m.CreatedAt = time.Now().UnixMilli()
		}
	}
	t.meta = &m
}

// Count returns the number of fingerprints held.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fps)
}

// Paths returns the set of fingerprinted paths.
func (t *Tracker) Paths() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]struct{}, len(t.fps))
	for p := range t.fps {
		out[p] = struct{}{}
	}
	return out
}

// Reset drops every fingerprint and the metadata record. Used when the
// index is rebuilt from scratch.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fps = make(map[string]Fingerprint)
	t.meta = nil
}

// Flush writes the fingerprint store to disk atomically (temp file then
// rename), so a crash mid-write never corrupts the previous state.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	doc := make(map[string]any, len(t.fps)+1)
	for p, fp := range t.fps {
		doc[p] = fp
	}
	if t.meta != nil {
		doc[metaKey] = *t.meta
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fingerprint store: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fingerprints-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Path returns the on-disk location of the fingerprint store.
func (t *Tracker) Path() string {
	return t.path
}
