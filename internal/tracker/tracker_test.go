package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "fingerprints.json")
}

func TestLoad_MissingFile(t *testing.T) {
	trk := Load(statePath(t))

	assert.Equal(t, 0, trk.Count())
	assert.Nil(t, trk.Meta())
}

func TestLoad_CorruptFile(t *testing.T) {
	path := statePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	trk := Load(path)

	assert.Equal(t, 0, trk.Count())
	assert.Nil(t, trk.Meta())
}

func TestIsUnchanged_ExactMtimeMatch(t *testing.T) {
	trk := Load(statePath(t))
	mtime := time.Now()

	trk.RecordIndexed("notes/a.md", mtime)

	assert.True(t, trk.IsUnchanged("notes/a.md", mtime))
	// Any mtime difference forces reindexing, even one millisecond.
	assert.False(t, trk.IsUnchanged("notes/a.md", mtime.Add(time.Millisecond)))
	assert.False(t, trk.IsUnchanged("notes/b.md", mtime))
}

func TestIsUnchanged_SubMillisecondPrecisionIgnored(t *testing.T) {
	trk := Load(statePath(t))
	mtime := time.Now().Truncate(time.Millisecond)

	trk.RecordIndexed("a.md", mtime)

	// Fingerprints carry millisecond precision; differences below that
	// are not visible.
	assert.True(t, trk.IsUnchanged("a.md", mtime.Add(100*time.Microsecond)))
}

func TestForget(t *testing.T) {
	trk := Load(statePath(t))
	mtime := time.Now()

	trk.RecordIndexed("a.md", mtime)
	trk.Forget("a.md")

	assert.False(t, trk.IsUnchanged("a.md", mtime))
	assert.Equal(t, 0, trk.Count())
}

func TestFlush_Roundtrip(t *testing.T) {
	path := statePath(t)
	trk := Load(path)
	mtime := time.Now()

	trk.RecordIndexed("notes/a.md", mtime)
	trk.RecordIndexed("notes/b.md", mtime)
	trk.SetMeta(Meta{
		Model:         "nomic-embed-text",
		Provider:      "ollama",
		LastIndexedAt: time.Now().UnixMilli(),
		SchemaVersion: SchemaVersion,
	})
	require.NoError(t, trk.Flush())

	reloaded := Load(path)
	assert.Equal(t, 2, reloaded.Count())
	assert.True(t, reloaded.IsUnchanged("notes/a.md", mtime))

	meta := reloaded.Meta()
	require.NotNil(t, meta)
	assert.Equal(t, "nomic-embed-text", meta.Model)
	assert.Equal(t, "ollama", meta.Provider)
	assert.NotZero(t, meta.CreatedAt)
}

func TestSetMeta_PreservesCreatedAt(t *testing.T) {
	trk := Load(statePath(t))

	trk.SetMeta(Meta{Model: "a", CreatedAt: 1234})
	trk.SetMeta(Meta{Model: "b"})

	meta := trk.Meta()
	require.NotNil(t, meta)
	assert.Equal(t, "b", meta.Model)
	assert.Equal(t, int64(1234), meta.CreatedAt)
}

func TestReset(t *testing.T) {
	path := statePath(t)
	trk := Load(path)

	trk.RecordIndexed("a.md", time.Now())
	trk.SetMeta(Meta{Model: "m"})
	trk.Reset()
	require.NoError(t, trk.Flush())

	reloaded := Load(path)
	assert.Equal(t, 0, reloaded.Count())
	assert.Nil(t, reloaded.Meta())
}

func TestFlush_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "fingerprints.json")
	trk := Load(path)

	trk.RecordIndexed("a.md", time.Now())
	require.NoError(t, trk.Flush())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLoad_MetaAndEntriesCoexist(t *testing.T) {
	path := statePath(t)
	content := `{
		"good.md": {"lastModified": 1700000000000, "lastIndexed": 1700000000001},
		"__meta__": {"model": "m1", "provider": "ollama", "schemaVersion": 1}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	trk := Load(path)

	assert.Equal(t, 1, trk.Count())
	assert.True(t, trk.IsUnchanged("good.md", time.UnixMilli(1700000000000)))
	require.NotNil(t, trk.Meta())
	assert.Equal(t, "m1", trk.Meta().Model)
}
