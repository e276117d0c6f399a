package watcher

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUpdater captures dispatched paths.
type recordingUpdater struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recordingUpdater) IndexOne(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return nil
}

func (r *recordingUpdater) RemoveOne(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recordingUpdater) indexedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...)
}

func (r *recordingUpdater) removedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestCoalescer_BurstCollapsesToOneUpdate(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, 50*time.Millisecond, discardLogger())
	defer c.Stop()

	ctx := context.Background()
	c.NoteChanged(ctx, "notes/a.md")
	c.NoteChanged(ctx, "notes/a.md")
	c.NoteChanged(ctx, "notes/a.md")

	waitFor(t, 2*time.Second, func() bool {
		return len(updater.indexedPaths()) > 0
	})
	// Quiet period; no further dispatches should appear.
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, []string{"notes/a.md"}, updater.indexedPaths())
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_DistinctPathsDispatchIndependently(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, 30*time.Millisecond, discardLogger())
	defer c.Stop()

	ctx := context.Background()
	c.NoteChanged(ctx, "a.md")
	c.NoteChanged(ctx, "b.md")

	waitFor(t, 2*time.Second, func() bool {
		return len(updater.indexedPaths()) == 2
	})
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, updater.indexedPaths())
}

func TestCoalescer_RemovalCancelsPendingUpdate(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, 100*time.Millisecond, discardLogger())
	defer c.Stop()

	ctx := context.Background()
	c.NoteChanged(ctx, "a.md")
	c.NoteRemoved(ctx, "a.md")

	// Removal is immediate and the pending update must never fire.
	assert.Equal(t, []string{"a.md"}, updater.removedPaths())
	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, updater.indexedPaths())
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_RescheduleExtendsQuietPeriod(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, 80*time.Millisecond, discardLogger())
	defer c.Stop()

	ctx := context.Background()
	c.NoteChanged(ctx, "a.md")
	time.Sleep(40 * time.Millisecond)
	c.NoteChanged(ctx, "a.md")

	// The first timer was rescheduled, so nothing has fired yet.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, updater.indexedPaths())

	waitFor(t, 2*time.Second, func() bool {
		return len(updater.indexedPaths()) == 1
	})
}

func TestCoalescer_StopCancelsOutstandingTimers(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, time.Second, discardLogger())

	ctx := context.Background()
	c.NoteChanged(ctx, "a.md")
	c.NoteChanged(ctx, "b.md")
	require.Equal(t, 2, c.Pending())

	c.Stop()

	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, updater.indexedPaths())
}

func TestCoalescer_CancelledContextSuppressesDispatch(t *testing.T) {
	updater := &recordingUpdater{}
	c := NewCoalescer(updater, 30*time.Millisecond, discardLogger())
	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	c.NoteChanged(ctx, "a.md")
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, updater.indexedPaths())
}

func TestCoalescer_DefaultDebounce(t *testing.T) {
	c := NewCoalescer(&recordingUpdater{}, 0, discardLogger())
	assert.Equal(t, DefaultDebounce, c.debounce)
}
