// Package watcher bridges filesystem change notifications into index
// mutations. A per-path debounce coalesces editor save bursts into a
// single index update; deletions bypass the debounce entirely.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce lets editors finish multi-step save operations
// (temp-file-then-rename) before the index reads the file.
const DefaultDebounce = 2 * time.Second

// Updater is the single-document indexing surface the coalescer
// dispatches to.
type Updater interface {
	IndexOne(ctx context.Context, path string) error
	RemoveOne(ctx context.Context, path string) error
}

// Coalescer turns a bursty event stream into throttled single-document
// updates. It owns an explicit per-path timer table; at most one timer
// exists per path, and rescheduling always cancels the previous timer so
// two updates for the same path can never race.
type Coalescer struct {
	updater  Updater
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// NewCoalescer creates a coalescer dispatching to updater after debounce
// of quiet time per path. A non-positive debounce takes the default.
func NewCoalescer(updater Updater, debounce time.Duration, logger *slog.Logger) *Coalescer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Coalescer{
		updater:  updater,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// NoteChanged schedules (or reschedules) an index update for path. Only
// the final state of a rapidly edited file gets indexed.
func (c *Coalescer) NoteChanged(ctx context.Context, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[path]; ok {
		if t.Stop() {
			c.wg.Done()
		}
	}

	c.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()

		c.mu.Lock()
		if c.timers[path] != t {
			// Superseded by a newer event for this path.
			c.mu.Unlock()
			return
		}
		delete(c.timers, path)
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := c.updater.IndexOne(ctx, path); err != nil {
			c.logger.Warn("watch: update failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return
		}
		c.logger.Debug("watch: indexed", slog.String("path", path))
	})
	c.timers[path] = t
}

// NoteRemoved cancels any pending update for path and dispatches the
// removal immediately. The entry is definitely stale, so no debounce.
func (c *Coalescer) NoteRemoved(ctx context.Context, path string) {
	c.mu.Lock()
	if t, ok := c.timers[path]; ok {
		if t.Stop() {
			c.wg.Done()
		}
		delete(c.timers, path)
	}
	c.mu.Unlock()

	if err := c.updater.RemoveOne(ctx, path); err != nil {
		c.logger.Warn("watch: remove failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("watch: removed", slog.String("path", path))
}

// Pending returns the number of paths with an outstanding timer.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop cancels every outstanding timer and waits for in-flight dispatches
// to finish.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	for path, t := range c.timers {
		if t.Stop() {
			c.wg.Done()
		}
		delete(c.timers, path)
	}
	c.mu.Unlock()
	c.wg.Wait()
}
