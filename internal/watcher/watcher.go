package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rhagen/vaultsearch-mcp/internal/notes"
)

// Watch starts an fsnotify watcher on the vault root and feeds change
// events through the coalescer until ctx is cancelled. Paths outside the
// corpus (non-markdown, excluded prefixes) never reach the coalescer.
//
// New directories created at runtime are added to the watch list, and
// any markdown files already inside them are scheduled for indexing.
// fsnotify fires Rename on the old path only, so a rename is treated as
// removal of that path; the new path arrives as a separate Create event.
func Watch(ctx context.Context, source *notes.Source, c *Coalescer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	root := source.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watch: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			c.Stop()
			logger.Info("watch: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			handleEvent(ctx, w, source, c, logger, ev)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handleEvent routes one fsnotify event into the coalescer.
func handleEvent(ctx context.Context, w *fsnotify.Watcher, source *notes.Source,
	c *Coalescer, logger *slog.Logger, ev fsnotify.Event) {

	absPath := ev.Name
	root := source.Root()

	// New directories: extend the watch list and pick up any markdown
	// files that already exist inside.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(w, absPath); addErr != nil {
				logger.Warn("watch: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				logger.Debug("watch: watching new dir", slog.String("path", absPath))
			}
			scheduleExistingFiles(ctx, source, c, absPath)
			return
		}
	}

	rel, relErr := filepath.Rel(root, absPath)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !source.Matches(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		c.NoteChanged(ctx, rel)

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		c.NoteRemoved(ctx, rel)
	}
}

// scheduleExistingFiles schedules indexing for corpus files already
// present under a newly watched directory.
func scheduleExistingFiles(ctx context.Context, source *notes.Source, c *Coalescer, dir string) {
	root := source.Root()
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if source.Matches(rel) {
			c.NoteChanged(ctx, rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
