package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhagen/vaultsearch-mcp/internal/config"
	"github.com/rhagen/vaultsearch-mcp/internal/embedder"
	"github.com/rhagen/vaultsearch-mcp/internal/notes"
	"github.com/rhagen/vaultsearch-mcp/internal/tracker"
	"github.com/rhagen/vaultsearch-mcp/internal/vectorstore"
	"github.com/rhagen/vaultsearch-mcp/pkg/types"
)

// Pipeline tuning. The checkpoint interval bounds crash loss; the reset
// interval bounds inference-runtime memory growth on long runs.
const (
	DefaultBatchSize       = 10
	DefaultCheckpointEvery = 50
	DefaultResetEvery      = 500
	DefaultBatchPause      = 50 * time.Millisecond
	DefaultResetPause      = time.Second
	DefaultExcerptLen      = 200
)

// Options tunes the Reconciler. Zero values take the defaults above.
type Options struct {
	RebuildMode     string // config.ReindexAuto, Always, or Never
	BatchSize       int
	CheckpointEvery int
	ResetEvery      int
	BatchPause      time.Duration
	ResetPause      time.Duration
	ExcerptLen      int
}

func (o *Options) applyDefaults() {
	if o.RebuildMode == "" {
		o.RebuildMode = config.ReindexAuto
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultCheckpointEvery
	}
	if o.ResetEvery <= 0 {
		o.ResetEvery = DefaultResetEvery
	}
	if o.BatchPause <= 0 {
		o.BatchPause = DefaultBatchPause
	}
	if o.ResetPause <= 0 {
		o.ResetPause = DefaultResetPause
	}
	if o.ExcerptLen <= 0 {
		o.ExcerptLen = DefaultExcerptLen
	}
}

// Reconciler owns the indexing pipeline state: document source, vector
// store, embedding gateway, and the fingerprint tracker. It is the single
// writer of the index within a process.
type Reconciler struct {
	source  *notes.Source
	store   vectorstore.Store
	gateway *embedder.Gateway
	tracker *tracker.Tracker
	logger  *slog.Logger
	opts    Options
}

// New creates a Reconciler.
func New(source *notes.Source, store vectorstore.Store, gateway *embedder.Gateway,
	trk *tracker.Tracker, logger *slog.Logger, opts Options) *Reconciler {

	opts.applyDefaults()
	return &Reconciler{
		source:  source,
		store:   store,
		gateway: gateway,
		tracker: trk,
		logger:  logger,
		opts:    opts,
	}
}

// Decision is the outcome of the startup reindex check.
type Decision struct {
	Reindex bool   `json:"reindex"`
	Reason  string `json:"reason"`
}

// ShouldReindex decides whether a full corpus rebuild is required.
// Checks run in order, first match wins; any failure while evaluating
// counts as "reindex needed".
func (r *Reconciler) ShouldReindex(ctx context.Context) Decision {
	switch r.opts.RebuildMode {
	case config.ReindexAlways:
		return Decision{Reindex: true, Reason: "rebuild forced by configuration"}
	case config.ReindexNever:
		return Decision{Reindex: false, Reason: "rebuild suppressed by configuration"}
	}

	if !r.store.IsCreated() {
		return Decision{Reindex: true, Reason: "first-time setup"}
	}

	meta := r.tracker.Meta()
	if meta == nil || meta.Model == "" {
		return Decision{Reindex: true, Reason: "legacy index, upgrading"}
	}

	if meta.Model != r.gateway.Model() {
		return Decision{
			Reindex: true,
			Reason:  fmt.Sprintf("model changed: %s -> %s", meta.Model, r.gateway.Model()),
		}
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return Decision{Reindex: true, Reason: fmt.Sprintf("index unreadable: %v", err)}
	}
	if count == 0 {
		return Decision{Reindex: true, Reason: "index exists but is empty"}
	}

	return Decision{Reindex: false, Reason: "index valid and up-to-date"}
}

// Startup runs the startup reconciliation: evaluate ShouldReindex, clear
// the index when a rebuild is needed, then drive IndexAll over the full
// corpus (forced) or the delta set. Callers arm the filesystem watcher
// only after Startup returns.
func (r *Reconciler) Startup(ctx context.Context) (types.Summary, error) {
	decision := r.ShouldReindex(ctx)
	r.logger.Info("reconcile: startup decision",
		slog.Bool("reindex", decision.Reindex),
		slog.String("reason", decision.Reason))

	if decision.Reindex {
		if err := r.Clear(ctx); err != nil {
			return types.Summary{}, fmt.Errorf("clear index before rebuild: %w", err)
		}
		return r.IndexAll(ctx, true)
	}
	return r.IndexAll(ctx, false)
}

// batchResult pairs a document with its embedding attempt. Err is a
// first-class value: the batch loop inspects it instead of catching
// anything.
type batchResult struct {
	meta types.DocumentMeta
	doc  *types.Document
	vec  []float32
	err  error
}

// IndexAll indexes the whole corpus. With force, every document is
// treated as needing indexing; otherwise unchanged documents (per the
// fingerprint tracker) are skipped. Per-document failures are absorbed
// into the summary; only run-level failures (store, checkpoint) return
// an error.
func (r *Reconciler) IndexAll(ctx context.Context, force bool) (types.Summary, error) {
	var summary types.Summary

	metas, err := r.source.List()
	if err != nil {
		return summary, fmt.Errorf("enumerate corpus: %w", err)
	}

	if err := r.store.Create(ctx); err != nil {
		return summary, fmt.Errorf("open vector index: %w", err)
	}

	// One logical transaction for the whole run, committed at each
	// checkpoint and reopened.
	if err := r.store.Begin(ctx); err != nil {
		return summary, fmt.Errorf("begin index transaction: %w", err)
	}
	txOpen := true
	defer func() {
		if txOpen {
			_ = r.store.End()
		}
	}()

	start := time.Now()
	r.logger.Info("index: run started",
		slog.Int("documents", len(metas)),
		slog.Bool("force", force))

	for batchStart := 0; batchStart < len(metas); batchStart += r.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batchEnd := batchStart + r.opts.BatchSize
		if batchEnd > len(metas) {
			batchEnd = len(metas)
		}

		// Skip decisions happen before any read or embed.
		var pending []types.DocumentMeta
		for _, meta := range metas[batchStart:batchEnd] {
			if !force && r.tracker.IsUnchanged(meta.Path, meta.ModTime) {
				summary.Skipped++
				continue
			}
			pending = append(pending, meta)
		}
		if len(pending) == 0 {
			continue
		}

		// Embeddings run concurrently; results come back in batch order
		// regardless of completion order.
		results := r.embedBatch(ctx, pending)

		// Writes are sequential: the store is the contended resource,
		// the parallelism gain is all in embedding.
		for _, res := range results {
			if res.err != nil {
				summary.Failed++
				r.logger.Warn("index: document failed",
					slog.String("path", res.meta.Path),
					slog.String("error", res.err.Error()))
				continue
			}

			if err := r.writeDocument(ctx, res.doc, res.vec); err != nil {
				summary.Failed++
				r.logger.Warn("index: write failed",
					slog.String("path", res.doc.Path),
					slog.String("error", err.Error()))
				continue
			}

			r.tracker.RecordIndexed(res.doc.Path, res.doc.ModTime)
			summary.Indexed++

			if summary.Indexed%r.opts.CheckpointEvery == 0 {
				if err := r.checkpoint(ctx); err != nil {
					txOpen = false
					return summary, err
				}
				r.logger.Debug("index: checkpoint", slog.Int("indexed", summary.Indexed))
			}

			if summary.Indexed%r.opts.ResetEvery == 0 {
				r.logger.Debug("index: resetting embedder lifecycle",
					slog.Int("indexed", summary.Indexed))
				r.gateway.Reset()
				sleepCtx(ctx, r.opts.ResetPause)
			}
		}

		sleepCtx(ctx, r.opts.BatchPause)
	}

	if err := r.store.End(); err != nil {
		txOpen = false
		return summary, fmt.Errorf("final flush: %w", err)
	}
	txOpen = false

	r.tracker.SetMeta(tracker.Meta{
		Model:         r.gateway.Model(),
		Provider:      r.gateway.Provider(),
		LastIndexedAt: time.Now().UnixMilli(),
		SchemaVersion: tracker.SchemaVersion,
	})
	if err := r.tracker.Flush(); err != nil {
		return summary, fmt.Errorf("persist fingerprints: %w", err)
	}

	r.logger.Info("index: run finished",
		slog.Int("indexed", summary.Indexed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("took", time.Since(start)))

	return summary, nil
}

// embedBatch reads and embeds a batch concurrently. Every document's
// attempt is independent: one failure never cancels the others. Results
// preserve batch order.
func (r *Reconciler) embedBatch(ctx context.Context, batch []types.DocumentMeta) []batchResult {
	results := make([]batchResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, meta := range batch {
		results[i].meta = meta
		g.Go(func() error {
			doc, err := r.source.Read(meta.Path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].doc = doc

			vec, err := r.gateway.Embed(gctx, embeddingText(doc))
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].vec = vec
			return nil
		})
	}
	// Workers report failures through the results slice, never through
	// the group, so Wait cannot fail.
	_ = g.Wait()

	return results
}

// writeDocument replaces the vector-index entry for doc. Delete before
// insert keeps re-indexing idempotent.
func (r *Reconciler) writeDocument(ctx context.Context, doc *types.Document, vec []float32) error {
	if err := r.store.Delete(ctx, doc.Path); err != nil {
		return err
	}
	return r.store.Insert(ctx, doc.Path, vec, vectorstore.Metadata{
		Title:       doc.Title,
		Tags:        strings.Join(doc.Tags, ","),
		Excerpt:     doc.Excerpt(r.opts.ExcerptLen),
		LastIndexed: time.Now(),
	})
}

// checkpoint commits the open transaction, persists fingerprints, and
// opens a fresh transaction for the batches that follow.
func (r *Reconciler) checkpoint(ctx context.Context) error {
	if err := r.store.End(); err != nil {
		return fmt.Errorf("checkpoint flush: %w", err)
	}
	if err := r.tracker.Flush(); err != nil {
		return fmt.Errorf("checkpoint fingerprints: %w", err)
	}
	if err := r.store.Begin(ctx); err != nil {
		return fmt.Errorf("checkpoint restart: %w", err)
	}
	return nil
}

// IndexOne indexes a single document immediately: read, embed, replace
// the index entry, persist the fingerprint. No batching or checkpoint
// deferral.
func (r *Reconciler) IndexOne(ctx context.Context, path string) error {
	doc, err := r.source.Read(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	vec, err := r.gateway.Embed(ctx, embeddingText(doc))
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}

	if err := r.store.Create(ctx); err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	if err := r.writeDocument(ctx, doc, vec); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	r.tracker.RecordIndexed(doc.Path, doc.ModTime)
	if err := r.tracker.Flush(); err != nil {
		return fmt.Errorf("persist fingerprint for %s: %w", path, err)
	}

	r.logger.Debug("index: document updated", slog.String("path", path))
	return nil
}

// RemoveOne deletes a document's index entry and fingerprint, persisting
// immediately.
func (r *Reconciler) RemoveOne(ctx context.Context, path string) error {
	if r.store.IsCreated() {
		if err := r.store.Delete(ctx, path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}

	r.tracker.Forget(path)
	if err := r.tracker.Flush(); err != nil {
		return fmt.Errorf("persist fingerprint removal for %s: %w", path, err)
	}

	r.logger.Debug("index: document removed", slog.String("path", path))
	return nil
}

// Search embeds the query text and returns the nearest index entries.
func (r *Reconciler) Search(ctx context.Context, query string, limit int, minScore float64) ([]types.SearchResult, error) {
	vec, err := r.gateway.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}
	return r.store.Query(ctx, vec, limit, minScore)
}

// Stats reports the index state.
func (r *Reconciler) Stats(ctx context.Context) (types.Stats, error) {
	stats := types.Stats{}

	if r.store.IsCreated() {
		count, err := r.store.Count(ctx)
		if err != nil {
			return stats, fmt.Errorf("count entries: %w", err)
		}
		stats.TotalDocuments = count
	}

	if meta := r.tracker.Meta(); meta != nil {
		stats.Model = meta.Model
		stats.Provider = meta.Provider
		if meta.LastIndexedAt > 0 {
			t := time.UnixMilli(meta.LastIndexedAt)
			stats.LastIndexed = &t
		}
	}
	return stats, nil
}

// Clear drops the vector index and the fingerprint store.
func (r *Reconciler) Clear(ctx context.Context) error {
	if err := r.store.Drop(); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	r.tracker.Reset()
	if err := r.tracker.Flush(); err != nil {
		return fmt.Errorf("persist cleared state: %w", err)
	}
	return nil
}

// embeddingText is the string handed to the embedding model for a
// document: title and body together, so near-empty notes still carry
// their name as signal.
func embeddingText(doc *types.Document) string {
	return strings.TrimSpace(doc.Title + "\n\n" + doc.Body)
}

// sleepCtx pauses for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
