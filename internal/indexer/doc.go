// Package indexer drives the indexing pipeline: it decides at startup
// whether the whole corpus must be rebuilt, indexes document sets in
// checkpointed batches, and applies single-document updates coming from
// the live filesystem watcher.
//
// # Batch runs
//
// IndexAll partitions the corpus into fixed-size batches. Within a batch
// embeddings are generated concurrently; writes to the vector index are
// then issued sequentially in document order inside one long-lived
// transaction. Every checkpoint interval the transaction is committed and
// the fingerprint store flushed, so a crash loses at most the work since
// the last checkpoint. Per-document failures (read, embed, write) are
// logged and counted, never aborting the run.
//
// # Reconciliation
//
// ShouldReindex evaluates, in order: index missing, metadata missing,
// model changed, index empty. Any error during evaluation counts as
// "reindex needed"; correctness over speed. An explicit always/never
// configuration overrides the state machine.
//
// # Single-document path
//
// IndexOne and RemoveOne are the watcher's entry points. They write
// immediately (delete-then-insert, fingerprint flushed right away);
// single-document updates are rare enough that durability wins over
// throughput.
package indexer
