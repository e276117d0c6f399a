// Package embedder turns document text into fixed-length vectors.
//
// The Gateway is the only entry point the indexing pipeline uses. It
// wraps a concrete provider (Ollama or OpenAI) with a hard per-call
// timeout, maps every underlying failure to one of two sentinel errors,
// and manages the provider's lifecycle: the model is loaded lazily on
// first use and can be disposed with Reset to bound long-run memory
// growth of the inference runtime.
//
// Failures are terminal for the document being embedded. The Gateway
// never retries: a timed-out or failed embedding is surfaced to the
// caller, which skips the document and counts it as failed.
package embedder
