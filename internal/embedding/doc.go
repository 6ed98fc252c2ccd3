// Package embedding converts text into fixed-length vector representations.
//
// It provides the three building blocks the indexing and retrieval layers
// share:
//
//   - Fingerprint: a SHA-256 content hash used to detect whether re-embedding
//     is necessary at all.
//   - ChunkText: windowed splitting of arbitrary text into overlapping
//     fixed-size chunks, the unit of embedding.
//   - Provider: a closed interface over the supported embedding backends
//     (hosted OpenAI-compatible APIs, a local Ollama daemon, a self-hosted
//     text-embeddings-inference server), selected once by New from an
//     externally supplied configuration record.
//
// Providers are fallible per invocation: a failed Embed call has no side
// effects and callers decide whether a failure is fatal (query vectors) or
// skippable (individual chunks).
package embedding
