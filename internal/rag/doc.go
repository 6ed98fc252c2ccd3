// Package rag implements retrieval-augmented generation over a user's notes:
// indexing note content into the vector store and answering queries with the
// nearest stored chunks.
//
// The package has three entry points:
//
//   - Indexer synchronously (re-)indexes one note: fingerprint check,
//     chunking, embedding, and persistence.
//   - Queue runs Indexer jobs in the background with per-note serialization,
//     absorbing the fire-and-forget indexing triggered by note saves.
//   - Searcher embeds a query and returns the user's most similar chunks.
//
// Providers are resolved per operation through a ResolveFunc so that a user's
// provider settings take effect immediately, without restarting workers.
package rag
