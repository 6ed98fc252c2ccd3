package rag

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/licium/licium/internal/embedding"
	"github.com/licium/licium/internal/log"
)

// Chunking parameters for note content. Notes are prose; a 100-byte overlap
// keeps sentences split at a window boundary retrievable from either side.
const (
	NoteChunkSize    = 350
	NoteChunkOverlap = 100
)

// defaultEmbedRate paces sequential chunk embedding so a large note doesn't
// burst against hosted provider rate limits.
var defaultEmbedRate = rate.Limit(10)

// VectorStore is the vector persistence the indexer needs, defined here by
// the consumer. *vecstore.Store satisfies it.
type VectorStore interface {
	DeleteNote(ctx context.Context, noteID string) error
	InsertChunk(ctx context.Context, noteID string, index int, chunk, model string, vector []float32) error
}

// FingerprintStore reads and writes note content fingerprints.
// *vecstore.Store satisfies it.
type FingerprintStore interface {
	ContentHash(ctx context.Context, noteID string) (string, error)
	SetContentHash(ctx context.Context, noteID, hash string) error
}

// IndexRequest names one note to (re-)index.
type IndexRequest struct {
	NoteID    string
	Content   string
	Providers Providers
}

// Indexer turns a note's content into stored chunk embeddings.
type Indexer struct {
	store   VectorStore
	notes   FingerprintStore
	resolve ResolveFunc
	limiter *rate.Limiter
	logger  log.Logger
}

// NewIndexer creates an Indexer. resolve may be nil, in which case the
// standard resolution policy is used.
func NewIndexer(store VectorStore, notes FingerprintStore, resolve ResolveFunc, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	if resolve == nil {
		resolve = NewResolver(logger)
	}
	return &Indexer{
		store:   store,
		notes:   notes,
		resolve: resolve,
		limiter: rate.NewLimiter(defaultEmbedRate, 1),
		logger:  logger,
	}
}

// Index brings the stored embeddings for a note in line with its current
// content.
//
// The note's content fingerprint gates all work: when it matches the stored
// one the note is already indexed and Index returns immediately. Otherwise
// the new fingerprint is persisted, existing embeddings are deleted, and the
// content is chunked and embedded chunk by chunk.
//
// A chunk whose embedding call fails is skipped, not retried; the remaining
// chunks still index. Configuration errors (no resolvable provider) abort
// before any state changes.
func (ix *Indexer) Index(ctx context.Context, req IndexRequest) error {
	hash := embedding.Fingerprint(req.Content)

	stored, err := ix.notes.ContentHash(ctx, req.NoteID)
	if err != nil {
		return fmt.Errorf("checking fingerprint for note %q: %w", req.NoteID, err)
	}
	if stored == hash {
		ix.logger.Debug("note content unchanged, skipping index", "note_id", req.NoteID)
		return nil
	}

	provider, err := ix.resolve(req.Providers)
	if err != nil {
		return fmt.Errorf("resolving embedding provider: %w", err)
	}

	// Persist the fingerprint before touching embeddings: a crash mid-index
	// leaves the note marked current, and the next content edit re-triggers
	// a full rebuild.
	if err := ix.notes.SetContentHash(ctx, req.NoteID, hash); err != nil {
		return fmt.Errorf("storing fingerprint for note %q: %w", req.NoteID, err)
	}
	if err := ix.store.DeleteNote(ctx, req.NoteID); err != nil {
		return fmt.Errorf("clearing old embeddings for note %q: %w", req.NoteID, err)
	}

	chunks, err := embedding.ChunkText(req.Content, NoteChunkSize, NoteChunkOverlap)
	if err != nil {
		return fmt.Errorf("chunking note %q: %w", req.NoteID, err)
	}

	var indexed, skipped int
	for i, chunk := range chunks {
		if err := ix.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("indexing note %q interrupted: %w", req.NoteID, err)
		}

		vector, err := provider.Embed(ctx, chunk)
		if err != nil {
			ix.logger.Warn("skipping chunk, embedding failed",
				"note_id", req.NoteID, "chunk_index", i, "error", err)
			skipped++
			continue
		}

		if err := ix.store.InsertChunk(ctx, req.NoteID, i, chunk, provider.Model(), vector); err != nil {
			return fmt.Errorf("storing chunk %d of note %q: %w", i, req.NoteID, err)
		}
		indexed++
	}

	ix.logger.Info("indexed note",
		"note_id", req.NoteID, "chunks", indexed, "skipped", skipped, "model", provider.Model())
	return nil
}
