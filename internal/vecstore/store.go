// Package vecstore persists note chunk embeddings in PostgreSQL + pgvector
// and serves cosine-similarity queries over them.
//
// One row exists per (note id, chunk index). The embedding column has no
// fixed dimensionality so providers can be swapped mid-lifetime; every row is
// tagged with the model that produced its vector, and similarity queries are
// scoped to same-model rows to keep distance computations meaningful.
//
// Re-indexing a note is always delete-all-then-insert-all, never a partial
// update, so shifted chunk boundaries can't leak stale chunks.
package vecstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/licium/licium/internal/log"
)

// DB is the subset of pgxpool.Pool the store depends on.
// Following Go best practice the interface is defined here, by the consumer.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Result is one similarity match: a chunk of a note with its score.
type Result struct {
	NoteID     string
	Title      string
	Chunk      string
	Similarity float64 // 1 - cosine distance, descending in query order
}

// Store is the vector store adapter. Safe for concurrent use; writes for the
// same note must be serialized by the caller (the indexing queue does this).
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store on the given database handle.
func New(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// ContentHash returns the stored content fingerprint for a note, or the
// empty string when the note has none yet (or does not exist — indexing an
// unknown note then proceeds and simply updates zero rows).
func (s *Store) ContentHash(ctx context.Context, noteID string) (string, error) {
	var hash *string
	err := s.db.QueryRow(ctx, `SELECT content_hash FROM notes WHERE id = $1`, noteID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying content hash for note %q: %w", noteID, err)
	}
	if hash == nil {
		return "", nil
	}
	return *hash, nil
}

// SetContentHash persists the fingerprint for a note.
func (s *Store) SetContentHash(ctx context.Context, noteID, hash string) error {
	_, err := s.db.Exec(ctx, `UPDATE notes SET content_hash = $1 WHERE id = $2`, hash, noteID)
	if err != nil {
		return fmt.Errorf("updating content hash for note %q: %w", noteID, err)
	}
	return nil
}

// DeleteNote removes all embedding rows for a note. The schema additionally
// cascades this on note deletion.
func (s *Store) DeleteNote(ctx context.Context, noteID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM note_embeddings WHERE note_id = $1`, noteID)
	if err != nil {
		return fmt.Errorf("deleting embeddings for note %q: %w", noteID, err)
	}
	s.logger.Debug("deleted note embeddings", "note_id", noteID, "rows", tag.RowsAffected())
	return nil
}

// InsertChunk persists one (note, chunk index, text, vector) tuple tagged
// with the producing model.
func (s *Store) InsertChunk(ctx context.Context, noteID string, index int, chunk, model string, vector []float32) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO note_embeddings (note_id, chunk_index, chunk_content, model, embedding)
		 VALUES ($1, $2, $3, $4, $5)`,
		noteID, index, chunk, model, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("inserting chunk %d for note %q: %w", index, noteID, err)
	}
	return nil
}

// Search returns the stored chunks nearest to vector by cosine distance,
// annotated with similarity (1 - distance) and the owning note's title.
//
// Ranking is strictly by ascending cosine distance; ties break by the
// store's native ordering. Options scope the query to a user, a producing
// model, and a result limit (default 5).
func (s *Store) Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	query := `SELECT ne.note_id, n.title, ne.chunk_content,
		1 - (ne.embedding <=> $1) AS similarity
		FROM note_embeddings ne
		JOIN notes n ON ne.note_id = n.id`
	args := []any{pgvector.NewVector(vector)}

	var conds []string
	if cfg.userID != "" {
		args = append(args, cfg.userID)
		conds = append(conds, fmt.Sprintf("n.user_id = $%d", len(args)))
	}
	if cfg.model != "" {
		args = append(args, cfg.model)
		conds = append(conds, fmt.Sprintf("ne.model = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	args = append(args, cfg.limit)
	query += fmt.Sprintf(" ORDER BY ne.embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.NoteID, &r.Title, &r.Chunk, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return results, nil
}
