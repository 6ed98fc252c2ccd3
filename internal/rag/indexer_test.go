package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/licium/licium/internal/embedding"
	"github.com/licium/licium/internal/log"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// fakeProvider implements embedding.Provider with scripted failures.
// Safe for concurrent use so queue tests can share one across workers.
type fakeProvider struct {
	model  string
	mu     sync.Mutex
	calls  int
	failOn map[int]bool // 0-based call numbers that return an error
}

func (p *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	fail := p.failOn[call]
	p.mu.Unlock()
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return []float32{float32(len(text))}, nil
}

func (p *fakeProvider) Model() string {
	if p.model == "" {
		return "fake-model"
	}
	return p.model
}

func staticResolver(p embedding.Provider, err error) ResolveFunc {
	return func(Providers) (embedding.Provider, error) { return p, err }
}

// fakeStore implements VectorStore and FingerprintStore, recording every
// mutation in order. Safe for concurrent use.
type fakeStore struct {
	mu     sync.Mutex
	hashes map[string]string
	chunks map[string][]storedChunk
	events []string

	hashErr   error
	deleteErr error
	insertErr error
}

type storedChunk struct {
	index  int
	chunk  string
	model  string
	vector []float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: make(map[string]string),
		chunks: make(map[string][]storedChunk),
	}
}

func (s *fakeStore) ContentHash(_ context.Context, noteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashErr != nil {
		return "", s.hashErr
	}
	return s.hashes[noteID], nil
}

func (s *fakeStore) SetContentHash(_ context.Context, noteID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "set-hash")
	s.hashes[noteID] = hash
	return nil
}

func (s *fakeStore) DeleteNote(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.events = append(s.events, "delete")
	s.chunks[noteID] = nil
	return nil
}

func (s *fakeStore) InsertChunk(_ context.Context, noteID string, index int, chunk, model string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events = append(s.events, fmt.Sprintf("insert-%d", index))
	s.chunks[noteID] = append(s.chunks[noteID], storedChunk{index, chunk, model, vector})
	return nil
}

// ============================================================================
// Tests
// ============================================================================

func TestIndexer_IndexesNewNote(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{model: "text-embedding-3-small"}
	ix := NewIndexer(store, store, staticResolver(provider, nil), log.NewNop())

	content := strings.Repeat("Meeting notes from the planning session. ", 20) // 820 bytes
	err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: content})
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	wantChunks, _ := embedding.ChunkText(content, NoteChunkSize, NoteChunkOverlap)
	got := store.chunks["note-1"]
	if len(got) != len(wantChunks) {
		t.Fatalf("stored %d chunks, want %d", len(got), len(wantChunks))
	}
	for i, sc := range got {
		if sc.index != i {
			t.Errorf("chunk %d stored with index %d", i, sc.index)
		}
		if sc.chunk != wantChunks[i] {
			t.Errorf("chunk %d content mismatch", i)
		}
		if sc.model != "text-embedding-3-small" {
			t.Errorf("chunk %d tagged with model %q", i, sc.model)
		}
	}

	if store.hashes["note-1"] != embedding.Fingerprint(content) {
		t.Error("fingerprint not persisted")
	}
}

func TestIndexer_SkipsUnchangedContent(t *testing.T) {
	store := newFakeStore()
	content := "unchanged note body"
	store.hashes["note-1"] = embedding.Fingerprint(content)

	provider := &fakeProvider{}
	ix := NewIndexer(store, store, staticResolver(provider, nil), log.NewNop())

	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: content}); err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("provider called %d times for unchanged content, want 0", provider.calls)
	}
	if len(store.events) != 0 {
		t.Errorf("store mutated for unchanged content: %v", store.events)
	}
}

func TestIndexer_ReindexReplacesChunks(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{}
	ix := NewIndexer(store, store, staticResolver(provider, nil), log.NewNop())

	first := strings.Repeat("old content ", 60)
	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: first}); err != nil {
		t.Fatalf("first Index() error: %v", err)
	}
	firstCount := len(store.chunks["note-1"])

	second := "now much shorter"
	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: second}); err != nil {
		t.Fatalf("second Index() error: %v", err)
	}

	got := store.chunks["note-1"]
	if len(got) != 1 {
		t.Fatalf("after re-index: %d chunks (first index had %d), want 1", len(got), firstCount)
	}
	if got[0].chunk != second {
		t.Errorf("stored chunk = %q, want new content", got[0].chunk)
	}
}

func TestIndexer_HashPersistedBeforeDelete(t *testing.T) {
	store := newFakeStore()
	ix := NewIndexer(store, store, staticResolver(&fakeProvider{}, nil), log.NewNop())

	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: "body"}); err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	if len(store.events) < 2 || store.events[0] != "set-hash" || store.events[1] != "delete" {
		t.Errorf("event order = %v, want fingerprint persisted before delete", store.events)
	}
}

func TestIndexer_SkipsFailedChunks(t *testing.T) {
	store := newFakeStore()
	// Second chunk's embedding call fails.
	provider := &fakeProvider{failOn: map[int]bool{1: true}}
	ix := NewIndexer(store, store, staticResolver(provider, nil), log.NewNop())

	content := strings.Repeat("a", 800) // three windows at 350/100
	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: content}); err != nil {
		t.Fatalf("Index() error: %v", err)
	}

	got := store.chunks["note-1"]
	if len(got) != 2 {
		t.Fatalf("stored %d chunks, want 2 (one skipped)", len(got))
	}
	// Indices keep their original positions so chunk order stays meaningful.
	if got[0].index != 0 || got[1].index != 2 {
		t.Errorf("stored indices = %d, %d, want 0 and 2", got[0].index, got[1].index)
	}
}

func TestIndexer_ResolveErrorAbortsBeforeMutation(t *testing.T) {
	store := newFakeStore()
	ix := NewIndexer(store, store, staticResolver(nil, embedding.ErrNoProvider), log.NewNop())

	err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: "body"})
	if !errors.Is(err, embedding.ErrNoProvider) {
		t.Fatalf("Index() = %v, want ErrNoProvider", err)
	}
	if len(store.events) != 0 {
		t.Errorf("store mutated despite configuration error: %v", store.events)
	}
}

func TestIndexer_InsertErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	ix := NewIndexer(store, store, staticResolver(&fakeProvider{}, nil), log.NewNop())

	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: "body"}); err == nil {
		t.Fatal("expected storage error to surface")
	}
}

func TestIndexer_FingerprintCheckErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.hashErr = errors.New("connection reset")
	provider := &fakeProvider{}
	ix := NewIndexer(store, store, staticResolver(provider, nil), log.NewNop())

	if err := ix.Index(context.Background(), IndexRequest{NoteID: "note-1", Content: "body"}); err == nil {
		t.Fatal("expected fingerprint read error to surface")
	}
	if provider.calls != 0 {
		t.Error("provider called despite fingerprint read failure")
	}
}
