package rag

import (
	"context"
	"fmt"

	"github.com/licium/licium/internal/log"
	"github.com/licium/licium/internal/vecstore"
)

// SearchLimit is how many chunks a query returns.
const SearchLimit = 5

// ChunkSearcher is the similarity query the searcher needs.
// *vecstore.Store satisfies it.
type ChunkSearcher interface {
	Search(ctx context.Context, vector []float32, opts ...vecstore.SearchOption) ([]vecstore.Result, error)
}

// Searcher answers queries with the stored chunks nearest to the query text.
type Searcher struct {
	store   ChunkSearcher
	resolve ResolveFunc
	logger  log.Logger
}

// NewSearcher creates a Searcher. resolve may be nil for the standard
// resolution policy.
func NewSearcher(store ChunkSearcher, resolve ResolveFunc, logger log.Logger) *Searcher {
	if logger == nil {
		logger = log.NewNop()
	}
	if resolve == nil {
		resolve = NewResolver(logger)
	}
	return &Searcher{store: store, resolve: resolve, logger: logger}
}

// Search embeds the query with the resolved provider and returns the user's
// most similar chunks, best first. Results are scoped to vectors produced by
// the same model the query was embedded with.
//
// Failures surface to the caller rather than degrading to an empty result, so
// the UI can distinguish "nothing relevant" from "retrieval broken".
func (s *Searcher) Search(ctx context.Context, userID, query string, providers Providers) ([]vecstore.Result, error) {
	provider, err := s.resolve(providers)
	if err != nil {
		return nil, fmt.Errorf("resolving embedding provider: %w", err)
	}

	vector, err := provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.Search(ctx, vector,
		vecstore.WithUser(userID),
		vecstore.WithModel(provider.Model()),
		vecstore.WithLimit(SearchLimit))
	if err != nil {
		return nil, fmt.Errorf("searching note chunks: %w", err)
	}

	s.logger.Debug("note search completed",
		"user_id", userID, "results", len(results), "model", provider.Model())
	return results, nil
}
