package rag

import (
	"github.com/licium/licium/internal/config"
	"github.com/licium/licium/internal/embedding"
	"github.com/licium/licium/internal/log"
)

// Providers carries the per-request provider settings a caller supplies when
// triggering an operation. Either field may be nil.
type Providers struct {
	// Embedding is the dedicated embedding provider, preferred when set.
	Embedding *config.EmbeddingProvider

	// Chat is the general model provider, used for embeddings when no
	// dedicated one is configured and its kind serves embeddings too.
	Chat *config.EmbeddingProvider
}

// ResolveFunc turns per-request provider settings into a concrete embedding
// provider. Injected so tests can substitute fakes and so resolution policy
// stays in one place.
type ResolveFunc func(p Providers) (embedding.Provider, error)

// NewResolver returns the standard resolution policy: the dedicated embedding
// provider wins, then the chat provider, then process environment defaults.
// Returns embedding.ErrNoProvider when nothing is configured anywhere.
func NewResolver(logger log.Logger) ResolveFunc {
	return func(p Providers) (embedding.Provider, error) {
		switch {
		case p.Embedding != nil:
			return embedding.New(p.Embedding, logger)
		case p.Chat != nil:
			return embedding.New(p.Chat, logger)
		default:
			return embedding.New(nil, logger)
		}
	}
}
