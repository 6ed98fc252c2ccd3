// Package webrag enriches a query with content scraped from web search
// results. Pages are fetched concurrently, stripped of boilerplate, chunked,
// and ranked against the query embedding; the best chunks are formatted as
// attributed context for the model.
//
// Every failure degrades instead of erroring: a page that cannot be fetched
// falls back to its search snippet, and a query that cannot be embedded falls
// back to unranked snippets. Enrichment never blocks an answer.
package webrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/licium/licium/internal/embedding"
	"github.com/licium/licium/internal/log"
)

// Chunking parameters for scraped pages. Web text is noisier than notes, so
// windows are larger and overlap smaller than the note parameters.
const (
	WebChunkSize    = 512
	WebChunkOverlap = 50
)

const (
	maxPages         = 3  // search hits fetched per query
	maxChunksPerPage = 10 // cap per page so one long article can't crowd out the rest
	topChunks        = 5  // ranked chunks included in the context

	// minArticleLen is the extraction length below which the search snippet
	// wins: a short extraction is usually leftover page chrome, while the
	// snippet was picked by the search engine for the query.
	minArticleLen = 500
)

// Fixed responses for the degenerate cases.
const (
	msgNoResults  = "No search results."
	msgNoContent  = "Could not extract relevant content."
	sourceFormat  = "SOURCE: [%s](%s)\nCONTENT: %s"
	sourceDivider = "\n\n"
)

// SearchHit is one web search result to enrich from.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
}

// candidate is a chunk with its provenance, scored against the query.
type candidate struct {
	hit   SearchHit
	chunk string
	score float64
}

// Enricher fetches and ranks web content. Construct with NewEnricher.
type Enricher struct {
	scraper *scraper
	logger  log.Logger
}

// NewEnricher creates an Enricher using the given fetch settings.
// A zero timeout falls back to the scraper default.
func NewEnricher(timeoutMs int, userAgent string, logger log.Logger) *Enricher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Enricher{
		scraper: newScraper(timeoutMs, userAgent),
		logger:  logger,
	}
}

// Enrich turns search hits into an attributed context block for the query.
//
// The top hits are fetched concurrently. Each page's main content is chunked
// and embedded; chunks across all pages are ranked by cosine similarity to
// the query embedding and the best ones are formatted with their source.
// provider may be nil, in which case ranking is skipped and snippets are
// returned directly.
func (e *Enricher) Enrich(ctx context.Context, query string, hits []SearchHit, provider embedding.Provider) string {
	if len(hits) == 0 {
		return msgNoResults
	}

	// Embed the query before fetching anything: without a query vector no
	// ranking is possible and the snippets are the best we can do. The
	// fallback covers every hit, not just the ones we would have fetched.
	queryVec := e.embedQuery(ctx, query, provider)
	if queryVec == nil {
		return formatSnippets(hits)
	}

	if len(hits) > maxPages {
		hits = hits[:maxPages]
	}
	pages := e.fetchAll(ctx, hits)

	candidates := e.rank(ctx, pages, queryVec, provider)
	if len(candidates) == 0 {
		return msgNoContent
	}
	if len(candidates) > topChunks {
		candidates = candidates[:topChunks]
	}

	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf(sourceFormat, c.hit.Title, c.hit.URL, c.chunk))
	}
	return strings.Join(parts, sourceDivider)
}

// page is one hit's extracted content, fallen back to the snippet when the
// fetch or extraction failed.
type page struct {
	hit  SearchHit
	text string
}

func (e *Enricher) fetchAll(ctx context.Context, hits []SearchHit) []page {
	pages := make([]page, len(hits))

	g, fetchCtx := errgroup.WithContext(ctx)
	for i, hit := range hits {
		g.Go(func() error {
			text, err := e.scraper.fetch(fetchCtx, hit.URL)
			switch {
			case err != nil:
				e.logger.Debug("page fetch failed, using snippet",
					"url", hit.URL, "error", err)
				text = hit.Snippet
			case len(text) <= minArticleLen:
				text = hit.Snippet
			}
			pages[i] = page{hit: hit, text: text}
			return nil
		})
	}
	// Workers never return errors; degraded pages carry their snippet.
	_ = g.Wait()

	return pages
}

func (e *Enricher) embedQuery(ctx context.Context, query string, provider embedding.Provider) []float32 {
	if provider == nil {
		return nil
	}
	vec, err := provider.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, skipping ranking", "error", err)
		return nil
	}
	return vec
}

// rank chunks every page, embeds the chunks, and returns them sorted by
// similarity to the query, best first. Chunks that fail to embed are dropped.
func (e *Enricher) rank(ctx context.Context, pages []page, queryVec []float32, provider embedding.Provider) []candidate {
	var candidates []candidate
	for _, p := range pages {
		chunks, err := embedding.ChunkText(p.text, WebChunkSize, WebChunkOverlap)
		if err != nil || len(chunks) == 0 {
			continue
		}
		if len(chunks) > maxChunksPerPage {
			chunks = chunks[:maxChunksPerPage]
		}

		for _, chunk := range chunks {
			vec, err := provider.Embed(ctx, chunk)
			if err != nil {
				e.logger.Debug("chunk embedding failed, dropping",
					"url", p.hit.URL, "error", err)
				continue
			}
			candidates = append(candidates, candidate{
				hit:   p.hit,
				chunk: chunk,
				score: cosineSimilarity(queryVec, vec),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates
}

func formatSnippets(hits []SearchHit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Snippet == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(sourceFormat, h.Title, h.URL, h.Snippet))
	}
	if len(parts) == 0 {
		return msgNoContent
	}
	return strings.Join(parts, sourceDivider)
}
