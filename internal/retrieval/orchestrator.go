// Package retrieval fans queries out to the grounding store and fuses the
// results into one bounded, deduplicated evidence set.
package retrieval

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/knowledge"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Orchestrator issues one or more sub-queries concurrently and merges their
// results. Individual sub-query failures are swallowed and logged; the
// orchestrator returns whatever succeeded, and an empty result set is
// signaled downstream as "no evidence", never as an error.
type Orchestrator struct {
	store knowledge.Store
	cfg   config.RetrievalConfig
	cache *GroundingCache
}

// NewOrchestrator creates an Orchestrator over the given store.
func NewOrchestrator(store knowledge.Store, cfg config.RetrievalConfig, cache *GroundingCache) *Orchestrator {
	return &Orchestrator{store: store, cfg: cfg, cache: cache}
}

// HasGrounding reports whether retrieval is worth attempting for the scope.
func (o *Orchestrator) HasGrounding(ctx context.Context, scope string) bool {
	if o.cache == nil {
		return true
	}
	return o.cache.HasGrounding(ctx, scope)
}

// Retrieve runs the primary query plus any deterministic variants and
// returns the fused evidence set, capped at cfg.MaxChunks.
func (o *Orchestrator) Retrieve(ctx context.Context, query, scope string, evaluative bool) []turn.EvidenceChunk {
	queries := append([]string{query}, QueryVariants(query, evaluative)...)

	lists := make([]rankedList, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		weight := o.cfg.VariantWeight
		if i == 0 {
			weight = o.cfg.PrimaryWeight
		}
		lists[i].weight = weight

		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()

			subCtx := ctx
			if o.cfg.CallTimeoutSec > 0 {
				var cancel context.CancelFunc
				subCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.CallTimeoutSec)*time.Second)
				defer cancel()
			}

			results, err := o.store.Search(subCtx, q, scope, o.cfg.TopK)
			if err != nil {
				log.Printf("retrieval: sub-query %q failed: %v", q, err)
				return
			}
			lists[i].chunks = toChunks(results)
		}(i, q)
	}
	wg.Wait()

	return fuse(lists, o.cfg.MaxChunks)
}

// RetrieveExpanded runs the single second-pass retrieval with a widened
// query. The retry bound itself lives in RetryPolicy; this method only knows
// how to run one expanded pass.
func (o *Orchestrator) RetrieveExpanded(ctx context.Context, query, scope string) []turn.EvidenceChunk {
	return o.Retrieve(ctx, ExpandQuery(query), scope, false)
}

func toChunks(results []knowledge.SearchResult) []turn.EvidenceChunk {
	chunks := make([]turn.EvidenceChunk, len(results))
	for i, r := range results {
		chunks[i] = turn.EvidenceChunk{
			SourceID: r.Passage.SourceID,
			Text:     r.Passage.Text,
			Score:    float64(r.Similarity),
			Section:  r.Passage.Section,
			Page:     r.Passage.Page,
		}
	}
	return chunks
}
