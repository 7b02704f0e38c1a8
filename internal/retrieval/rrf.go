package retrieval

import (
	"sort"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// rrfK is the standard rank damping constant for reciprocal-rank fusion.
const rrfK = 60.0

// rankedList is one sub-query's result list plus its fusion weight.
type rankedList struct {
	weight float64
	chunks []turn.EvidenceChunk
}

// fuse merges the ranked lists with reciprocal-rank-fusion scoring,
// deduplicating by (source_id, normalized text). The fused score replaces the
// per-list similarity in each surviving chunk; the original similarity of the
// best-ranked occurrence is kept as a tiebreaker input for later stages via
// the chunk ordering.
func fuse(lists []rankedList, limit int) []turn.EvidenceChunk {
	type entry struct {
		chunk   turn.EvidenceChunk
		score   float64
		bestSim float64
	}
	merged := make(map[string]*entry)

	for _, list := range lists {
		for rank, chunk := range list.chunks {
			key := chunk.SourceID + "\x00" + normalizeText(chunk.Text)
			contribution := list.weight / (rrfK + float64(rank+1))
			if e, ok := merged[key]; ok {
				e.score += contribution
				if chunk.Score > e.bestSim {
					e.bestSim = chunk.Score
					e.chunk = chunk
				}
				continue
			}
			merged[key] = &entry{chunk: chunk, score: contribution, bestSim: chunk.Score}
		}
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		// Stable order for equal fusion scores.
		if entries[i].bestSim != entries[j].bestSim {
			return entries[i].bestSim > entries[j].bestSim
		}
		return entries[i].chunk.SourceID < entries[j].chunk.SourceID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]turn.EvidenceChunk, len(entries))
	for i, e := range entries {
		c := e.chunk
		c.Score = e.bestSim
		out[i] = c
	}
	return out
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Merge combines an earlier evidence set with a later pass's results,
// deduplicating by (source_id, normalized text) and keeping the higher
// similarity for duplicates. Earlier chunks keep their relative order;
// genuinely new chunks append after them. The combined set is capped at
// limit.
func Merge(first, second []turn.EvidenceChunk, limit int) []turn.EvidenceChunk {
	out := make([]turn.EvidenceChunk, 0, len(first)+len(second))
	index := make(map[string]int, len(first))
	for _, c := range first {
		key := c.SourceID + "\x00" + normalizeText(c.Text)
		index[key] = len(out)
		out = append(out, c)
	}
	for _, c := range second {
		key := c.SourceID + "\x00" + normalizeText(c.Text)
		if i, ok := index[key]; ok {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
