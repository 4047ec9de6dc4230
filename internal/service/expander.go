package service

import (
	"context"
	"sort"

	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
)

// ExpandContext widens each retrieval hit with its neighboring chunks
// from the same source. The result is a superset of the hits, grouped
// by source in order of the source's best hit score, ascending by
// sequence within a group, deduplicated by chunk id.
func ExpandContext(ctx context.Context, idx index.Index, hits []model.ScoredChunk, window int) ([]model.Chunk, error) {
	type group struct {
		bestScore float32
		order     int
		chunks    map[string]model.Chunk
	}
	groups := make(map[string]*group)
	var sources []string
	for i, hit := range hits {
		g, ok := groups[hit.Chunk.SourceID]
		if !ok {
			g = &group{bestScore: hit.Score, order: i, chunks: make(map[string]model.Chunk)}
			groups[hit.Chunk.SourceID] = g
			sources = append(sources, hit.Chunk.SourceID)
		}
		if hit.Score > g.bestScore {
			g.bestScore = hit.Score
		}
		// the hit itself survives even if the index has since mutated
		g.chunks[hit.Chunk.ChunkID] = hit.Chunk
		if window <= 0 {
			continue
		}
		neighbors, err := idx.Neighbors(ctx, hit.Chunk.SourceID, hit.Chunk.SequenceIndex, window)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, seen := g.chunks[n.ChunkID]; !seen {
				g.chunks[n.ChunkID] = n
			}
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		gi, gj := groups[sources[i]], groups[sources[j]]
		if gi.bestScore != gj.bestScore {
			return gi.bestScore > gj.bestScore
		}
		return gi.order < gj.order
	})
	var out []model.Chunk
	for _, source := range sources {
		g := groups[source]
		chunks := make([]model.Chunk, 0, len(g.chunks))
		for _, ch := range g.chunks {
			chunks = append(chunks, ch)
		}
		sort.Slice(chunks, func(i, j int) bool {
			return chunks[i].SequenceIndex < chunks[j].SequenceIndex
		})
		out = append(out, chunks...)
	}
	return out, nil
}
