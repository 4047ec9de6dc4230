package index

import (
	"context"
	"math"

	"github.com/mtrtrdev/localQA/internal/model"
)

// Index is one named database's nearest-neighbor store. Implementations
// must be safe for concurrent use and apply mutations atomically with
// respect to searches: a reader observes either the pre- or post-upsert
// state, never a partial one.
//
// Similarity is cosine throughout; ingestion and query vectors come from
// the same embedding model, so cosine matches the training metric of the
// supported providers. Ties are broken by ascending chunk id so results
// are deterministic.
type Index interface {
	// Upsert inserts or overwrites entries, idempotent by chunk id.
	Upsert(ctx context.Context, entries []model.IndexEntry) error
	// Search returns up to k entries by descending similarity. k larger
	// than the index is clamped; an index with zero entries yields
	// errors.ErrEmptyIndex.
	Search(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error)
	// Neighbors returns chunks of sourceID with sequence index within
	// [seq-window, seq+window], ascending by sequence index.
	Neighbors(ctx context.Context, sourceID string, seq, window int) ([]model.Chunk, error)
	// DeleteAll removes every entry. Irreversible.
	DeleteAll(ctx context.Context) error
	// ListEntries scans the full index; iteration is stable for a given
	// index state but otherwise unordered.
	ListEntries(ctx context.Context) ([]model.IndexEntry, error)
	// Count reports the number of entries.
	Count(ctx context.Context) (int, error)
}

// Provider manages named databases for one backend.
type Provider interface {
	// Create registers a new empty database; errors.ErrConflict if it
	// already exists.
	Create(ctx context.Context, name string) error
	// Open returns the index of an existing database;
	// errors.ErrNotFound if missing.
	Open(ctx context.Context, name string) (Index, error)
	// List enumerates databases with their entry counts.
	List(ctx context.Context) ([]model.DatabaseInfo, error)
	// Drop destroys a database and everything in it.
	Drop(ctx context.Context, name string) error
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// zero when either vector has no magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
