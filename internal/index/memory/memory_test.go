package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(map[string]interface{}{"dir": t.TempDir()}, 3)
	require.NoError(t, err)
	return p
}

func entry(sourceID string, seq int, text string, vec []float32) model.IndexEntry {
	return model.IndexEntry{
		Chunk: model.Chunk{
			ChunkID:       model.ChunkID(sourceID, seq),
			SourceID:      sourceID,
			Filename:      sourceID + ".txt",
			FileType:      model.FileTypeTXT,
			SequenceIndex: seq,
			ChunkTotal:    10,
			Text:          text,
			CharLength:    len([]rune(text)),
		},
		Embedding: vec,
	}
}

func TestProvider_CreateConflict(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	err := p.Create(ctx, "kb")
	require.True(t, errors.Is(err, errs.ErrConflict))
}

func TestProvider_OpenMissing(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	_, err := p.Open(ctx, "nope")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestProvider_DropThenOpenFails(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	require.NoError(t, p.Drop(ctx, "kb"))
	_, err := p.Open(ctx, "kb")
	require.True(t, errors.Is(err, errs.ErrNotFound))
	require.True(t, errors.Is(p.Drop(ctx, "kb"), errs.ErrNotFound))
}

func TestProvider_ListReportsCounts(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "beta"))
	require.NoError(t, p.Create(ctx, "alpha"))

	idx, err := p.Open(ctx, "alpha")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("doc", 0, "hello", []float32{1, 0, 0}),
		entry("doc", 1, "world", []float32{0, 1, 0}),
	}))

	infos, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "alpha", infos[0].Name)
	require.Equal(t, 2, infos[0].ChunkCount)
	require.Equal(t, "beta", infos[1].Name)
	require.Equal(t, 0, infos[1].ChunkCount)
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "exact", []float32{1, 0, 0}),
		entry("a", 1, "close", []float32{0.9, 0.1, 0}),
		entry("b", 0, "far", []float32{0, 0, 1}),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "exact", hits[0].Chunk.Text)
	require.Equal(t, "close", hits[1].Chunk.Text)
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TiesBrokenByChunkID(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)

	// same vector twice: identical scores, order decided by id
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("zz", 0, "second", []float32{1, 0, 0}),
		entry("aa", 0, "first", []float32{1, 0, 0}),
	}))
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, "aa:0", hits[0].Chunk.ChunkID)
	require.Equal(t, "zz:0", hits[1].Chunk.ChunkID)
}

func TestSearch_ClampsKAndRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)

	_, err = idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.True(t, errors.Is(err, errs.ErrEmptyIndex))

	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "only", []float32{1, 0, 0}),
	}))
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 100)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "only", []float32{1, 0, 0}),
	}))

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.True(t, errors.Is(err, errs.ErrDimensionMismatch))

	err = idx.Upsert(ctx, []model.IndexEntry{entry("a", 1, "bad", []float32{1, 0})})
	require.True(t, errors.Is(err, errs.ErrDimensionMismatch))
}

func TestUpsert_IdempotentByChunkID(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "old text", []float32{1, 0, 0}),
	}))
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "new text", []float32{0, 1, 0}),
	}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	hits, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, "new text", hits[0].Chunk.Text)
}

func TestNeighbors_WindowAroundHit(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)

	var entries []model.IndexEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, entry("doc", i, "chunk", []float32{1, 0, 0}))
	}
	entries = append(entries, entry("other", 0, "unrelated", []float32{0, 1, 0}))
	require.NoError(t, idx.Upsert(ctx, entries))

	got, err := idx.Neighbors(ctx, "doc", 2, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 1, got[0].SequenceIndex)
	require.Equal(t, 2, got[1].SequenceIndex)
	require.Equal(t, 3, got[2].SequenceIndex)

	// window truncated at the document start
	got, err = idx.Neighbors(ctx, "doc", 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 0, got[0].SequenceIndex)

	got, err = idx.Neighbors(ctx, "missing", 0, 1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDeleteAll_EmptiesButKeepsDatabase(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("a", 0, "gone soon", []float32{1, 0, 0}),
	}))

	require.NoError(t, idx.DeleteAll(ctx))
	count, err := idx.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.True(t, errors.Is(err, errs.ErrEmptyIndex))

	infos, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := NewProvider(map[string]interface{}{"dir": dir}, 3)
	require.NoError(t, err)
	require.NoError(t, p.Create(ctx, "kb"))
	idx, err := p.Open(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		entry("doc", 0, "persisted", []float32{1, 0, 0}),
	}))

	// fresh provider instance over the same directory
	p2, err := NewProvider(map[string]interface{}{"dir": dir}, 3)
	require.NoError(t, err)
	idx2, err := p2.Open(ctx, "kb")
	require.NoError(t, err)
	hits, err := idx2.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, "persisted", hits[0].Chunk.Text)
}

func TestOpen_RejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := NewProvider(map[string]interface{}{"dir": dir}, 3)
	require.NoError(t, err)
	require.NoError(t, p.Create(ctx, "kb"))

	p2, err := NewProvider(map[string]interface{}{"dir": dir}, 4)
	require.NoError(t, err)
	_, err = p2.Open(ctx, "kb")
	require.True(t, errors.Is(err, errs.ErrDimensionMismatch))
}
