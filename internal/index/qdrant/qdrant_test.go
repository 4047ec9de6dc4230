package qdrant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

func openTestProvider(t *testing.T) *Provider {
	t.Helper()
	host := os.Getenv("TEST_QDRANT_HOST")
	if host == "" {
		t.Skip("TEST_QDRANT_HOST not set, skip qdrant tests")
	}
	p, err := NewProvider(map[string]interface{}{
		"url":               host,
		"collection_prefix": "qdranttest_",
	}, 3)
	require.NoError(t, err)
	return p
}

func newTestDB(t *testing.T, p *Provider) string {
	t.Helper()
	ctx := context.Background()
	name := fmt.Sprintf("db%d", time.Now().UnixNano())
	require.NoError(t, p.Create(ctx, name))
	t.Cleanup(func() { _ = p.Drop(ctx, name) })
	return name
}

func testEntry(sourceID string, seq int, vec []float32) model.IndexEntry {
	return model.IndexEntry{
		Chunk: model.Chunk{
			ChunkID:       model.ChunkID(sourceID, seq),
			SourceID:      sourceID,
			Filename:      "doc.txt",
			FileType:      model.FileTypeTXT,
			SequenceIndex: seq,
			ChunkTotal:    2,
			Text:          fmt.Sprintf("chunk %d", seq),
			CharLength:    7,
		},
		Embedding: vec,
	}
}

func TestQdrantIndex_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	p := openTestProvider(t)
	name := newTestDB(t, p)

	idx, err := p.Open(ctx, name)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		testEntry("src", 0, []float32{1, 0, 0}),
		testEntry("src", 1, []float32{0, 1, 0}),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "src:0", hits[0].Chunk.ChunkID)

	neighbors, err := idx.Neighbors(ctx, "src", 0, 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
}

func TestQdrantIndex_DeleteAllKeepsDatabase(t *testing.T) {
	ctx := context.Background()
	p := openTestProvider(t)
	name := newTestDB(t, p)

	idx, err := p.Open(ctx, name)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []model.IndexEntry{
		testEntry("src", 0, []float32{1, 0, 0}),
	}))

	require.NoError(t, idx.DeleteAll(ctx))

	// the database must survive clearing
	again, err := p.Open(ctx, name)
	require.NoError(t, err)
	count, err := again.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	_, err = again.Search(ctx, []float32{1, 0, 0}, 1)
	require.True(t, errors.Is(err, errs.ErrEmptyIndex))
}
