package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mtrtrdev/localQA/internal/ai"
)

type countingEmbedder struct {
	calls int
	texts [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts)
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 0})
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }
func (c *countingEmbedder) Dimension() int    { return 2 }

func TestLruEmbedder_SecondCallServedFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)

	ctx := context.Background()
	first, err := e.EmbedBatch(ctx, []string{"aa", "bbb"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)
	second, err := e.EmbedBatch(ctx, []string{"aa", "bbb"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruEmbedder_OnlyMissesForwarded(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)

	ctx := context.Background()
	_, err := e.EmbedBatch(ctx, []string{"aa"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)

	out, err := e.EmbedBatch(ctx, []string{"aa", "cccc"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{2, 0}, out[0])
	require.Equal(t, []float32{4, 0}, out[1])
	require.Equal(t, 2, inner.calls)
	require.Equal(t, []string{"cccc"}, inner.texts[1])
}

func TestLruEmbedder_TaskTypesCachedSeparately(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)

	ctx := context.Background()
	_, err := e.EmbedBatch(ctx, []string{"aa"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)
	_, err = e.EmbedBatch(ctx, []string{"aa"}, ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLruEmbedder_CachedVectorIsIsolated(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)

	ctx := context.Background()
	first, err := e.EmbedBatch(ctx, []string{"aa"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)
	first[0][0] = 999

	second, err := e.EmbedBatch(ctx, []string{"aa"}, ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, float32(2), second[0][0])
}

func TestWrapLruCacheToEmbedder_DisabledPassthrough(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 0, time.Hour))
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 10, 0))
}
