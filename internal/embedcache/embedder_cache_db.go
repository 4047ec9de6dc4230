package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mtrtrdev/localQA/internal/ai"
	"github.com/mtrtrdev/localQA/internal/model"
	"github.com/mtrtrdev/localQA/internal/repo"
)

// WrapDBCacheToEmbedder persists embeddings across restarts. Like the LRU
// layer it only forwards cache misses, in a single provider batch.
func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	modelName := strings.TrimSpace(d.next.ModelName())
	if modelName == "" {
		modelName = "unknown"
	}
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	dimension := d.next.Dimension()
	for i, text := range texts {
		values, ok, err := d.repo.Get(ctx, modelName, taskType, contentHash(text), dimension)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = values
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("task_type", taskType), zap.Int("texts", len(texts)))
		return out, nil
	}
	vectors, err := d.next.EmbedBatch(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: contentHash(missTexts[j]),
			Dimension:   len(vec),
			Embedding:   vec,
			Ctime:       time.Now().Unix(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}

func (d *dbEmbedder) Dimension() int {
	if d == nil || d.next == nil {
		return 0
	}
	return d.next.Dimension()
}

func contentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
