// Package job holds the background maintenance jobs.
package job

import (
	"context"
	"time"

	"github.com/mtrtrdev/localQA/internal/repo"
)

// EmbeddingCacheCleanupJob expires old rows of the persistent embedding
// cache so a model change does not leave stale vectors around forever.
type EmbeddingCacheCleanupJob struct {
	cache      *repo.EmbeddingCacheRepo
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(cache *repo.EmbeddingCacheRepo, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{cache: cache, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	_, err := j.cache.DeleteBefore(ctx, cutoff)
	return err
}
