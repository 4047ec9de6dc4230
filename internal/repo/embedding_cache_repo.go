package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/mtrtrdev/localQA/internal/model"
)

// EmbeddingCacheRepo memoizes provider embedding calls across restarts.
// Rows are keyed on (model, task, content hash, dimension) so a model
// reconfiguration that changes the vector width misses instead of
// serving vectors the index would reject.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string, dimension int) ([]float32, bool, error) {
	const query = `
		SELECT embedding
		FROM embedding_cache
		WHERE model_name = $1 AND task_type = $2 AND content_hash = $3 AND dimension = $4
	`
	row := r.db.QueryRowContext(ctx, query, modelName, taskType, contentHash, dimension)
	var embedding pgvector.Vector
	if err := row.Scan(&embedding); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	if item.Dimension != len(item.Embedding) {
		return fmt.Errorf("embedding cache item declares %d dims but carries %d values",
			item.Dimension, len(item.Embedding))
	}
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, dimension, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model_name, task_type, content_hash, dimension) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		item.Dimension,
		pgvector.NewVector(item.Embedding),
		item.Ctime,
	)
	return err
}

// DeleteBefore drops rows cached before the cutoff and reports how many.
func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM embedding_cache WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
