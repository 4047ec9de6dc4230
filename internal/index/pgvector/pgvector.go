// Package pgvector backs the vector index with postgres + pgvector.
// Each named database is a row partition of a shared chunks table;
// transactions give searches the pre- or post-mutation view, never a
// partial one.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
	"github.com/mtrtrdev/localQA/internal/pkg/dbutil"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

var chunkColumns = []string{
	"chunk_id", "source_id", "filename", "file_type",
	"sequence_index", "chunk_total", "char_length", "content", "embedding",
}

type Provider struct {
	db        *sql.DB
	dimension int
}

func NewProvider(db *sql.DB, dimension int) *Provider {
	return &Provider{db: db, dimension: dimension}
}

func (p *Provider) Create(ctx context.Context, name string) error {
	const query = `INSERT INTO qa_databases (name, created_at) VALUES ($1, $2)`
	_, err := p.db.ExecContext(ctx, query, name, time.Now().Unix())
	if dbutil.IsConflict(err) {
		return fmt.Errorf("%w: database %q already exists", errs.ErrConflict, name)
	}
	return err
}

func (p *Provider) Open(ctx context.Context, name string) (index.Index, error) {
	const query = `SELECT created_at FROM qa_databases WHERE name = $1`
	var createdAt int64
	if err := p.db.QueryRowContext(ctx, query, name).Scan(&createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
		}
		return nil, err
	}
	return &Index{db: p.db, name: name, dimension: p.dimension}, nil
}

func (p *Provider) List(ctx context.Context) ([]model.DatabaseInfo, error) {
	const query = `
		SELECT d.name, d.created_at, COUNT(c.chunk_id)
		FROM qa_databases d
		LEFT JOIN qa_chunks c ON c.db_name = d.name
		GROUP BY d.name, d.created_at
		ORDER BY d.name
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var infos []model.DatabaseInfo
	for rows.Next() {
		var info model.DatabaseInfo
		if err := rows.Scan(&info.Name, &info.CreatedAt, &info.ChunkCount); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (p *Provider) Drop(ctx context.Context, name string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM qa_databases WHERE name = $1`, name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM qa_chunks WHERE db_name = $1`, name); err != nil {
		return err
	}
	return tx.Commit()
}

type Index struct {
	db        *sql.DB
	name      string
	dimension int
}

func (x *Index) Upsert(ctx context.Context, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Embedding) != x.dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				errs.ErrDimensionMismatch, e.ChunkID, len(e.Embedding), x.dimension)
		}
	}
	const query = `
		INSERT INTO qa_chunks
			(db_name, chunk_id, source_id, filename, file_type, sequence_index, chunk_total, char_length, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (db_name, chunk_id) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			filename = EXCLUDED.filename,
			file_type = EXCLUDED.file_type,
			sequence_index = EXCLUDED.sequence_index,
			chunk_total = EXCLUDED.chunk_total,
			char_length = EXCLUDED.char_length,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			x.name, e.ChunkID, e.SourceID, e.Filename, string(e.FileType),
			e.SequenceIndex, e.ChunkTotal, e.CharLength, e.Text,
			pgvector.NewVector(e.Embedding),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dims, index has %d",
			errs.ErrDimensionMismatch, len(vector), x.dimension)
	}
	count, err := x.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: database %q", errs.ErrEmptyIndex, x.name)
	}
	if k <= 0 {
		k = 1
	}
	if k > count {
		k = count
	}
	// <=> is cosine distance; similarity = 1 - distance
	const query = `
		SELECT chunk_id, source_id, filename, file_type, sequence_index, chunk_total, char_length, content,
			1 - (embedding <=> $2) AS score
		FROM qa_chunks
		WHERE db_name = $1
		ORDER BY embedding <=> $2 ASC, chunk_id ASC
		LIMIT $3
	`
	rows, err := x.db.QueryContext(ctx, query, x.name, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ScoredChunk
	for rows.Next() {
		var sc model.ScoredChunk
		var fileType string
		if err := rows.Scan(
			&sc.Chunk.ChunkID, &sc.Chunk.SourceID, &sc.Chunk.Filename, &fileType,
			&sc.Chunk.SequenceIndex, &sc.Chunk.ChunkTotal, &sc.Chunk.CharLength, &sc.Chunk.Text,
			&sc.Score,
		); err != nil {
			return nil, err
		}
		sc.Chunk.FileType = model.FileType(fileType)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (x *Index) Neighbors(ctx context.Context, sourceID string, seq, window int) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"db_name":           x.name,
		"source_id":         sourceID,
		"sequence_index >=": seq - window,
		"sequence_index <=": seq + window,
		"_orderby":          "sequence_index asc",
	}
	cols := chunkColumns[:len(chunkColumns)-1] // everything but the vector
	sqlStr, args, err := builder.BuildSelect("qa_chunks", where, cols)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := x.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var ch model.Chunk
		var fileType string
		if err := rows.Scan(
			&ch.ChunkID, &ch.SourceID, &ch.Filename, &fileType,
			&ch.SequenceIndex, &ch.ChunkTotal, &ch.CharLength, &ch.Text,
		); err != nil {
			return nil, err
		}
		ch.FileType = model.FileType(fileType)
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (x *Index) DeleteAll(ctx context.Context) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM qa_chunks WHERE db_name = $1`, x.name)
	return err
}

func (x *Index) ListEntries(ctx context.Context) ([]model.IndexEntry, error) {
	where := map[string]interface{}{
		"db_name":  x.name,
		"_orderby": "chunk_id asc",
	}
	sqlStr, args, err := builder.BuildSelect("qa_chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := x.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.IndexEntry
	for rows.Next() {
		var e model.IndexEntry
		var fileType string
		var embedding pgvector.Vector
		if err := rows.Scan(
			&e.ChunkID, &e.SourceID, &e.Filename, &fileType,
			&e.SequenceIndex, &e.ChunkTotal, &e.CharLength, &e.Text,
			&embedding,
		); err != nil {
			return nil, err
		}
		e.FileType = model.FileType(fileType)
		e.Embedding = embedding.Slice()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (x *Index) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM qa_chunks WHERE db_name = $1`
	var count int
	if err := x.db.QueryRowContext(ctx, query, x.name).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
