package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mtrtrdev/localQA/internal/ai"
	"github.com/mtrtrdev/localQA/internal/chunker"
	"github.com/mtrtrdev/localQA/internal/database"
	"github.com/mtrtrdev/localQA/internal/filestore"
	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
	"github.com/mtrtrdev/localQA/internal/stats"
)

type QAServiceConfig struct {
	TopK          int
	ContextWindow int
	BatchSize     int
}

// QAService ties the pipeline together: documents in, grounded answers out.
type QAService struct {
	databases *database.Manager
	manager   *ai.Manager
	splitter  *chunker.Chunker
	archive   filestore.Store // nil disables document archiving
	cfg       QAServiceConfig
}

func NewQAService(databases *database.Manager, manager *ai.Manager, splitter *chunker.Chunker, archive filestore.Store, cfg QAServiceConfig) *QAService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ContextWindow < 0 {
		cfg.ContextWindow = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &QAService{
		databases: databases,
		manager:   manager,
		splitter:  splitter,
		archive:   archive,
		cfg:       cfg,
	}
}

type IngestResult struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
	CharCount  int    `json:"char_count"`
}

// Ingest chunks, embeds and indexes one document. Embedding happens in
// batches with a cancellation check in between; a canceled ingest leaves
// the already-upserted chunks behind, and re-ingesting the same source id
// overwrites them.
func (s *QAService) Ingest(ctx context.Context, dbName string, doc model.Document) (*IngestResult, error) {
	if !doc.FileType.Valid() {
		return nil, fmt.Errorf("%w: unsupported file type %q", errs.ErrInvalid, doc.FileType)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: document text is empty", errs.ErrInvalid)
	}
	if doc.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", errs.ErrInvalid)
	}
	if doc.SourceID == "" {
		doc.SourceID = newSourceID()
	}
	idx, err := s.databases.Open(ctx, dbName)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("database", dbName),
		zap.String("source_id", doc.SourceID),
		zap.String("filename", doc.Filename),
	)

	pieces := s.splitter.Split(doc.Text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", errs.ErrInvalid)
	}
	s.archiveDocument(ctx, dbName, doc, logger)

	chunks := make([]model.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, model.Chunk{
			ChunkID:       model.ChunkID(doc.SourceID, piece.SequenceIndex),
			SourceID:      doc.SourceID,
			Filename:      doc.Filename,
			FileType:      doc.FileType,
			SequenceIndex: piece.SequenceIndex,
			ChunkTotal:    len(pieces),
			Text:          piece.Text,
			CharLength:    len([]rune(piece.Text)),
		})
	}
	if err := s.embedAndUpsert(ctx, idx, chunks); err != nil {
		return nil, err
	}
	logger.Info("document ingested", zap.Int("chunks", len(chunks)))
	return &IngestResult{
		SourceID:   doc.SourceID,
		ChunkCount: len(chunks),
		CharCount:  len([]rune(doc.Text)),
	}, nil
}

func (s *QAService) embedAndUpsert(ctx context.Context, idx index.Index, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, 0, len(batch))
		for _, ch := range batch {
			texts = append(texts, ch.Text)
		}
		vectors, err := s.manager.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		entries := make([]model.IndexEntry, 0, len(batch))
		for i, ch := range batch {
			entries = append(entries, model.IndexEntry{Chunk: ch, Embedding: vectors[i]})
		}
		if err := idx.Upsert(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

// archiveDocument stores the raw text for later retrieval. Archiving is
// best effort; the index stays authoritative.
func (s *QAService) archiveDocument(ctx context.Context, dbName string, doc model.Document, logger *zap.Logger) {
	if s.archive == nil {
		return
	}
	key := filestore.Key(dbName, doc.SourceID)
	reader := strings.NewReader(doc.Text)
	if err := s.archive.Save(ctx, key, reader, int64(reader.Len())); err != nil {
		logger.Warn("failed to archive document text", zap.String("key", key), zap.Error(err))
	}
}

// Ask answers a question from one database's content. A topK of zero or
// less falls back to the configured default. Related question generation
// is best effort and never fails the request.
func (s *QAService) Ask(ctx context.Context, dbName, question string, topK int) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", errs.ErrInvalid)
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	idx, err := s.databases.Open(ctx, dbName)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("database", dbName))

	queryVec, err := s.manager.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := idx.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, err
	}
	expanded, err := ExpandContext(ctx, idx, hits, s.cfg.ContextWindow)
	if err != nil {
		return nil, err
	}
	text, found, err := s.manager.Answer(ctx, question, expanded)
	if err != nil {
		return nil, err
	}
	related, err := s.manager.SuggestQuestions(ctx, question, text, expanded)
	if err != nil {
		logger.Warn("related question generation failed", zap.Error(err))
		related = []string{}
	}
	logger.Info("question answered",
		zap.Int("hits", len(hits)),
		zap.Int("context_chunks", len(expanded)),
		zap.Bool("found", found))
	return &model.Answer{
		Text:             text,
		CitedChunks:      expanded,
		RelatedQuestions: related,
		Found:            found,
	}, nil
}

// DeleteDatabase drops a database together with its archived document
// texts. Archive keys are enumerated first because the index is gone
// once the drop succeeds.
func (s *QAService) DeleteDatabase(ctx context.Context, dbName string) error {
	keys := s.archivedKeys(ctx, dbName)
	if err := s.databases.Delete(ctx, dbName); err != nil {
		return err
	}
	s.removeArchived(ctx, dbName, keys)
	return nil
}

// ClearDatabase removes every chunk and archived text but keeps the
// database itself.
func (s *QAService) ClearDatabase(ctx context.Context, dbName string) error {
	keys := s.archivedKeys(ctx, dbName)
	if err := s.databases.Clear(ctx, dbName); err != nil {
		return err
	}
	s.removeArchived(ctx, dbName, keys)
	return nil
}

func (s *QAService) archivedKeys(ctx context.Context, dbName string) []string {
	if s.archive == nil {
		return nil
	}
	idx, err := s.databases.Open(ctx, dbName)
	if err != nil {
		return nil
	}
	entries, err := idx.ListEntries(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to enumerate archived documents",
			zap.String("database", dbName), zap.Error(err))
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	for _, e := range entries {
		if seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		keys = append(keys, filestore.Key(dbName, e.SourceID))
	}
	return keys
}

// removeArchived is best effort, like archiving itself; a leftover file
// is logged, never surfaced.
func (s *QAService) removeArchived(ctx context.Context, dbName string, keys []string) {
	for _, key := range keys {
		if err := s.archive.Remove(ctx, key); err != nil {
			logutil.GetLogger(ctx).Warn("failed to remove archived document",
				zap.String("database", dbName), zap.String("key", key), zap.Error(err))
		}
	}
}

// Reindex re-embeds every stored chunk text and upserts in place. Used
// after an embedding model change; chunk ids are stable so the operation
// is idempotent.
func (s *QAService) Reindex(ctx context.Context, dbName string) (int, error) {
	idx, err := s.databases.Open(ctx, dbName)
	if err != nil {
		return 0, err
	}
	entries, err := idx.ListEntries(ctx)
	if err != nil {
		return 0, err
	}
	chunks := make([]model.Chunk, 0, len(entries))
	for _, e := range entries {
		chunks = append(chunks, e.Chunk)
	}
	if err := s.embedAndUpsert(ctx, idx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Stats aggregates the content report of one database.
func (s *QAService) Stats(ctx context.Context, dbName string) (*stats.Report, error) {
	idx, err := s.databases.Open(ctx, dbName)
	if err != nil {
		return nil, err
	}
	return stats.Analyze(ctx, idx)
}
