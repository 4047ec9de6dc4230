package model

import "strconv"

// Chunk is a contiguous, overlapping slice of a source document. It is the
// unit of embedding and retrieval. SequenceIndex is unique only within a
// (database, source) pair.
type Chunk struct {
	ChunkID       string   `json:"chunk_id"`
	SourceID      string   `json:"source_id"`
	Filename      string   `json:"filename"`
	FileType      FileType `json:"file_type"`
	SequenceIndex int      `json:"sequence_index"`
	ChunkTotal    int      `json:"chunk_total"`
	Text          string   `json:"text"`
	CharLength    int      `json:"char_length"`
}

// ChunkID derives the per-database unique chunk identifier.
func ChunkID(sourceID string, seq int) string {
	return sourceID + ":" + strconv.Itoa(seq)
}

// IndexEntry is a chunk together with its embedding vector. Chunk text is
// co-located with the vector so a single record serves both retrieval and
// prompt construction.
type IndexEntry struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// ScoredChunk is a retrieval hit: a chunk plus its similarity to the query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Answer is the outcome of one grounded QA round. CitedChunks is exactly
// the ordered context handed to the generation model. Found is false when
// the model declined because the context did not cover the question; that
// is an expected outcome, not an error.
type Answer struct {
	Text             string   `json:"text"`
	CitedChunks      []Chunk  `json:"cited_chunks"`
	RelatedQuestions []string `json:"related_questions"`
	Found            bool     `json:"found"`
}

// DatabaseInfo is the listing view of a named database.
type DatabaseInfo struct {
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  int64  `json:"created_at"`
}
