package chunker

import (
	"fmt"

	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

// Piece is one window of the source text at its position in the sequence.
type Piece struct {
	Text          string
	SequenceIndex int
}

// Chunker slides a fixed-width character window over text. Consecutive
// chunks share exactly `overlap` characters except at the document tail.
// Splitting is pure and deterministic, which re-indexing relies on.
type Chunker struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", errs.ErrConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", errs.ErrConfig, chunkSize, overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split cuts text into ordered overlapping pieces. The final piece may be
// shorter than the chunk size; empty input yields no pieces.
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.overlap
	pieces := make([]Piece, 0, (len(runes)+step-1)/step)
	seq := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, Piece{Text: string(runes[start:end]), SequenceIndex: seq})
		if end == len(runes) {
			break
		}
		seq++
	}
	return pieces
}

func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

func (c *Chunker) Overlap() int {
	return c.overlap
}
