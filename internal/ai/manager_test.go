package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

type scriptedGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func testChunks() []model.Chunk {
	return []model.Chunk{
		{ChunkID: "doc:0", SourceID: "doc", Filename: "guide.pdf", FileType: model.FileTypePDF, SequenceIndex: 0, ChunkTotal: 2, Text: "The refund window is 30 days."},
		{ChunkID: "doc:1", SourceID: "doc", Filename: "guide.pdf", FileType: model.FileTypePDF, SequenceIndex: 1, ChunkTotal: 2, Text: "Shipping is free above 50 euro."},
	}
}

func TestAnswer_GroundedPromptCarriesSourceMarkers(t *testing.T) {
	gen := &scriptedGenerator{reply: "Refunds are accepted within 30 days."}
	m := NewManager(gen, nil, ManagerConfig{})

	text, found, err := m.Answer(context.Background(), "What is the refund window?", testChunks())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Refunds are accepted within 30 days.", text)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	require.Contains(t, prompt, "[Source 1] (file: guide.pdf, chunk 1/2)")
	require.Contains(t, prompt, "[Source 2] (file: guide.pdf, chunk 2/2)")
	require.Contains(t, prompt, "The refund window is 30 days.")
	require.Contains(t, prompt, "What is the refund window?")
}

func TestAnswer_RefusalBecomesNormalAnswer(t *testing.T) {
	gen := &scriptedGenerator{reply: "NOT_IN_CONTEXT"}
	m := NewManager(gen, nil, ManagerConfig{})

	text, found, err := m.Answer(context.Background(), "Who won the 1966 world cup?", testChunks())
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, NoAnswerText, text)
}

func TestAnswer_TransportFailure(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("connection refused")}
	m := NewManager(gen, nil, ManagerConfig{})

	_, _, err := m.Answer(context.Background(), "anything", testChunks())
	require.True(t, errors.Is(err, errs.ErrGenerationProvider))
}

func TestSuggestQuestions_ParsesBulletList(t *testing.T) {
	gen := &scriptedGenerator{reply: strings.Join([]string{
		"Here are some ideas:",
		"- How long does a refund take?",
		"* Is shipping free everywhere?",
		"1. What items are excluded?",
		"",
	}, "\n")}
	m := NewManager(gen, nil, ManagerConfig{MaxRelated: 5})

	questions, err := m.SuggestQuestions(context.Background(), "q", "a", testChunks())
	require.NoError(t, err)
	require.Equal(t, []string{
		"How long does a refund take?",
		"Is shipping free everywhere?",
		"What items are excluded?",
	}, questions)
}

func TestSuggestQuestions_FailurePropagates(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("quota exceeded")}
	m := NewManager(gen, nil, ManagerConfig{})

	_, err := m.SuggestQuestions(context.Background(), "q", "a", testChunks())
	require.True(t, errors.Is(err, errs.ErrGenerationProvider))
}

func TestParseQuestionList_DedupesAndCaps(t *testing.T) {
	output := strings.Join([]string{
		"- What is X?",
		"- what is x?",
		"- What is Y?",
		"- What is Z?",
		"- What is W?",
	}, "\n")
	questions := parseQuestionList(output, 3)
	require.Equal(t, []string{"What is X?", "What is Y?", "What is Z?"}, questions)
}

func TestParseQuestionList_IgnoresProse(t *testing.T) {
	output := "Sure! Here are the questions you asked for.\nNo list today."
	require.Empty(t, parseQuestionList(output, 3))
}

func TestNewManager_ClampsMaxRelated(t *testing.T) {
	m := NewManager(&scriptedGenerator{}, nil, ManagerConfig{MaxRelated: 99})
	require.Equal(t, 5, m.cfg.MaxRelated)
	m = NewManager(&scriptedGenerator{}, nil, ManagerConfig{})
	require.Equal(t, 3, m.cfg.MaxRelated)
}
