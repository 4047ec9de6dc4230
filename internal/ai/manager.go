package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

// notInContextMarker is the sentinel the answer prompt asks the model to
// emit when the supplied context does not cover the question.
const notInContextMarker = "NOT_IN_CONTEXT"

// NoAnswerText is returned as the answer body when the model declines.
// It is a normal outcome for questions the corpus simply does not cover.
const NoAnswerText = "The answer was not found in the provided documents."

type ManagerConfig struct {
	Timeout    int
	MaxRelated int
}

// Manager owns the prompt templates for grounded answering and follow-up
// question suggestion, and fronts the embedding client.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.MaxRelated <= 0 {
		cfg.MaxRelated = 3
	}
	if cfg.MaxRelated > 5 {
		cfg.MaxRelated = 5
	}
	return &Manager{generator: generator, embedder: embedder, cfg: cfg}
}

func (m *Manager) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", errs.ErrEmbeddingProvider)
	}
	return m.embedder.EmbedBatch(ctx, texts, TaskRetrievalDocument)
}

func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", errs.ErrEmbeddingProvider)
	}
	vectors, err := m.embedder.EmbedBatch(ctx, []string{text}, TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) Dimension() int {
	if m.embedder == nil {
		return 0
	}
	return m.embedder.Dimension()
}

// Answer runs a single grounded generation call. The ordered context chunks
// become the prompt verbatim, each preceded by a source attribution marker.
// found is false when the model signals the context is insufficient.
func (m *Manager) Answer(ctx context.Context, question string, chunks []model.Chunk) (string, bool, error) {
	if m.generator == nil {
		return "", false, fmt.Errorf("%w: generator not configured", errs.ErrGenerationProvider)
	}
	prompt := fmt.Sprintf(`You are a document question answering assistant.
Answer the question using ONLY the context below.
- If the context does not contain the information needed, reply with exactly: %s
- Be concise and factual.
- Answer in the same language as the question.

CONTEXT:
%s

QUESTION:
%s`, notInContextMarker, buildContext(chunks), question)

	text, err := m.generateText(ctx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", errs.ErrGenerationProvider, err)
	}
	if strings.Contains(text, notInContextMarker) {
		return NoAnswerText, false, nil
	}
	return text, true, nil
}

// SuggestQuestions derives follow-up questions from the answered round.
func (m *Manager) SuggestQuestions(ctx context.Context, question, answerText string, chunks []model.Chunk) ([]string, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("%w: generator not configured", errs.ErrGenerationProvider)
	}
	prompt := fmt.Sprintf(`You are a document question answering assistant.
Based on the context, the original question and its answer, suggest %d related follow-up questions.
- Each question must be answerable from the context.
- Each question must take a different angle than the original one.
- Be specific and clear.
- Use the same language as the original question.
- Output one question per line as a bullet list ("- ...").

CONTEXT:
%s

ORIGINAL QUESTION:
%s

ANSWER:
%s`, m.cfg.MaxRelated, buildContext(chunks), question, answerText)

	text, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrGenerationProvider, err)
	}
	return parseQuestionList(text, m.cfg.MaxRelated), nil
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

// buildContext renders ordered chunks with per-chunk source attribution.
func buildContext(chunks []model.Chunk) string {
	var sb strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source %d] (file: %s, chunk %d/%d)\n", i+1, ch.Filename, ch.SequenceIndex+1, ch.ChunkTotal)
		sb.WriteString(ch.Text)
	}
	return sb.String()
}

// parseQuestionList extracts bullet or numbered list items, dropping
// empties and case-insensitive duplicates, capped at max entries.
func parseQuestionList(output string, max int) []string {
	var questions []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "*"):
			line = line[1:]
		case strings.HasPrefix(line, "• "):
			line = strings.TrimPrefix(line, "• ")
		case line[0] >= '0' && line[0] <= '9':
			line = strings.TrimLeft(line, "0123456789")
			line = strings.TrimPrefix(line, ".")
			line = strings.TrimPrefix(line, ")")
		default:
			// prose line, not a list item
			continue
		}
		q := strings.TrimSpace(line)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		questions = append(questions, q)
		if len(questions) >= max {
			break
		}
	}
	return questions
}
