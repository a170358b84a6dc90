package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/coderTtxi12/model-rag/internal/store"
)

// Grader prompts. Each grader returns a structured binary judgment; the
// yes/no label is compared case-insensitively, never a confidence score.
const (
	relevanceGraderSystem = `You are a grader assessing the relevance of a retrieved document to a user question. If the document contains keywords or semantic meaning related to the question, grade it as relevant. Give a binary score 'yes' or 'no' to indicate whether the document is relevant to the question.`

	groundednessGraderSystem = `You are a grader assessing whether an answer is grounded in / supported by a set of retrieved facts. Give a binary score 'yes' or 'no'. 'Yes' means the answer is grounded in / supported by the set of facts.`

	answerGraderSystem = `You are a grader assessing whether an answer addresses / resolves a question. Give a binary score 'yes' or 'no'. 'Yes' means the answer resolves the question.`

	generationSystem = `You are an assistant for question-answering. Only use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know. Add lots of emojis in your answer so everything is friendly readable.`
)

// binaryGrade is the structured output of every grading call.
type binaryGrade struct {
	BinaryScore string `json:"binary_score"` // "yes" or "no"
}

// LLM implements Grader and Generator on top of Genkit.
type LLM struct {
	g         *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// NewLLM creates the Genkit-backed graders and generator. modelName is the
// fully qualified model identifier for the active provider plugin.
func NewLLM(g *genkit.Genkit, modelName string, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{g: g, modelName: modelName, logger: logger}
}

// GradeRelevance judges whether one passage is relevant to the question.
// Called once per passage, no batching.
func (l *LLM) GradeRelevance(ctx context.Context, question, passage string) (bool, error) {
	prompt := fmt.Sprintf("Retrieved document:\n%s\n\nUser question: %s", passage, question)
	return l.binaryJudgment(ctx, relevanceGraderSystem, prompt)
}

// GradeGroundedness judges whether the answer's claims are supported by the
// retained passages.
func (l *LLM) GradeGroundedness(ctx context.Context, passages []store.Passage, answer string) (bool, error) {
	prompt := fmt.Sprintf("Set of facts:\n%s\n\nLLM generation: %s", formatContext(passages), answer)
	return l.binaryJudgment(ctx, groundednessGraderSystem, prompt)
}

// GradeAnswer judges whether the answer actually addresses the question,
// independent of groundedness.
func (l *LLM) GradeAnswer(ctx context.Context, question, answer string) (bool, error) {
	prompt := fmt.Sprintf("User question: %s\n\nLLM generation: %s", question, answer)
	return l.binaryJudgment(ctx, answerGraderSystem, prompt)
}

// Generate produces an answer from the question and the retained passages.
// All passages go into one prompt; there is no truncation or token
// budgeting, so a context overflow surfaces as the provider's error.
func (l *LLM) Generate(ctx context.Context, question string, passages []store.Passage) (string, error) {
	prompt := fmt.Sprintf("Question: %s\nContext: %s\nAnswer:", question, formatContext(passages))

	resp, err := genkit.Generate(ctx, l.g,
		ai.WithModelName(l.modelName),
		ai.WithSystem(generationSystem),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	l.logger.Debug("generated answer", "length", len(answer))
	return answer, nil
}

// binaryJudgment runs one grading call and interprets its structured output.
func (l *LLM) binaryJudgment(ctx context.Context, system, prompt string) (bool, error) {
	resp, err := genkit.Generate(ctx, l.g,
		ai.WithModelName(l.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithOutputType(binaryGrade{}),
	)
	if err != nil {
		return false, fmt.Errorf("grading: %w", err)
	}

	var grade binaryGrade
	if err := resp.Output(&grade); err != nil {
		return false, fmt.Errorf("parsing grade: %w", err)
	}

	return strings.EqualFold(strings.TrimSpace(grade.BinaryScore), "yes"), nil
}

// formatContext concatenates passage contents into one context block.
func formatContext(passages []store.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n\n")
}
