package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coderTtxi12/model-rag/internal/store"
)

// ErrRetriesExhausted indicates generation kept failing validation until the
// attempt bound was reached.
var ErrRetriesExhausted = errors.New("generation retries exhausted")

// Retriever produces candidate passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]store.Passage, error)
}

// Grader provides the three binary judgments of the workflow.
type Grader interface {
	GradeRelevance(ctx context.Context, question, passage string) (bool, error)
	GradeGroundedness(ctx context.Context, passages []store.Passage, answer string) (bool, error)
	GradeAnswer(ctx context.Context, question, answer string) (bool, error)
}

// Generator produces an answer from a question and retained passages.
type Generator interface {
	Generate(ctx context.Context, question string, passages []store.Passage) (string, error)
}

// State is the record threaded through the workflow. Each stage overwrites
// the fields it owns: retrieval and filtering replace Passages wholesale,
// generation overwrites Answer on every attempt.
type State struct {
	Question     string
	Passages     []store.Passage
	ResultsFound bool
	Answer       string
}

// Outcome is the terminal state of a workflow run.
type Outcome int

const (
	// OutcomeAnswered means generation passed both validation grades.
	OutcomeAnswered Outcome = iota

	// OutcomeNoResults means no retrieved passage was graded relevant;
	// the generator was never called.
	OutcomeNoResults
)

// Result is what a completed workflow run returns.
type Result struct {
	Outcome Outcome
	Answer  string
}

// Generation verdicts, mirroring the conditional edges of the graph:
// useful terminates, the other two re-enter generation.
const (
	verdictUseful        = "useful"
	verdictNotUseful     = "not useful"
	verdictHallucination = "hallucination"
)

// Workflow sequences retrieval, filtering, generation and validation.
// One instance serves all requests; each Run is independent and
// request-scoped, so Workflow is safe for concurrent use.
type Workflow struct {
	retriever   Retriever
	grader      Grader
	generator   Generator
	maxAttempts int
	logger      *slog.Logger
}

// NewWorkflow creates a workflow. maxAttempts bounds GENERATE entries per
// run (first attempt included); values below 1 are raised to 1.
func NewWorkflow(retriever Retriever, grader Grader, generator Generator, maxAttempts int, logger *slog.Logger) *Workflow {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		retriever:   retriever,
		grader:      grader,
		generator:   generator,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run executes the workflow for one question.
//
// Stage errors propagate unwrapped in meaning: the HTTP layer reports them
// as a generic failure. A run whose generations never satisfy both graders
// ends with ErrRetriesExhausted rather than looping forever.
func (w *Workflow) Run(ctx context.Context, question string) (Result, error) {
	state := &State{Question: question}

	if err := w.retrieve(ctx, state); err != nil {
		return Result{}, err
	}

	if err := w.filterPassages(ctx, state); err != nil {
		return Result{}, err
	}

	if !state.ResultsFound {
		w.logger.Warn("no relevant documents found, ending process", "question", question)
		return Result{Outcome: OutcomeNoResults}, nil
	}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := w.generate(ctx, state); err != nil {
			return Result{}, err
		}

		verdict, err := w.gradeGeneration(ctx, state)
		if err != nil {
			return Result{}, err
		}

		if verdict == verdictUseful {
			w.logger.Info("generation addresses question successfully", "attempts", attempt)
			return Result{Outcome: OutcomeAnswered, Answer: state.Answer}, nil
		}

		// Re-enter GENERATE with the identical retained passage set; a
		// different result depends only on generator non-determinism.
		w.logger.Warn("generation rejected, retrying",
			"verdict", verdict, "attempt", attempt, "max_attempts", w.maxAttempts)
	}

	return Result{}, fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, w.maxAttempts)
}

// retrieve populates state.Passages from the retriever.
func (w *Workflow) retrieve(ctx context.Context, state *State) error {
	w.logger.Info("starting document retrieval", "question", state.Question)

	passages, err := w.retriever.Retrieve(ctx, state.Question)
	if err != nil {
		return fmt.Errorf("retrieving passages: %w", err)
	}

	state.Passages = passages
	w.logger.Info("retrieved documents", "count", len(passages))
	return nil
}

// filterPassages grades each passage sequentially and replaces
// state.Passages with the relevant subset, preserving order. Sets
// ResultsFound iff at least one passage survives.
func (w *Workflow) filterPassages(ctx context.Context, state *State) error {
	filtered := make([]store.Passage, 0, len(state.Passages))

	for _, p := range state.Passages {
		relevant, err := w.grader.GradeRelevance(ctx, state.Question, p.Content)
		if err != nil {
			return fmt.Errorf("grading passage relevance: %w", err)
		}
		if relevant {
			filtered = append(filtered, p)
		}
	}

	state.Passages = filtered
	state.ResultsFound = len(filtered) > 0
	w.logger.Info("graded documents", "relevant", len(filtered))
	return nil
}

// generate overwrites state.Answer from the retained passages.
func (w *Workflow) generate(ctx context.Context, state *State) error {
	w.logger.Info("generating response",
		"question", state.Question, "context_documents", len(state.Passages))

	answer, err := w.generator.Generate(ctx, state.Question, state.Passages)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	state.Answer = answer
	return nil
}

// gradeGeneration validates the current answer: groundedness first, then
// whether it addresses the question.
func (w *Workflow) gradeGeneration(ctx context.Context, state *State) (string, error) {
	grounded, err := w.grader.GradeGroundedness(ctx, state.Passages, state.Answer)
	if err != nil {
		return "", fmt.Errorf("grading groundedness: %w", err)
	}
	if !grounded {
		return verdictHallucination, nil
	}

	useful, err := w.grader.GradeAnswer(ctx, state.Question, state.Answer)
	if err != nil {
		return "", fmt.Errorf("grading answer quality: %w", err)
	}
	if !useful {
		return verdictNotUseful, nil
	}

	return verdictUseful, nil
}
