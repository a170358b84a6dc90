package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/coderTtxi12/model-rag/internal/log"
	"github.com/coderTtxi12/model-rag/internal/store"
)

// mockRetriever returns fixed passages or an error.
type mockRetriever struct {
	passages []store.Passage
	err      error
	calls    int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) ([]store.Passage, error) {
	m.calls++
	return m.passages, m.err
}

// mockGrader scripts the three judgments. Slices are consumed per call;
// when exhausted, the last value repeats.
type mockGrader struct {
	relevance    []bool
	groundedness []bool
	quality      []bool
	relevanceErr error

	relevanceCalls    int
	groundednessCalls int
	qualityCalls      int

	// groundednessInputs records the passage sets handed to the
	// groundedness grader, for retry-idempotence checks.
	groundednessInputs [][]store.Passage
}

func takeBool(s []bool, i int) bool {
	if len(s) == 0 {
		return false
	}
	if i >= len(s) {
		return s[len(s)-1]
	}
	return s[i]
}

func (m *mockGrader) GradeRelevance(_ context.Context, _, _ string) (bool, error) {
	if m.relevanceErr != nil {
		return false, m.relevanceErr
	}
	v := takeBool(m.relevance, m.relevanceCalls)
	m.relevanceCalls++
	return v, nil
}

func (m *mockGrader) GradeGroundedness(_ context.Context, passages []store.Passage, _ string) (bool, error) {
	m.groundednessInputs = append(m.groundednessInputs, append([]store.Passage(nil), passages...))
	v := takeBool(m.groundedness, m.groundednessCalls)
	m.groundednessCalls++
	return v, nil
}

func (m *mockGrader) GradeAnswer(_ context.Context, _, _ string) (bool, error) {
	v := takeBool(m.quality, m.qualityCalls)
	m.qualityCalls++
	return v, nil
}

// mockGenerator returns scripted answers per attempt.
type mockGenerator struct {
	answers []string
	err     error
	calls   int
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ []store.Passage) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	answer := m.answers[len(m.answers)-1]
	if m.calls < len(m.answers) {
		answer = m.answers[m.calls]
	}
	m.calls++
	return answer, nil
}

func threePassages() []store.Passage {
	return []store.Passage{
		{Content: "p1", Source: "a.csv", Row: 0, Collection: "one"},
		{Content: "p2", Source: "a.csv", Row: 1, Collection: "one"},
		{Content: "p3", Source: "b.csv", Row: 0, Collection: "two"},
	}
}

// Scenario A: all passages relevant, first generation passes both grades.
func TestRunAnswersFirstAttempt(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{relevance: []bool{true}, groundedness: []bool{true}, quality: []bool{true}}
	generator := &mockGenerator{answers: []string{"A1"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	result, err := wf.Run(context.Background(), "What is X?")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeAnswered || result.Answer != "A1" {
		t.Errorf("result = %+v, want answered with A1", result)
	}
	if generator.calls != 1 {
		t.Errorf("generator called %d times, want 1", generator.calls)
	}
	if grader.relevanceCalls != 3 {
		t.Errorf("relevance grader called %d times, want once per passage", grader.relevanceCalls)
	}
}

// Scenario B: no passage relevant, terminal without generation.
func TestRunNoRelevantResults(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{relevance: []bool{false}}
	generator := &mockGenerator{answers: []string{"never"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	result, err := wf.Run(context.Background(), "What is X?")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeNoResults {
		t.Errorf("outcome = %v, want OutcomeNoResults", result.Outcome)
	}
	if generator.calls != 0 {
		t.Errorf("generator called %d times, want 0", generator.calls)
	}
}

// Scenario C: groundedness fails once, second generation passes. The final
// answer is the second generation's output and the retry re-ran with the
// identical retained passage set.
func TestRunRetriesOnHallucination(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{
		relevance:    []bool{true},
		groundedness: []bool{false, true},
		quality:      []bool{true},
	}
	generator := &mockGenerator{answers: []string{"A1", "A2"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	result, err := wf.Run(context.Background(), "What is X?")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if generator.calls != 2 {
		t.Errorf("generator called %d times, want 2", generator.calls)
	}
	if result.Answer != "A2" {
		t.Errorf("answer = %q, want the second generation A2", result.Answer)
	}

	if len(grader.groundednessInputs) != 2 {
		t.Fatalf("groundedness graded %d times, want 2", len(grader.groundednessInputs))
	}
	first, second := grader.groundednessInputs[0], grader.groundednessInputs[1]
	if len(first) != len(second) {
		t.Fatalf("retry passage set size changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("retry passage %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// An answer that is grounded but does not address the question also
// re-enters generation.
func TestRunRetriesOnNotUseful(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{
		relevance:    []bool{true},
		groundedness: []bool{true},
		quality:      []bool{false, true},
	}
	generator := &mockGenerator{answers: []string{"A1", "A2"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	result, err := wf.Run(context.Background(), "What is X?")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if generator.calls != 2 || result.Answer != "A2" {
		t.Errorf("calls = %d, answer = %q; want 2 calls and A2", generator.calls, result.Answer)
	}
}

func TestRunRetriesExhausted(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{relevance: []bool{true}, groundedness: []bool{false}}
	generator := &mockGenerator{answers: []string{"A"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	_, err := wf.Run(context.Background(), "What is X?")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Run() = %v, want ErrRetriesExhausted", err)
	}
	if generator.calls != 3 {
		t.Errorf("generator called %d times, want the full attempt bound", generator.calls)
	}
}

// Filtering only removes: the retained set is an order-preserving subset of
// what retrieval produced.
func TestFilterSubsetProperty(t *testing.T) {
	retrieved := threePassages()
	retriever := &mockRetriever{passages: retrieved}
	grader := &mockGrader{
		relevance:    []bool{true, false, true},
		groundedness: []bool{true},
		quality:      []bool{true},
	}
	generator := &mockGenerator{answers: []string{"A"}}
	wf := NewWorkflow(retriever, grader, generator, 3, log.NewNop())

	if _, err := wf.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	retained := grader.groundednessInputs[0]
	if len(retained) != 2 {
		t.Fatalf("retained %d passages, want 2", len(retained))
	}
	if retained[0] != retrieved[0] || retained[1] != retrieved[2] {
		t.Errorf("retained set is not an order-preserving subset: %+v", retained)
	}
}

func TestRunPropagatesStageErrors(t *testing.T) {
	stageErr := errors.New("provider unavailable")

	t.Run("retrieval", func(t *testing.T) {
		wf := NewWorkflow(&mockRetriever{err: stageErr}, &mockGrader{}, &mockGenerator{answers: []string{""}}, 3, log.NewNop())
		if _, err := wf.Run(context.Background(), "q"); !errors.Is(err, stageErr) {
			t.Errorf("Run() = %v, want the stage error", err)
		}
	})

	t.Run("relevance grading", func(t *testing.T) {
		wf := NewWorkflow(&mockRetriever{passages: threePassages()},
			&mockGrader{relevanceErr: stageErr}, &mockGenerator{answers: []string{""}}, 3, log.NewNop())
		if _, err := wf.Run(context.Background(), "q"); !errors.Is(err, stageErr) {
			t.Errorf("Run() = %v, want the stage error", err)
		}
	})

	t.Run("generation", func(t *testing.T) {
		wf := NewWorkflow(&mockRetriever{passages: threePassages()},
			&mockGrader{relevance: []bool{true}}, &mockGenerator{err: stageErr}, 3, log.NewNop())
		if _, err := wf.Run(context.Background(), "q"); !errors.Is(err, stageErr) {
			t.Errorf("Run() = %v, want the stage error", err)
		}
	})
}

func TestNewWorkflowRaisesAttemptBound(t *testing.T) {
	retriever := &mockRetriever{passages: threePassages()}
	grader := &mockGrader{relevance: []bool{true}, groundedness: []bool{false}}
	generator := &mockGenerator{answers: []string{"A"}}
	wf := NewWorkflow(retriever, grader, generator, 0, log.NewNop())

	_, err := wf.Run(context.Background(), "q")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Run() = %v, want ErrRetriesExhausted", err)
	}
	if generator.calls != 1 {
		t.Errorf("generator called %d times, want exactly 1 for the raised bound", generator.calls)
	}
}
