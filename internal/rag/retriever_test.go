package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/coderTtxi12/model-rag/internal/log"
	"github.com/coderTtxi12/model-rag/internal/store"
)

// mockSearcher serves per-collection results and errors and records the
// order collections were queried in.
type mockSearcher struct {
	results map[string][]store.Passage
	errs    map[string]error
	queried []string
	topK    int
}

func (m *mockSearcher) Search(_ context.Context, collection, _ string, topK int) ([]store.Passage, error) {
	m.queried = append(m.queried, collection)
	m.topK = topK
	if err := m.errs[collection]; err != nil {
		return nil, err
	}
	return m.results[collection], nil
}

func TestRetrieveConcatenatesInOrder(t *testing.T) {
	searcher := &mockSearcher{results: map[string][]store.Passage{
		"beta":  {{Content: "b1", Collection: "beta"}},
		"alpha": {{Content: "a1", Collection: "alpha"}, {Content: "a2", Collection: "alpha"}},
	}}
	r := NewMultiRetriever(searcher, []string{"alpha", "beta"}, 4, log.NewNop())

	got, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}

	want := []string{"a1", "a2", "b1"}
	contents := make([]string, len(got))
	for i, p := range got {
		contents[i] = p.Content
	}
	if !reflect.DeepEqual(contents, want) {
		t.Errorf("contents = %v, want %v", contents, want)
	}
	if !reflect.DeepEqual(searcher.queried, []string{"alpha", "beta"}) {
		t.Errorf("query order = %v, want registration order", searcher.queried)
	}
	if searcher.topK != 4 {
		t.Errorf("topK = %d, want 4", searcher.topK)
	}
}

// One broken collection must not fail the query or hide the others.
func TestRetrieveSkipsFailingCollection(t *testing.T) {
	searcher := &mockSearcher{
		results: map[string][]store.Passage{
			"alpha": {{Content: "a1", Collection: "alpha"}},
			"gamma": {{Content: "g1", Collection: "gamma"}},
		},
		errs: map[string]error{"beta": errors.New("index corrupted")},
	}
	r := NewMultiRetriever(searcher, []string{"alpha", "beta", "gamma"}, 4, log.NewNop())

	got, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d passages, want the 2 from healthy collections", len(got))
	}
	if got[0].Content != "a1" || got[1].Content != "g1" {
		t.Errorf("passages = %+v", got)
	}
	if len(searcher.queried) != 3 {
		t.Errorf("queried %v, want all three collections attempted", searcher.queried)
	}
}

func TestRetrieveAllCollectionsFailing(t *testing.T) {
	searcher := &mockSearcher{errs: map[string]error{
		"alpha": errors.New("down"),
		"beta":  errors.New("down"),
	}}
	r := NewMultiRetriever(searcher, []string{"alpha", "beta"}, 4, log.NewNop())

	got, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve() = %v, want nil even with every collection down", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d passages, want 0", len(got))
	}
}
