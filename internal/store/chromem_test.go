package store

import (
	"context"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/coderTtxi12/model-rag/internal/log"
)

// keywordEmbedder returns a deterministic embedding function: one dimension
// per keyword, set when the keyword appears in the text. The trailing
// constant dimension keeps vectors non-zero.
func keywordEmbedder(keywords ...string) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, len(keywords)+1)
		vec[len(keywords)] = 0.1
		lower := strings.ToLower(text)
		for i, kw := range keywords {
			if strings.Contains(lower, kw) {
				vec[i] = 1
			}
		}
		return vec, nil
	}
}

func testPassages() []Passage {
	return []Passage{
		{Content: "id:\n1\n\ndata:\nthe capybara is the largest rodent", Source: "animals.csv", Row: 0},
		{Content: "id:\n2\n\ndata:\nthe transistor revolutionized electronics", Source: "animals.csv", Row: 1},
	}
}

func TestChromemAddAndSearch(t *testing.T) {
	ctx := context.Background()
	embed := keywordEmbedder("rodent", "transistor")

	s, err := OpenChromem(t.TempDir(), embed, true, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	defer s.Close()

	if err := s.Add(ctx, "animals", testPassages()); err != nil {
		t.Fatalf("Add() = %v", err)
	}

	got, err := s.Search(ctx, "animals", "what is the largest rodent", 1)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search() returned %d passages, want 1", len(got))
	}
	if !strings.Contains(got[0].Content, "capybara") {
		t.Errorf("top result = %q, want the rodent passage", got[0].Content)
	}
	if got[0].Source != "animals.csv" || got[0].Row != 0 {
		t.Errorf("metadata = {source: %q, row: %d}, want {animals.csv, 0}", got[0].Source, got[0].Row)
	}
	if got[0].Collection != "animals" {
		t.Errorf("collection = %q, want animals", got[0].Collection)
	}
}

func TestChromemSearchUnknownCollection(t *testing.T) {
	s, err := OpenChromem(t.TempDir(), keywordEmbedder(), true, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	defer s.Close()

	_, err = s.Search(context.Background(), "missing", "anything", 3)
	if err == nil || !strings.Contains(err.Error(), "unknown collection") {
		t.Errorf("Search() = %v, want unknown collection error", err)
	}
}

func TestChromemTopKClampedToCollectionSize(t *testing.T) {
	ctx := context.Background()
	s, err := OpenChromem(t.TempDir(), keywordEmbedder("rodent"), true, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	defer s.Close()

	if err := s.Add(ctx, "animals", testPassages()); err != nil {
		t.Fatalf("Add() = %v", err)
	}

	got, err := s.Search(ctx, "animals", "rodent", 10)
	if err != nil {
		t.Fatalf("Search() with topK above collection size = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search() returned %d passages, want 2", len(got))
	}
}

func TestChromemReopenYieldsSameIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embed := keywordEmbedder("rodent")

	s, err := OpenChromem(dir, embed, true, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	if err := s.Add(ctx, "animals", testPassages()); err != nil {
		t.Fatalf("Add() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	reopened, err := OpenChromem(dir, embed, false, log.NewNop())
	if err != nil {
		t.Fatalf("reopening: OpenChromem() = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Search(ctx, "animals", "rodent", 2)
	if err != nil {
		t.Fatalf("Search() after reopen = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search() after reopen returned %d passages, want 2", len(got))
	}
}

func TestChromemExclusiveLockConflict(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenChromem(dir, keywordEmbedder(), true, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	defer first.Close()

	if _, err := OpenChromem(dir, keywordEmbedder(), true, log.NewNop()); err == nil {
		t.Error("second exclusive OpenChromem() succeeded, want lock error")
	}
}

func TestChromemSharedReaders(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenChromem(dir, keywordEmbedder(), false, log.NewNop())
	if err != nil {
		t.Fatalf("OpenChromem() = %v", err)
	}
	defer first.Close()

	second, err := OpenChromem(dir, keywordEmbedder(), false, log.NewNop())
	if err != nil {
		t.Fatalf("second shared OpenChromem() = %v, want success", err)
	}
	defer second.Close()
}
