package store

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// mockEmbedder returns position-based embeddings.
type mockEmbedder struct{}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		embeddings[i] = &ai.Embedding{
			Embedding: []float32{float32(i), float32(i + 1), float32(i + 2)},
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// emptyEmbedder returns no embeddings at all.
type emptyEmbedder struct{}

func (e *emptyEmbedder) Name() string { return "empty-embedder" }

func (e *emptyEmbedder) Register(api.Registry) {}

func (e *emptyEmbedder) Embed(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	return &ai.EmbedResponse{}, nil
}

// failingEmbedder always errors.
type failingEmbedder struct{ err error }

func (f *failingEmbedder) Name() string { return "failing-embedder" }

func (f *failingEmbedder) Register(api.Registry) {}

func (f *failingEmbedder) Embed(context.Context, *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	return nil, f.err
}

func TestNewEmbeddingFunc(t *testing.T) {
	embeddingFunc := NewEmbeddingFunc(&mockEmbedder{})

	embedding, err := embeddingFunc(context.Background(), "test document")
	if err != nil {
		t.Fatalf("embedding func failed: %v", err)
	}

	want := []float32{0, 1, 2}
	if len(embedding) != len(want) {
		t.Fatalf("embedding dimension = %d, want %d", len(embedding), len(want))
	}
	for i, v := range want {
		if embedding[i] != v {
			t.Errorf("embedding[%d] = %f, want %f", i, embedding[i], v)
		}
	}
}

func TestNewEmbeddingFuncEmptyResult(t *testing.T) {
	embeddingFunc := NewEmbeddingFunc(&emptyEmbedder{})

	if _, err := embeddingFunc(context.Background(), "test"); err == nil {
		t.Error("expected error for empty embeddings, got nil")
	}
}

func TestNewEmbeddingFuncProviderError(t *testing.T) {
	providerErr := errors.New("quota exceeded")
	embeddingFunc := NewEmbeddingFunc(&failingEmbedder{err: providerErr})

	if _, err := embeddingFunc(context.Background(), "test"); !errors.Is(err, providerErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}
