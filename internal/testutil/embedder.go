package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder is a deterministic ai.Embedder for tests. Each document is
// hashed token by token into a fixed-dimension vector, so equal texts get
// equal embeddings and similar texts overlap, without any network call.
type FakeEmbedder struct {
	// Dim is the embedding dimension. Must match the schema dimension
	// when used against the pgvector store.
	Dim int
}

// Name implements ai.Embedder.
func (f *FakeEmbedder) Name() string { return "testutil/fake-embedder" }

// Register implements ai.Embedder. No-op: the fake never lives in a
// Genkit registry.
func (f *FakeEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: f.embedText(text),
		})
	}
	return resp, nil
}

// embedText buckets character trigrams into the vector and normalizes it.
func (f *FakeEmbedder) embedText(text string) []float32 {
	vec := make([]float32, f.Dim)
	runes := []rune(text)
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[int(h.Sum32())%f.Dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1 // blank text still gets a valid unit vector
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
