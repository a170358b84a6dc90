package rag

import (
	"context"
	"log/slog"

	"github.com/coderTtxi12/model-rag/internal/store"
)

// Searcher is the slice of the store contract retrieval needs.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]store.Passage, error)
}

// MultiRetriever queries every configured collection and concatenates their
// results: collections in registration order, passages within a collection
// in the store's own similarity ranking. No deduplication across
// collections.
//
// An unreachable collection contributes nothing; its failure is logged, not
// propagated, so one broken index never fails the whole query.
type MultiRetriever struct {
	store       Searcher
	collections []string
	topK        int
	logger      *slog.Logger
}

// NewMultiRetriever creates a retriever over the named collections.
func NewMultiRetriever(st Searcher, collections []string, topK int, logger *slog.Logger) *MultiRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiRetriever{
		store:       st,
		collections: collections,
		topK:        topK,
		logger:      logger,
	}
}

// Retrieve returns the concatenated passages for the query.
func (r *MultiRetriever) Retrieve(ctx context.Context, query string) ([]store.Passage, error) {
	var all []store.Passage
	for _, name := range r.collections {
		passages, err := r.store.Search(ctx, name, query, r.topK)
		if err != nil {
			r.logger.Warn("collection unavailable, skipping",
				"collection", name, "error", err)
			continue
		}
		all = append(all, passages...)
	}
	r.logger.Debug("retrieved passages", "query", query, "count", len(all))
	return all, nil
}
