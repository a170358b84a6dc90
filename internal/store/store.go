// Package store provides persistent vector storage for retrieved passages.
//
// Two drivers implement the same contract:
//   - Chromem: embedded chromem-go database, one persisted collection per
//     ingested CSV file under a single index directory (default driver).
//   - Postgres: PostgreSQL with the pgvector extension, one logical
//     collection per ingested CSV file in a shared table.
//
// Reopening a driver with the same location and collection name yields the
// same logical index. Both drivers are safe for concurrent reads.
package store

import (
	"context"
	"errors"
)

// Metadata keys attached to every ingested passage.
const (
	// MetaSource is the originating CSV file path.
	MetaSource = "source"

	// MetaRow is the zero-based CSV row index, formatted as a decimal string
	// where the backend requires string metadata.
	MetaRow = "row"
)

// ErrUnknownCollection indicates a search against a collection that was
// never ingested.
var ErrUnknownCollection = errors.New("unknown collection")

// Passage is a unit of retrieved context: text content plus its origin.
// Passages are immutable once produced by a driver.
type Passage struct {
	Content    string `json:"content"`
	Source     string `json:"source"`     // originating CSV file
	Row        int    `json:"row"`        // zero-based row index in the source file
	Collection string `json:"collection"` // collection the passage was retrieved from
}

// Store is the contract shared by vector store drivers.
type Store interface {
	// Add embeds and persists passages into the named collection,
	// creating the collection if it does not exist.
	Add(ctx context.Context, collection string, passages []Passage) error

	// Search returns up to topK passages from the named collection,
	// ordered by descending similarity to the query.
	Search(ctx context.Context, collection, query string, topK int) ([]Passage, error)

	// Close releases driver resources.
	Close() error
}
