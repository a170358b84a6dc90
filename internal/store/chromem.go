package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"
)

// ingestConcurrency bounds parallel embedding calls during AddDocuments.
// Kept low: embedding providers rate-limit aggressively.
const ingestConcurrency = 2

// Chromem is the embedded vector store driver. Collections are persisted
// under a single directory and reopened by name. The directory is guarded by
// a file lock: ingestion takes it exclusively, serving takes it shared, so a
// concurrent ingest cannot corrupt indexes a server is reading.
type Chromem struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	lock   *flock.Flock
	logger *slog.Logger
}

// OpenChromem opens (or creates) the persistent database under dir.
// exclusive selects the lock mode: true for ingestion (single writer),
// false for serving (shared readers). Returns an error without blocking if
// the lock is already held in a conflicting mode.
func OpenChromem(dir string, embed chromem.EmbeddingFunc, exclusive bool, logger *slog.Logger) (*Chromem, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = lock.TryLock()
	} else {
		locked, err = lock.TryRLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("index directory %s is locked by another process", dir)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("releasing index lock after open failure", "error", unlockErr)
		}
		return nil, fmt.Errorf("opening chromem database: %w", err)
	}

	logger.Debug("opened chromem store", "dir", dir, "exclusive", exclusive)

	return &Chromem{
		db:     db,
		embed:  embed,
		lock:   lock,
		logger: logger,
	}, nil
}

// Add embeds and persists passages into the named collection.
func (s *Chromem) Add(ctx context.Context, collection string, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("opening collection %q: %w", collection, err)
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			// Source+row is stable across re-ingestion of the same file.
			ID:      fmt.Sprintf("%s:%d", p.Source, p.Row),
			Content: p.Content,
			Metadata: map[string]string{
				MetaSource: p.Source,
				MetaRow:    strconv.Itoa(p.Row),
			},
		}
	}

	if err := col.AddDocuments(ctx, docs, ingestConcurrency); err != nil {
		return fmt.Errorf("adding %d documents to %q: %w", len(docs), collection, err)
	}

	s.logger.Debug("added documents", "collection", collection, "count", len(docs))
	return nil
}

// Search returns up to topK passages from the named collection, ordered by
// the store's own similarity ranking. topK is clamped to the collection size
// because chromem rejects result counts above it.
func (s *Chromem) Search(ctx context.Context, collection, query string, topK int) ([]Passage, error) {
	col := s.db.GetCollection(collection, s.embed)
	if col == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}

	n := topK
	if count := col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %q: %w", collection, err)
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		row, convErr := strconv.Atoi(r.Metadata[MetaRow])
		if convErr != nil {
			row = -1
		}
		passages[i] = Passage{
			Content:    r.Content,
			Source:     r.Metadata[MetaSource],
			Row:        row,
			Collection: collection,
		}
	}
	return passages, nil
}

// Close releases the index directory lock.
func (s *Chromem) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing index lock: %w", err)
	}
	return nil
}
