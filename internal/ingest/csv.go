// Package ingest turns CSV files into vector store passages.
//
// Each CSV row becomes one passage: column values are concatenated as
// "column:\nvalue" cells joined by blank lines. Designated columns are
// cleaned of URL-bearing JSON fragments before concatenation. Rows are not
// split further; whole rows retrieve more accurately than sub-row chunks for
// this data.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/coderTtxi12/model-rag/internal/store"
)

// urlFragmentRE matches embedded JSON fragments carrying URLs, e.g.
// {"url":"http://..."}. Matches are deleted from cleaned columns.
var urlFragmentRE = regexp.MustCompile(`\{"url":.*?\}`)

// Adder is the slice of the store contract ingestion needs.
type Adder interface {
	Add(ctx context.Context, collection string, passages []store.Passage) error
}

// Source maps a CSV file to its target collection.
type Source struct {
	File       string
	Collection string
}

// Summary reports the outcome of ingesting a set of sources.
type Summary struct {
	Sources  int // sources ingested successfully
	Failed   int // sources skipped due to errors
	Passages int // total passages persisted
}

// Ingestor reads CSV sources and persists their rows as passages.
type Ingestor struct {
	store     Adder
	cleanCols map[string]struct{}
	logger    *slog.Logger
}

// New creates an Ingestor. cleanColumns names the CSV columns stripped of
// URL fragments before concatenation.
func New(st Adder, cleanColumns []string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	cols := make(map[string]struct{}, len(cleanColumns))
	for _, c := range cleanColumns {
		cols[c] = struct{}{}
	}
	return &Ingestor{store: st, cleanCols: cols, logger: logger}
}

// IngestAll ingests every source in order. A failing source is logged and
// skipped; its siblings continue. The summary reports both outcomes.
func (ing *Ingestor) IngestAll(ctx context.Context, sources []Source) Summary {
	var sum Summary
	for _, src := range sources {
		n, err := ing.IngestFile(ctx, src.File, src.Collection)
		if err != nil {
			ing.logger.Error("ingesting source failed, continuing with remaining sources",
				"file", src.File, "collection", src.Collection, "error", err)
			sum.Failed++
			continue
		}
		sum.Sources++
		sum.Passages += n
	}
	return sum
}

// IngestFile reads one CSV file and persists its rows into the named
// collection. Returns the number of passages persisted.
func (ing *Ingestor) IngestFile(ctx context.Context, file, collection string) (int, error) {
	passages, err := ing.readFile(file)
	if err != nil {
		return 0, err
	}
	if len(passages) == 0 {
		ing.logger.Warn("no rows to ingest", "file", file)
		return 0, nil
	}

	if err := ing.store.Add(ctx, collection, passages); err != nil {
		return 0, fmt.Errorf("persisting passages from %s: %w", file, err)
	}

	ing.logger.Info("ingested source", "file", file, "collection", collection, "passages", len(passages))
	return len(passages), nil
}

// readFile parses a CSV file into passages without touching the store.
func (ing *Ingestor) readFile(file string) ([]store.Passage, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are padded below

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", file, err)
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		// Pad or truncate to the header width.
		row := make([]string, len(header))
		copy(row, record)
		rows = append(rows, row)
	}

	// Columns with no values in any row are dropped, matching the cleanup
	// the data files need (exports often carry trailing empty columns).
	keep := make([]bool, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if strings.TrimSpace(cell) != "" {
				keep[i] = true
			}
		}
	}

	var passages []store.Passage
	for idx, row := range rows {
		if isEmptyRow(row) {
			continue // all-empty row, index still advances
		}

		var cells []string
		for i, col := range header {
			if !keep[i] {
				continue
			}
			cell := row[i]
			if _, clean := ing.cleanCols[col]; clean {
				cell = urlFragmentRE.ReplaceAllString(cell, "")
			}
			cells = append(cells, col+":\n"+cell)
		}

		passages = append(passages, store.Passage{
			Content: strings.Join(cells, "\n\n"),
			Source:  file,
			Row:     idx,
		})
	}

	return passages, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
