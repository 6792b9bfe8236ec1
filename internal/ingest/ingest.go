package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/agente-metalurgico/server/internal/vectorstore"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

const DefaultDir = "data_txt"

// ErrNoDocuments is returned when the source directory holds no supported files.
var ErrNoDocuments = errors.New("no .txt or .html documents found")

// Patterns lists the file globs picked up by LoadDir.
var Patterns = []string{"*.txt", "*.html", "*.htm"}

// Store is the write side of the vector store used by ingestion.
type Store interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
	Count() int
	Collections() []string
}

// Report summarises one ingestion run.
type Report struct {
	Dir               string
	Files             int
	CollectionsBefore []string
	CountBefore       int
	CollectionsAfter  []string
	CountAfter        int
}

// LoadDir reads every supported file of dir in name order. The id is the file stem
// and the source metadata is the file name. HTML pages are reduced to their visible
// text. Invalid UTF-8 sequences are dropped.
func LoadDir(dir string) ([]vectorstore.Document, error) {
	var paths []string
	for _, pattern := range Patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		abs, _ := filepath.Abs(dir)
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, abs)
	}
	sort.Strings(paths)

	docs := make([]vectorstore.Document, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		text := string(b)
		if ext := strings.ToLower(filepath.Ext(p)); ext == ".html" || ext == ".htm" {
			if text, err = htmlText(b); err != nil {
				return nil, fmt.Errorf("parse %s: %w", p, err)
			}
		}
		name := filepath.Base(p)
		docs = append(docs, vectorstore.Document{
			ID:       strings.TrimSuffix(name, filepath.Ext(name)),
			Text:     strings.ToValidUTF8(text, ""),
			Metadata: map[string]string{"source": name},
		})
	}
	return docs, nil
}

// htmlText returns the visible text of a page, one line per non-empty block.
func htmlText(b []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Run loads dir and upserts its documents into store.
func Run(ctx context.Context, store Store, dir string) (*Report, error) {
	report := &Report{
		Dir:               dir,
		CollectionsBefore: store.Collections(),
		CountBefore:       store.Count(),
	}

	docs, err := LoadDir(dir)
	if err != nil {
		return report, err
	}
	report.Files = len(docs)

	logx.Info().Str("dir", dir).Int("files", len(docs)).Msg("Upserting documents")
	if err := store.Upsert(ctx, docs); err != nil {
		logx.Error().Err(err).Str("dir", dir).Msg("Upsert failed")
		return report, err
	}

	report.CollectionsAfter = store.Collections()
	report.CountAfter = store.Count()
	return report, nil
}
