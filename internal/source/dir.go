// Package source discovers and reads district documents for ingestion.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/domain"
)

// Dir loads documents from a flat directory. PDF files are text-extracted;
// .txt and .md files are read as-is. A file that fails to parse is logged
// and skipped so one bad document never blocks the rest.
type Dir struct {
	path   string
	logger *zap.Logger
}

// NewDir creates a directory document source.
func NewDir(path string, logger *zap.Logger) *Dir {
	return &Dir{path: path, logger: logger}
}

// Load reads every supported document in the directory.
func (d *Dir) Load(ctx context.Context) ([]domain.Document, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read document directory %s: %w", d.path, err)
	}

	var docs []domain.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		path := filepath.Join(d.path, name)

		var text string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pdf":
			text, err = extractPDFText(path)
		case ".txt", ".md":
			text, err = readTextFile(path)
		default:
			continue
		}
		if err != nil {
			d.logger.Warn("Failed to read document, skipping",
				zap.String("filename", name),
				zap.Error(err),
			)
			continue
		}

		docs = append(docs, domain.Document{Filename: name, Text: text})
		d.logger.Debug("Extracted document text",
			zap.String("filename", name),
			zap.Int("chars", len(text)),
		)
	}

	return docs, nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}
