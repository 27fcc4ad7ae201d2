package answer

import (
	"context"

	"github.com/campuskit/parentassist/internal/domain"
)

// Corpus is the retrieval contract of the answer service.
type Corpus interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]domain.EmbeddedChunk, error)
}

// Ingester runs the document ingestion pipeline on a cold corpus.
type Ingester interface {
	Ingest(ctx context.Context) (int, error)
}

// Translator converts an answer into the requested language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Embedder vectorizes the question text.
type Embedder = domain.Embedder

// Completer generates the answer text.
type Completer = domain.Completer
