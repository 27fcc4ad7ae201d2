package ingest

import (
	"context"

	"github.com/campuskit/parentassist/internal/domain"
)

// Source loads raw documents to be ingested.
type Source interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// Corpus is the persistence contract of the ingestion service.
type Corpus interface {
	Has(ctx context.Context, c domain.Chunk) (bool, error)
	Put(ctx context.Context, ec domain.EmbeddedChunk) error
	Count(ctx context.Context) (int, error)
}

// Embedder vectorizes chunk text.
type Embedder = domain.Embedder
