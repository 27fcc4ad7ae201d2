// Package ingest loads source documents, chunks them, embeds each chunk and
// persists the result.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/domain"
	"github.com/campuskit/parentassist/internal/metrics"
)

// Service runs the document ingestion pipeline. Ingestion is idempotent:
// chunks already persisted under the same identity are skipped, and a failed
// chunk never aborts the rest of the run.
type Service struct {
	source    Source
	corpus    Corpus
	embedder  Embedder
	chunkSize int
	logger    *zap.Logger
}

// New creates the ingestion service.
func New(source Source, corpus Corpus, embedder Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		source:    source,
		corpus:    corpus,
		embedder:  embedder,
		chunkSize: domain.DefaultChunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures the service.
type Option func(*Service)

// WithChunkSize overrides the default chunk size.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// Ingest processes all source documents and returns the number of newly
// stored chunks. Per-chunk embedding or storage failures are logged, counted
// and skipped; only source loading failures abort the run.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	docs, err := s.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}

	var stored int
	for _, doc := range docs {
		metrics.IngestDocumentsTotal.Inc()

		for _, chunk := range domain.ChunkDocument(doc, s.chunkSize) {
			if err := ctx.Err(); err != nil {
				return stored, err
			}

			n, err := s.ingestChunk(ctx, chunk)
			if err != nil {
				metrics.IngestChunksTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("Failed to ingest chunk",
					zap.String("filename", chunk.Filename),
					zap.Int("chunk_index", chunk.ChunkIndex),
					zap.Error(err))
				continue
			}
			stored += n
		}
	}

	s.logger.Info("Ingestion finished",
		zap.Int("documents", len(docs)),
		zap.Int("stored_chunks", stored))

	return stored, nil
}

// ingestChunk stores one chunk unless it already exists. Returns 1 if stored.
func (s *Service) ingestChunk(ctx context.Context, chunk domain.Chunk) (int, error) {
	exists, err := s.corpus.Has(ctx, chunk)
	if err != nil {
		return 0, err
	}
	if exists {
		metrics.IngestChunksTotal.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	result, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return 0, err
	}

	if err := s.corpus.Put(ctx, domain.EmbeddedChunk{Chunk: chunk, Embedding: result.Embedding}); err != nil {
		return 0, err
	}

	metrics.IngestChunksTotal.WithLabelValues("stored").Inc()
	return 1, nil
}
