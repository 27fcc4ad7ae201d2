// Package answer implements the question-answering pipeline: retrieve the
// most relevant document chunks, build a grounded prompt, synthesize an
// answer and optionally translate it.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/campuskit/parentassist/internal/domain"
	"github.com/campuskit/parentassist/internal/metrics"
	"github.com/campuskit/parentassist/internal/retry"
)

// Fixed replies for the two "nothing to answer from" cases. Both go through
// the normal translate step like any other answer.
const (
	msgNoDocuments = "No documents found. Please ensure source documents are in the configured directory."
	msgNoRelevant  = "Sorry, I couldn't find relevant information in the district documents."
)

const systemPrompt = "You are a helpful assistant for parents of a school district. " +
	"Answer the question using only the official district documents provided. " +
	"If the documents do not contain the answer, say so."

const defaultTopK = 3

var defaultRetry = retry.Policy{MaxAttempts: 3, Delay: time.Second}

const defaultCompletionTimeout = 10 * time.Second

// Service answers parent questions over the ingested document corpus.
type Service struct {
	corpus     Corpus
	ingester   Ingester
	embedder   Embedder
	completer  Completer
	translator Translator
	logger     *zap.Logger

	topK              int
	retryPolicy       retry.Policy
	completionTimeout time.Duration

	// Guards cold-start ingestion: concurrent first questions share one run.
	ingestGroup singleflight.Group
}

// New creates the answer service.
func New(
	corpus Corpus,
	ingester Ingester,
	embedder Embedder,
	completer Completer,
	translator Translator,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		corpus:            corpus,
		ingester:          ingester,
		embedder:          embedder,
		completer:         completer,
		translator:        translator,
		logger:            logger,
		topK:              defaultTopK,
		retryPolicy:       defaultRetry,
		completionTimeout: defaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures the service.
type Option func(*Service)

// WithTopK overrides how many chunks feed the prompt.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithRetry overrides the completion retry policy.
func WithRetry(p retry.Policy) Option {
	return func(s *Service) {
		s.retryPolicy = p
	}
}

// WithCompletionTimeout overrides the per-attempt completion deadline.
func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

// Answer runs the full pipeline for one question. An empty question is a
// validation error; everything else either produces an answer or a
// provider/store error for the transport to map.
func (s *Service) Answer(ctx context.Context, question, language string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("question is required: %w", domain.ErrValidation)
	}

	ready, err := s.ensureReady(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	if !ready {
		return s.finish(ctx, question, msgNoDocuments, language)
	}

	queryResult, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := s.corpus.List(ctx)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("list corpus: %w", err)
	}
	if len(chunks) == 0 {
		return s.finish(ctx, question, msgNoDocuments, language)
	}

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vectors[i] = c.Embedding
	}

	top, err := domain.RankTopK(queryResult.Embedding, vectors, s.topK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("rank chunks: %w", err)
	}
	if len(top) == 0 {
		return s.finish(ctx, question, msgNoRelevant, language)
	}

	selected := make([]domain.EmbeddedChunk, len(top))
	for i, idx := range top {
		selected[i] = chunks[idx]
	}

	reply, err := s.complete(ctx, question, selected)
	if err != nil {
		return domain.Answer{}, err
	}

	return s.finish(ctx, question, reply, language)
}

// ensureReady reports whether the corpus has any chunks, running ingestion
// once when it is empty. Concurrent callers share a single ingestion run.
func (s *Service) ensureReady(ctx context.Context) (bool, error) {
	count, err := s.corpus.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count corpus: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	stored, err, _ := s.ingestGroup.Do("ingest", func() (any, error) {
		s.logger.Info("Corpus empty, running ingestion")
		return s.ingester.Ingest(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("cold-start ingestion: %w", err)
	}
	if stored.(int) > 0 {
		return true, nil
	}

	// Ingestion stored nothing; a concurrent run may have filled the corpus.
	count, err = s.corpus.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count corpus: %w", err)
	}
	return count > 0, nil
}

// complete calls the completion model with bounded retries. Each attempt gets
// its own deadline; the retry policy bounds total attempts.
func (s *Service) complete(ctx context.Context, question string, chunks []domain.EmbeddedChunk) (string, error) {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: buildContext(chunks) + "\n\nQuestion: " + question},
	}

	var reply string
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.completionTimeout)
		defer cancel()

		out, err := s.completer.Complete(attemptCtx, messages)
		if err != nil {
			return err
		}
		reply = out
		return nil
	}, func(attempt int, err error) {
		metrics.CompletionRetriesTotal.Inc()
		s.logger.Warn("Completion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}

	return reply, nil
}

// finish applies translation and assembles the final answer. A translation
// failure degrades to the untranslated answer rather than failing the request.
func (s *Service) finish(ctx context.Context, question, reply, language string) (domain.Answer, error) {
	ans := domain.Answer{
		Question: question,
		Answer:   reply,
	}

	if language == "" || language == "en" {
		ans.Translated = reply
		return ans, nil
	}

	translated, err := s.translator.Translate(ctx, reply, language)
	if err != nil {
		s.logger.Warn("Translation failed, returning untranslated answer",
			zap.String("language", language),
			zap.Error(err))
		ans.Translated = reply
		return ans, nil
	}

	ans.Translated = translated
	return ans, nil
}

// buildContext renders the selected chunks as the document context block.
func buildContext(chunks []domain.EmbeddedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("From %s:\n%s", c.Filename, c.Content)
	}
	return "Relevant district documents:\n\n" + strings.Join(parts, "\n\n---\n\n")
}
