package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/domain"
	"github.com/campuskit/parentassist/internal/metrics"
	"github.com/campuskit/parentassist/internal/retry"
)

func init() {
	metrics.RegisterPipelineMetrics()
}

type mockCorpus struct {
	mu     sync.Mutex
	chunks []domain.EmbeddedChunk
	err    error
}

func (m *mockCorpus) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), m.err
}

func (m *mockCorpus) List(_ context.Context) ([]domain.EmbeddedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks, m.err
}

func (m *mockCorpus) fill(chunks []domain.EmbeddedChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
}

type mockIngester struct {
	mu     sync.Mutex
	calls  int
	stored int
	err    error
	fn     func()
}

func (m *mockIngester) Ingest(_ context.Context) (int, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		m.fn()
	}
	return m.stored, m.err
}

func (m *mockIngester) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockEmbedder struct {
	embedding []float32
	err       error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.embedding}, nil
}

type mockCompleter struct {
	mu       sync.Mutex
	reply    string
	failures int
	calls    int
	lastMsgs []domain.ChatMessage
}

func (m *mockCompleter) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsgs = messages
	if m.calls <= m.failures {
		return "", domain.ErrCompletionFailed
	}
	return m.reply, nil
}

type mockTranslator struct {
	err error
}

func (m *mockTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "[" + lang + "] " + text, nil
}

func corpusOf(contents ...string) []domain.EmbeddedChunk {
	chunks := make([]domain.EmbeddedChunk, len(contents))
	for i, c := range contents {
		chunks[i] = domain.EmbeddedChunk{
			Chunk:     domain.Chunk{Content: c, Filename: "doc.txt", ChunkIndex: i, TotalChunks: len(contents)},
			Embedding: []float32{float32(i + 1), 1},
		}
	}
	return chunks
}

func newService(corpus *mockCorpus, ingester *mockIngester, completer *mockCompleter, opts ...Option) *Service {
	base := []Option{WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond})}
	return New(corpus, ingester, &mockEmbedder{embedding: []float32{1, 1}}, completer,
		&mockTranslator{}, zap.NewNop(), append(base, opts...)...)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	svc := newService(&mockCorpus{}, &mockIngester{}, &mockCompleter{})

	_, err := svc.Answer(context.Background(), "   ", "en")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAnswer_NoDocuments(t *testing.T) {
	ingester := &mockIngester{stored: 0}
	svc := newService(&mockCorpus{}, ingester, &mockCompleter{})

	ans, err := svc.Answer(context.Background(), "when does school start?", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != msgNoDocuments {
		t.Errorf("expected fixed no-documents message, got %q", ans.Answer)
	}
	if ingester.callCount() != 1 {
		t.Errorf("expected 1 ingestion run, got %d", ingester.callCount())
	}
}

func TestAnswer_ColdStartIngestsThenAnswers(t *testing.T) {
	corpus := &mockCorpus{}
	completer := &mockCompleter{reply: "September 2"}
	ingester := &mockIngester{stored: 2}
	ingester.fn = func() { corpus.fill(corpusOf("a", "b")) }

	svc := newService(corpus, ingester, completer)

	ans, err := svc.Answer(context.Background(), "when does school start?", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "September 2" {
		t.Errorf("expected completion reply, got %q", ans.Answer)
	}
	if ingester.callCount() != 1 {
		t.Errorf("expected 1 ingestion run, got %d", ingester.callCount())
	}
}

func TestAnswer_WarmCorpusSkipsIngestion(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	ingester := &mockIngester{}
	svc := newService(corpus, ingester, &mockCompleter{reply: "ok"})

	if _, err := svc.Answer(context.Background(), "q", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ingester.callCount() != 0 {
		t.Errorf("expected no ingestion on warm corpus, got %d runs", ingester.callCount())
	}
}

func TestAnswer_PromptContainsContext(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("enrollment opens in March")}
	completer := &mockCompleter{reply: "March"}
	svc := newService(corpus, &mockIngester{}, completer)

	if _, err := svc.Answer(context.Background(), "when is enrollment?", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completer.lastMsgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(completer.lastMsgs))
	}
	user := completer.lastMsgs[1].Content
	if !strings.Contains(user, "From doc.txt:\nenrollment opens in March") {
		t.Errorf("expected chunk context in prompt, got %q", user)
	}
	if !strings.Contains(user, "Question: when is enrollment?") {
		t.Errorf("expected question in prompt, got %q", user)
	}
}

func TestAnswer_TopKLimitsContext(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("one", "two", "three", "four", "five")}
	completer := &mockCompleter{reply: "ok"}
	svc := newService(corpus, &mockIngester{}, completer, WithTopK(2))

	if _, err := svc.Answer(context.Background(), "q", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user := completer.lastMsgs[1].Content
	if got := strings.Count(user, "From doc.txt:"); got != 2 {
		t.Errorf("expected 2 chunks in context, got %d", got)
	}
}

func TestAnswer_RetriesThenSucceeds(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	completer := &mockCompleter{reply: "ok", failures: 2}
	svc := newService(corpus, &mockIngester{}, completer)

	ans, err := svc.Answer(context.Background(), "q", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "ok" {
		t.Errorf("expected reply after retries, got %q", ans.Answer)
	}
	if completer.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", completer.calls)
	}
}

func TestAnswer_RetriesExhausted(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	completer := &mockCompleter{failures: 10}
	svc := newService(corpus, &mockIngester{}, completer)

	_, err := svc.Answer(context.Background(), "q", "en")
	if !errors.Is(err, domain.ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if completer.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", completer.calls)
	}
}

func TestAnswer_EmbedErrorPropagates(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	svc := New(corpus, &mockIngester{}, &mockEmbedder{err: domain.ErrEmbeddingUnavailable},
		&mockCompleter{}, &mockTranslator{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "q", "en")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestAnswer_DimensionMismatch(t *testing.T) {
	corpus := &mockCorpus{chunks: []domain.EmbeddedChunk{
		{Chunk: domain.Chunk{Content: "a", Filename: "doc.txt"}, Embedding: []float32{1, 2, 3}},
	}}
	svc := newService(corpus, &mockIngester{}, &mockCompleter{reply: "ok"})

	_, err := svc.Answer(context.Background(), "q", "en")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAnswer_Translated(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	svc := newService(corpus, &mockIngester{}, &mockCompleter{reply: "September 2"})

	ans, err := svc.Answer(context.Background(), "q", "es")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Translated != "[es] September 2" {
		t.Errorf("expected translated answer, got %q", ans.Translated)
	}
	if ans.Answer != "September 2" {
		t.Errorf("expected original answer preserved, got %q", ans.Answer)
	}
}

func TestAnswer_TranslationFailureDegrades(t *testing.T) {
	corpus := &mockCorpus{chunks: corpusOf("a")}
	svc := New(corpus, &mockIngester{}, &mockEmbedder{embedding: []float32{1, 1}},
		&mockCompleter{reply: "September 2"}, &mockTranslator{err: errors.New("provider down")},
		zap.NewNop())

	ans, err := svc.Answer(context.Background(), "q", "es")
	if err != nil {
		t.Fatalf("expected translation failure to degrade, got %v", err)
	}
	if ans.Translated != "September 2" {
		t.Errorf("expected untranslated fallback, got %q", ans.Translated)
	}
}

func TestAnswer_ConcurrentColdStartsShareIngestion(t *testing.T) {
	corpus := &mockCorpus{}
	completer := &mockCompleter{reply: "ok"}
	ingester := &mockIngester{stored: 1}
	release := make(chan struct{})
	ingester.fn = func() {
		<-release
		corpus.fill(corpusOf("a"))
	}

	svc := newService(corpus, ingester, completer)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Answer(context.Background(), "q", "en"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	// Let all callers reach the singleflight before the first run finishes.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if ingester.callCount() != 1 {
		t.Errorf("expected 1 shared ingestion run, got %d", ingester.callCount())
	}
}
