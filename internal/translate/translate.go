// Package translate provides answer translation for non-English responses.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuskit/parentassist/internal/domain"
)

// Translator converts text into a target language identified by an ISO 639-1
// code (e.g. "es").
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Passthrough returns the text unchanged. Used when translation is disabled.
type Passthrough struct{}

// Translate implements Translator.
func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// LLM translates via the chat-completion model.
type LLM struct {
	completer domain.Completer
}

// NewLLM creates a completion-backed translator.
func NewLLM(completer domain.Completer) *LLM {
	return &LLM{completer: completer}
}

// Translate asks the completion model for a translation. The reply is the
// translated text only.
func (t *LLM) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	out, err := t.completer.Complete(ctx, []domain.ChatMessage{
		{
			Role: domain.RoleSystem,
			Content: fmt.Sprintf(
				"You are a translator. Translate the user's message into the language with ISO 639-1 code %q. Reply with the translation only.",
				targetLanguage,
			),
		},
		{Role: domain.RoleUser, Content: text},
	})
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", targetLanguage, err)
	}
	return strings.TrimSpace(out), nil
}
