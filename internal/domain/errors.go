package domain

import "errors"

var (
	// ErrValidation signals missing or malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrEmbeddingUnavailable signals that the embedding provider failed to
	// load or infer. Not retried at the embedding layer.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrCompletionFailed signals a completion provider failure after
	// exhausting retries.
	ErrCompletionFailed = errors.New("completion request failed")
	// ErrStoreUnavailable signals an unreachable persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDimensionMismatch signals vectors of unequal length in a similarity
	// computation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrConversationNotFound signals a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")
)
