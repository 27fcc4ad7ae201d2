// Package conversation persists chat conversations as JSON blobs.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/parentassist/internal/db"
	"github.com/campuskit/parentassist/internal/domain"
)

// store is the consumer interface for the conversation repository (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores each conversation as one JSON value keyed by its ID.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a conversation repository. keyPrefix namespaces all keys
// (e.g. "parentassist:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix + "conv:", now: time.Now}
}

// Create starts a new conversation and returns it with a generated ID.
func (r *Repo) Create(ctx context.Context, title string) (domain.Conversation, error) {
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: r.now().UTC(),
	}
	if err := r.save(ctx, conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// Get returns a conversation by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Conversation, error) {
	data, err := r.store.Get(ctx, r.prefix+id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Conversation{}, fmt.Errorf("conversation %s: %w", id, domain.ErrConversationNotFound)
		}
		return domain.Conversation{}, fmt.Errorf("load conversation %s: %w: %w", id, domain.ErrStoreUnavailable, err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns all conversations, newest first.
func (r *Repo) List(ctx context.Context) ([]domain.Conversation, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w: %w", domain.ErrStoreUnavailable, err)
	}

	convs := make([]domain.Conversation, 0, len(keys))
	for _, key := range keys {
		conv, err := r.Get(ctx, strings.TrimPrefix(key, r.prefix))
		if err != nil {
			if errors.Is(err, domain.ErrConversationNotFound) {
				// Deleted between SCAN and GET.
				continue
			}
			return nil, err
		}
		convs = append(convs, conv)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})

	return convs, nil
}

// AppendMessage adds a message to an existing conversation.
func (r *Repo) AppendMessage(ctx context.Context, id string, msg domain.Message) (domain.Conversation, error) {
	conv, err := r.Get(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.now().UTC()
	}
	conv.Messages = append(conv.Messages, msg)

	if err := r.save(ctx, conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// Delete removes a conversation. Deleting an unknown ID returns
// domain.ErrConversationNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.prefix+id); err != nil {
		return fmt.Errorf("delete conversation %s: %w: %w", id, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *Repo) save(ctx context.Context, conv domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conv.ID, err)
	}
	if err := r.store.Set(ctx, r.prefix+conv.ID, data); err != nil {
		return fmt.Errorf("store conversation %s: %w: %w", conv.ID, domain.ErrStoreUnavailable, err)
	}
	return nil
}
