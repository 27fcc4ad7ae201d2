package domain

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single role-tagged message sent to the completion model.
type ChatMessage struct {
	Role    string
	Content string
}

// Completer is the chat-completion contract.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ValidRole reports whether role is one of the conversation message roles
// accepted from clients.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
