package domain

import "time"

// Message is one turn in a conversation.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Conversation is a named thread of role-tagged messages.
type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
}
