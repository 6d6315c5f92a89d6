package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var ErrConversationNotFound = goerr.New("conversation not found")

type ConversationID string

// NewConversationID generates a new unique ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

// titleLimit is the maximum rune length of a derived conversation title
const titleLimit = 50

// DeriveTitle builds a conversation title from its first user message:
// the message itself when it fits, otherwise a 50-rune prefix with an
// ellipsis marker appended.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

// Conversation is an ordered, append-only sequence of messages with a
// derived title. A conversation with zero messages is never persisted.
type Conversation struct {
	ID        ConversationID `json:"id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Do not save messages in Firestore documents due to size limitation
	Messages []*Message `json:"messages" firestore:"-"`
}

// NewConversation creates a conversation around the given messages, deriving
// the title from the first user message.
func NewConversation(messages []*Message) *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        NewConversationID(),
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range messages {
		if m.Role == RoleUser {
			c.Title = DeriveTitle(m.Content)
			break
		}
	}
	if c.Title == "" {
		c.Title = "(untitled)"
	}
	return c
}

// Touch bumps UpdatedAt, preserving the UpdatedAt >= CreatedAt invariant
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now()
}

// LastSources returns the sources of the most recent assistant message,
// searching from the end of the sequence backward. Empty if no assistant
// message carries sources.
func (c *Conversation) LastSources() []Source {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == RoleAssistant && len(m.Sources) > 0 {
			return m.Sources
		}
	}
	return nil
}
