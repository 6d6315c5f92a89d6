package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is one retrieved excerpt backing an answer. Field names follow the
// backend wire shape so decoded sources can be persisted as-is.
type Source struct {
	Source   string  `json:"source"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
	Section  string  `json:"section,omitempty"`
}

// Relevance converts the distance score (dissimilarity, lower is better) into
// a display percentage: clamp(round((1-distance)*100), 0, 100). It is always
// derived, never stored.
func (s Source) Relevance() int {
	r := int(math.Round((1 - s.Distance) * 100))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// Message is a single turn in a conversation. Messages are immutable once
// appended; a failed exchange appends an assistant message carrying the
// failure text instead of mutating the user turn.
type Message struct {
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	AgentMode AgentMode `json:"agent_mode,omitempty"`
}

// NewMessage creates a message with a fresh ID and timestamp
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
