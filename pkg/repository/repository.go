package repository

import (
	"context"
	"sort"

	"github.com/m-mizutani/folio/pkg/model"
)

// ConversationStore defines the interface for conversation list persistence.
// Persistence is best-effort: implementations must return an empty list for
// a missing or unreadable backing store instead of failing, so chat keeps
// working without durable history.
type ConversationStore interface {
	// Load returns all persisted conversations, newest first
	Load(ctx context.Context) ([]*model.Conversation, error)

	// SaveAll replaces the persisted set with exactly the given conversations.
	// Conversations without messages are never persisted.
	SaveAll(ctx context.Context, conversations []*model.Conversation) error
}

func sortByUpdatedAt(conversations []*model.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
}

func dropEmpty(conversations []*model.Conversation) []*model.Conversation {
	kept := make([]*model.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if len(c.Messages) == 0 {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
