package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/folio/pkg/model"
)

// memoryStore keeps conversations in process memory. Used for tests and for
// running without any configured history location.
type memoryStore struct {
	mu            sync.RWMutex
	conversations []*model.Conversation
}

// NewMemory creates an empty in-memory ConversationStore
func NewMemory() ConversationStore {
	return &memoryStore{}
}

func (x *memoryStore) Load(ctx context.Context) ([]*model.Conversation, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	loaded := make([]*model.Conversation, len(x.conversations))
	copy(loaded, x.conversations)
	sortByUpdatedAt(loaded)
	return loaded, nil
}

func (x *memoryStore) SaveAll(ctx context.Context, conversations []*model.Conversation) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.conversations = dropEmpty(conversations)
	return nil
}
