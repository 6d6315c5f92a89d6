package history

import (
	"context"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
)

// List returns stored conversations newest first. A non-positive limit
// returns everything from offset onward.
func List(
	ctx context.Context,
	store repository.ConversationStore,
	offset, limit int,
) ([]*model.Conversation, error) {
	conversations, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if offset >= len(conversations) {
		return nil, nil
	}
	if offset > 0 {
		conversations = conversations[offset:]
	}
	if limit > 0 && limit < len(conversations) {
		conversations = conversations[:limit]
	}

	return conversations, nil
}
