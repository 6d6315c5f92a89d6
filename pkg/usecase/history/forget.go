package history

import (
	"context"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

// Forget removes a conversation, resolved by ID or unique prefix, and
// returns the removed entry.
func Forget(
	ctx context.Context,
	store repository.ConversationStore,
	id string,
) (*model.Conversation, error) {
	target, err := Find(ctx, store, id)
	if err != nil {
		return nil, err
	}

	conversations, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]*model.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if c.ID != target.ID {
			kept = append(kept, c)
		}
	}

	if err := store.SaveAll(ctx, kept); err != nil {
		return nil, goerr.Wrap(err, "failed to save conversations", goerr.V("id", target.ID))
	}

	return target, nil
}
