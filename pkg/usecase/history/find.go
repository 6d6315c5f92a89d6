package history

import (
	"context"
	"strings"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

// ErrAmbiguousID means an ID prefix matched more than one conversation
var ErrAmbiguousID = goerr.New("conversation ID prefix is ambiguous")

// Find resolves an exact conversation ID or a unique ID prefix.
func Find(
	ctx context.Context,
	store repository.ConversationStore,
	id string,
) (*model.Conversation, error) {
	conversations, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*model.Conversation
	for _, c := range conversations {
		if string(c.ID) == id {
			return c, nil
		}
		if strings.HasPrefix(string(c.ID), id) {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 0:
		return nil, goerr.Wrap(model.ErrConversationNotFound, "no conversation matches", goerr.V("id", id))
	case 1:
		return matched[0], nil
	default:
		return nil, goerr.Wrap(ErrAmbiguousID, "narrow the prefix", goerr.V("id", id), goerr.V("matches", len(matched)))
	}
}
