package repository

import (
	"context"
	"encoding/json"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const conversationCollection = "conversations"

// firestoreStore implements ConversationStore using Firestore for
// conversation metadata and a Storage adapter for message contents.
type firestoreStore struct {
	client   *firestore.Client
	contents adapter.Storage
}

// NewFirestore creates a ConversationStore backed by Firestore. Message
// bodies go to the contents storage; only metadata lives in documents.
func NewFirestore(ctx context.Context, projectID, databaseID string, contents adapter.Storage) (ConversationStore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	return &firestoreStore{
		client:   client,
		contents: contents,
	}, nil
}

func (x *firestoreStore) Load(ctx context.Context) ([]*model.Conversation, error) {
	it := x.client.Collection(conversationCollection).
		OrderBy("UpdatedAt", firestore.Desc).
		Documents(ctx)
	defer it.Stop()

	var conversations []*model.Conversation
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			// A denied project is a config problem, not a transient outage
			if status.Code(err) == codes.PermissionDenied {
				return nil, goerr.Wrap(err, "firestore access denied")
			}
			logging.From(ctx).Warn("failed to list conversations, starting empty",
				"code", status.Code(err), "error", err)
			return nil, nil
		}

		var c model.Conversation
		if err := doc.DataTo(&c); err != nil {
			logging.From(ctx).Warn("skipping unreadable conversation document",
				"doc", doc.Ref.ID, "error", err)
			continue
		}

		messages, err := x.loadContents(ctx, c.ID)
		if err != nil {
			logging.From(ctx).Warn("skipping conversation without readable contents",
				"id", c.ID, "error", err)
			continue
		}
		if len(messages) == 0 {
			// orphan metadata document
			continue
		}
		c.Messages = messages

		conversations = append(conversations, &c)
	}

	sortByUpdatedAt(conversations)
	return conversations, nil
}

func (x *firestoreStore) SaveAll(ctx context.Context, conversations []*model.Conversation) error {
	kept := dropEmpty(conversations)

	keptIDs := make(map[string]bool, len(kept))
	for _, c := range kept {
		keptIDs[string(c.ID)] = true
	}

	stale, err := x.listIDs(ctx)
	if err != nil {
		return err
	}

	col := x.client.Collection(conversationCollection)
	for _, c := range kept {
		if _, err := col.Doc(string(c.ID)).Set(ctx, c); err != nil {
			return goerr.Wrap(err, "failed to save conversation", goerr.V("id", c.ID))
		}
		if err := x.saveContents(ctx, c); err != nil {
			return err
		}
	}

	for _, id := range stale {
		if keptIDs[id] {
			continue
		}
		if _, err := col.Doc(id).Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete conversation", goerr.V("id", id))
		}
		if err := x.contents.Delete(ctx, contentsKey(model.ConversationID(id))); err != nil {
			return err
		}
	}

	return nil
}

func (x *firestoreStore) listIDs(ctx context.Context) ([]string, error) {
	it := x.client.Collection(conversationCollection).Select().Documents(ctx)
	defer it.Stop()

	var ids []string
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list conversation documents")
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func contentsKey(id model.ConversationID) string {
	return "conversations/" + string(id) + ".json"
}

func (x *firestoreStore) saveContents(ctx context.Context, c *model.Conversation) error {
	w, err := x.contents.Put(ctx, contentsKey(c.ID))
	if err != nil {
		return goerr.Wrap(err, "failed to open contents writer", goerr.V("id", c.ID))
	}

	if err := json.NewEncoder(w).Encode(c.Messages); err != nil {
		w.Close()
		return goerr.Wrap(err, "failed to encode messages", goerr.V("id", c.ID))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish contents write", goerr.V("id", c.ID))
	}

	return nil
}

func (x *firestoreStore) loadContents(ctx context.Context, id model.ConversationID) ([]*model.Message, error) {
	r, err := x.contents.Get(ctx, contentsKey(id))
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()

	var messages []*model.Message
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, goerr.Wrap(err, "failed to decode messages", goerr.V("id", id))
	}
	return messages, nil
}
