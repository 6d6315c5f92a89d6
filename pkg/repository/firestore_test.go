package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/gt"
)

func setupFirestore(t *testing.T) repository.ConversationStore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	bucket := os.Getenv("TEST_STORAGE_BUCKET")

	if projectID == "" || databaseID == "" || bucket == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID, TEST_FIRESTORE_DATABASE_ID and TEST_STORAGE_BUCKET must be set to run Firestore tests")
	}

	ctx := context.Background()
	contents, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	store, err := repository.NewFirestore(ctx, projectID, databaseID, contents)
	gt.NoError(t, err)

	return store
}

func TestFirestoreSaveAndLoad(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	existing, err := store.Load(ctx)
	gt.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	c := testConversation("firestore round trip", base)

	gt.NoError(t, store.SaveAll(ctx, append(existing, c)))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)

	var found *model.Conversation
	for _, got := range loaded {
		if got.ID == c.ID {
			found = got
		}
	}
	gt.V(t, found).NotNil()
	gt.Equal(t, found.Title, c.Title)
	gt.A(t, found.Messages).Length(2)
	gt.Equal(t, found.Messages[0].Content, "firestore round trip")
	gt.A(t, found.Messages[1].Sources).Length(1)
}

func TestFirestoreDeleteByFilteredSave(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	existing, err := store.Load(ctx)
	gt.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	doomed := testConversation("to be removed", base)

	gt.NoError(t, store.SaveAll(ctx, append(existing, doomed)))

	// Saving without the conversation must remove its document and contents
	after, err := store.Load(ctx)
	gt.NoError(t, err)
	kept := make([]*model.Conversation, 0, len(after))
	for _, c := range after {
		if c.ID != doomed.ID {
			kept = append(kept, c)
		}
	}
	gt.NoError(t, store.SaveAll(ctx, kept))

	final, err := store.Load(ctx)
	gt.NoError(t, err)
	for _, c := range final {
		if c.ID == doomed.ID {
			t.Errorf("conversation %s should have been deleted", c.ID)
		}
	}
}

func TestFirestoreOrdering(t *testing.T) {
	store := setupFirestore(t)
	ctx := context.Background()

	existing, err := store.Load(ctx)
	gt.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	older := testConversation("older thread", base.Add(-time.Hour))
	newer := testConversation("newer thread", base)

	gt.NoError(t, store.SaveAll(ctx, append(existing, older, newer)))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Longer(1)

	for i := 0; i < len(loaded)-1; i++ {
		if loaded[i].UpdatedAt.Before(loaded[i+1].UpdatedAt) {
			t.Errorf("conversations not ordered newest-first: [%d] %v before [%d] %v",
				i, loaded[i].UpdatedAt, i+1, loaded[i+1].UpdatedAt)
		}
	}
}
