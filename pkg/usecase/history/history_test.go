package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/folio/pkg/usecase/history"
	"github.com/m-mizutani/gt"
)

func seedStore(t *testing.T) repository.ConversationStore {
	t.Helper()

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	conversations := []*model.Conversation{
		{
			ID:        model.ConversationID("abc12345"),
			Title:     "What is attention?",
			CreatedAt: base,
			UpdatedAt: base,
			Messages:  []*model.Message{model.NewMessage(model.RoleUser, "What is attention?")},
		},
		{
			ID:        model.ConversationID("abd67890"),
			Title:     "Survey of RAG systems",
			CreatedAt: base.Add(time.Hour),
			UpdatedAt: base.Add(time.Hour),
			Messages:  []*model.Message{model.NewMessage(model.RoleUser, "Survey of RAG systems")},
		},
		{
			ID:        model.ConversationID("xyz11111"),
			Title:     "Emerging trends",
			CreatedAt: base.Add(2 * time.Hour),
			UpdatedAt: base.Add(2 * time.Hour),
			Messages:  []*model.Message{model.NewMessage(model.RoleUser, "Emerging trends")},
		},
	}

	store := repository.NewMemory()
	gt.NoError(t, store.SaveAll(context.Background(), conversations))
	return store
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	conversations, err := history.List(ctx, store, 0, 0)
	gt.NoError(t, err)
	gt.A(t, conversations).Length(3)
	gt.Equal(t, conversations[0].ID, model.ConversationID("xyz11111"))
	gt.Equal(t, conversations[2].ID, model.ConversationID("abc12345"))
}

func TestListOffsetAndLimit(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	page, err := history.List(ctx, store, 1, 1)
	gt.NoError(t, err)
	gt.A(t, page).Length(1)
	gt.Equal(t, page[0].ID, model.ConversationID("abd67890"))

	rest, err := history.List(ctx, store, 1, 0)
	gt.NoError(t, err)
	gt.A(t, rest).Length(2)

	beyond, err := history.List(ctx, store, 10, 0)
	gt.NoError(t, err)
	gt.A(t, beyond).Length(0)
}

func TestFindByExactID(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	c, err := history.Find(ctx, store, "abc12345")
	gt.NoError(t, err)
	gt.Equal(t, c.Title, "What is attention?")
}

func TestFindByPrefix(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	c, err := history.Find(ctx, store, "abd")
	gt.NoError(t, err)
	gt.Equal(t, c.ID, model.ConversationID("abd67890"))
}

func TestFindAmbiguousPrefix(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	_, err := history.Find(ctx, store, "ab")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, history.ErrAmbiguousID))
}

func TestFindMissing(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	_, err := history.Find(ctx, store, "zzz")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConversationNotFound))
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	removed, err := history.Forget(ctx, store, "xyz")
	gt.NoError(t, err)
	gt.Equal(t, removed.ID, model.ConversationID("xyz11111"))

	remaining, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, remaining).Length(2)

	_, err = history.Forget(ctx, store, "xyz")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConversationNotFound))
}
