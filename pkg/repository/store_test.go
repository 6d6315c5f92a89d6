package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/gt"
)

// testConversation builds a two-turn conversation with fixed UTC timestamps
// so persisted and reloaded values compare equal.
func testConversation(question string, at time.Time) *model.Conversation {
	user := model.NewMessage(model.RoleUser, question)
	user.CreatedAt = at

	assistant := model.NewMessage(model.RoleAssistant, "answer to "+question)
	assistant.CreatedAt = at.Add(time.Second)
	assistant.Sources = []model.Source{
		{Source: "a.pdf", Text: "excerpt", Distance: 0.25, Section: "Methods"},
	}

	c := model.NewConversation([]*model.Message{user, assistant})
	c.CreatedAt = at
	c.UpdatedAt = at.Add(time.Second)
	return c
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "folio", "history.json")
	store := repository.NewFile(path)

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	conversations := []*model.Conversation{
		testConversation("newest question", base.Add(2*time.Hour)),
		testConversation("older question", base),
	}

	gt.NoError(t, store.SaveAll(ctx, conversations))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.Equal(t, loaded, conversations)
}

func TestFileStoreMissingFile(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "nonexistent.json"))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(0)
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	gt.NoError(t, os.WriteFile(path, []byte("{broken json!!"), 0600))

	store := repository.NewFile(path)
	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(0)
}

func TestFileStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "history.json"))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	oldest := testConversation("first", base)
	middle := testConversation("second", base.Add(time.Hour))
	newest := testConversation("third", base.Add(2*time.Hour))

	// Save oldest-first; Load must return newest-first regardless
	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{oldest, middle, newest}))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(3)
	gt.Equal(t, loaded[0].ID, newest.ID)
	gt.Equal(t, loaded[1].ID, middle.ID)
	gt.Equal(t, loaded[2].ID, oldest.ID)
}

func TestFileStoreDeleteByFilteredSave(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "history.json"))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	keep := testConversation("keep me", base.Add(time.Hour))
	drop := testConversation("drop me", base)

	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{keep, drop}))
	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{keep}))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(1)
	gt.Equal(t, loaded[0].ID, keep.ID)
}

func TestFileStoreSkipsEmptyConversations(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "history.json"))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	real := testConversation("has messages", base)
	empty := model.NewConversation(nil)

	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{empty, real}))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(1)
	gt.Equal(t, loaded[0].ID, real.ID)
}

func TestFileStoreUpdateExisting(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFile(filepath.Join(t.TempDir(), "history.json"))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	c := testConversation("evolving thread", base)
	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{c}))

	followup := model.NewMessage(model.RoleUser, "and another thing")
	followup.CreatedAt = base.Add(time.Minute)
	c.Messages = append(c.Messages, followup)
	c.UpdatedAt = base.Add(time.Minute)
	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{c}))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(1)
	gt.A(t, loaded[0].Messages).Length(3)
	gt.Equal(t, loaded[0].Messages[2].Content, "and another thing")
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	conversations := []*model.Conversation{
		testConversation("newest", base.Add(time.Hour)),
		testConversation("oldest", base),
	}

	gt.NoError(t, store.SaveAll(ctx, conversations))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.Equal(t, loaded, conversations)
}

func TestMemoryStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	oldest := testConversation("old", base)
	newest := testConversation("new", base.Add(time.Hour))

	gt.NoError(t, store.SaveAll(ctx, []*model.Conversation{oldest, newest}))

	loaded, err := store.Load(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(2)
	gt.Equal(t, loaded[0].ID, newest.ID)
}
