package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// fileStore persists the conversation list as a single JSON document.
type fileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Conversations []*model.Conversation `json:"conversations"`
}

// NewFile creates a ConversationStore backed by a JSON file at path. The
// file and its directory are created on first save.
func NewFile(path string) ConversationStore {
	return &fileStore{path: path}
}

func (x *fileStore) Load(ctx context.Context) ([]*model.Conversation, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	raw, err := os.ReadFile(x.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.From(ctx).Warn("failed to read history file, starting empty",
				"path", x.path, "error", err)
		}
		return nil, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		logging.From(ctx).Warn("history file is corrupt, starting empty",
			"path", x.path, "error", err)
		return nil, nil
	}

	sortByUpdatedAt(doc.Conversations)
	return doc.Conversations, nil
}

func (x *fileStore) SaveAll(ctx context.Context, conversations []*model.Conversation) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	doc := &fileDocument{Conversations: dropEmpty(conversations)}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal conversations")
	}

	if dir := filepath.Dir(x.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return goerr.Wrap(err, "failed to create history directory", goerr.V("dir", dir))
		}
	}

	// Write-then-rename keeps the previous file intact on a crash mid-write
	tmp := x.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return goerr.Wrap(err, "failed to write history file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, x.path); err != nil {
		return goerr.Wrap(err, "failed to replace history file", goerr.V("path", x.path))
	}

	return nil
}
