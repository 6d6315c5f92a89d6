package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrEmptyMessage rejects blank input. Callers treat it as a no-op.
	ErrEmptyMessage = goerr.New("empty message")
	// ErrSessionBusy rejects a send while another is in flight. Concurrent
	// sends are rejected, never queued.
	ErrSessionBusy = goerr.New("another request is in flight")
)

// ReadyCheck gates sending. It returns nil when the corpus can answer
// questions, or an error describing why it cannot yet.
type ReadyCheck func(ctx context.Context) error

// Session manages an interactive Q&A session over the paper library. It owns
// the active conversation, calls the backend per turn, and persists the full
// conversation list after every exchange. A failed exchange is recorded as an
// assistant message carrying the failure text, so the thread survives errors.
type Session struct {
	backend adapter.Backend
	store   repository.ConversationStore

	readyCheck ReadyCheck

	mu       sync.Mutex
	pending  bool
	active   *model.Conversation // nil means unsaved/new
	messages []*model.Message
	sources  []model.Source
	mode     model.AgentMode
	nResults int
}

// NewInput contains parameters for creating a chat session
type NewInput struct {
	Backend adapter.Backend
	Store   repository.ConversationStore

	Mode       model.AgentMode // optional, defaults to qa
	NResults   int             // optional, defaults per mode
	ReadyCheck ReadyCheck      // optional send gate
}

func New(input NewInput) (*Session, error) {
	if input.Backend == nil {
		return nil, goerr.New("backend is required")
	}

	store := input.Store
	if store == nil {
		store = repository.NewMemory()
	}

	mode := input.Mode
	if mode == "" {
		mode = model.ModeQA
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		backend:    input.Backend,
		store:      store,
		readyCheck: input.ReadyCheck,
		mode:       mode,
		nResults:   input.NResults,
	}, nil
}

// Send submits one question and returns the resulting assistant message.
// Empty input and overlapping sends are rejected with ErrEmptyMessage and
// ErrSessionBusy before anything is appended or sent. Backend failures do
// not return an error: they come back as an assistant message recording the
// failure, and the conversation continues.
func (s *Session) Send(ctx context.Context, text string) (*model.Message, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, ErrEmptyMessage
	}

	// The pending flag is taken before any suspension point so a second
	// send cannot interleave with the round-trip of the first.
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.pending = true
	mode := s.mode
	nResults := s.nResults
	if nResults <= 0 {
		nResults = mode.DefaultResults()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	if s.readyCheck != nil {
		if err := s.readyCheck(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, model.NewMessage(model.RoleUser, question))
	s.mu.Unlock()

	var assistant *model.Message
	answer, err := s.ask(ctx, mode, question, nResults)
	if err != nil {
		logging.From(ctx).Debug("backend request failed", "mode", mode, "error", err)
		assistant = model.NewMessage(model.RoleAssistant, "Request failed: "+err.Error())
	} else {
		assistant = answer.Message()
	}

	s.mu.Lock()
	s.messages = append(s.messages, assistant)
	if err == nil {
		s.sources = answer.Sources
	}
	s.mu.Unlock()

	s.persist(ctx)

	return assistant, nil
}

func (s *Session) ask(ctx context.Context, mode model.AgentMode, question string, nResults int) (*model.Answer, error) {
	if mode.Agentic() {
		return s.backend.Agent(ctx, mode, question, nResults)
	}
	return s.backend.Query(ctx, question, nResults)
}

// StartNew commits the current thread if it has any messages and opens a
// fresh one with an empty source panel.
func (s *Session) StartNew(ctx context.Context) error {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	hasMessages := len(s.messages) > 0
	s.mu.Unlock()

	if hasMessages {
		s.persist(ctx)
	}

	s.mu.Lock()
	s.active = nil
	s.messages = nil
	s.sources = nil
	s.mu.Unlock()

	return nil
}

// Resume makes a persisted conversation active and restores the source panel
// from its most recent assistant message.
func (s *Session) Resume(ctx context.Context, id model.ConversationID) error {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.mu.Unlock()

	conversations, err := s.store.Load(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load conversations")
	}

	for _, c := range conversations {
		if c.ID != id {
			continue
		}

		messages := make([]*model.Message, len(c.Messages))
		copy(messages, c.Messages)

		// work on a copy so the stored entry is never mutated in place
		active := *c

		s.mu.Lock()
		s.active = &active
		s.messages = messages
		s.sources = c.LastSources()
		s.mu.Unlock()
		return nil
	}

	return goerr.Wrap(model.ErrConversationNotFound, "cannot resume", goerr.V("id", id))
}

// Discard removes a conversation from the store. Discarding the active
// conversation also resets the session to the new-conversation state.
func (s *Session) Discard(ctx context.Context, id model.ConversationID) error {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.mu.Unlock()

	conversations, err := s.store.Load(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load conversations")
	}

	kept := make([]*model.Conversation, 0, len(conversations))
	found := false
	for _, c := range conversations {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return goerr.Wrap(model.ErrConversationNotFound, "cannot discard", goerr.V("id", id))
	}

	if err := s.store.SaveAll(ctx, kept); err != nil {
		return goerr.Wrap(err, "failed to save conversations")
	}

	s.mu.Lock()
	if s.active != nil && s.active.ID == id {
		s.active = nil
		s.messages = nil
		s.sources = nil
	}
	s.mu.Unlock()

	return nil
}

// persist hands a snapshot of the active conversation to the store, creating
// the conversation with a derived title on its first turn. Storage failures
// are absorbed: history is a best-effort cache, never a blocker for chat.
func (s *Session) persist(ctx context.Context) {
	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return
	}

	snapshot := make([]*model.Message, len(s.messages))
	copy(snapshot, s.messages)

	if s.active == nil {
		s.active = model.NewConversation(snapshot)
	} else {
		s.active.Messages = snapshot
		s.active.Touch()
	}
	saved := *s.active
	s.mu.Unlock()

	conversations, err := s.store.Load(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to load conversations before save", "error", err)
		conversations = nil
	}

	merged := []*model.Conversation{&saved}
	for _, c := range conversations {
		if c.ID == saved.ID {
			continue
		}
		merged = append(merged, c)
	}

	if err := s.store.SaveAll(ctx, merged); err != nil {
		logging.From(ctx).Warn("failed to persist conversation", "id", saved.ID, "error", err)
	}
}

// SetMode switches the agent mode for subsequent sends
func (s *Session) SetMode(mode model.AgentMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// Mode returns the current agent mode
func (s *Session) Mode() model.AgentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Messages returns a copy of the active message sequence
func (s *Session) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]*model.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// Sources returns the source panel contents: the sources of the last
// successful answer, unchanged by failed exchanges
func (s *Session) Sources() []model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]model.Source, len(s.sources))
	copy(sources, s.sources)
	return sources
}

// Active returns the persisted identity of the current conversation, nil
// while the thread is new and unsaved
func (s *Session) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending reports whether a send is in flight
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
