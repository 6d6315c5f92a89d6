package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "short message kept as-is",
			input:    "What is hybrid retrieval?",
			expected: "What is hybrid retrieval?",
		},
		{
			name:     "exactly fifty runes kept as-is",
			input:    strings.Repeat("a", 50),
			expected: strings.Repeat("a", 50),
		},
		{
			name:     "fifty-one runes truncated with ellipsis",
			input:    strings.Repeat("a", 51),
			expected: strings.Repeat("a", 50) + "...",
		},
		{
			name:     "surrounding whitespace trimmed first",
			input:    "  leading and trailing  ",
			expected: "leading and trailing",
		},
		{
			name:     "multibyte runes counted as single characters",
			input:    strings.Repeat("あ", 51),
			expected: strings.Repeat("あ", 50) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.V(t, model.DeriveTitle(tt.input)).Equal(tt.expected)
		})
	}
}

func TestSourceRelevance(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected int
	}{
		{name: "typical distance", distance: 0.1, expected: 90},
		{name: "zero distance is full relevance", distance: 0, expected: 100},
		{name: "distance of one is zero relevance", distance: 1, expected: 0},
		{name: "distance above one clamps to zero", distance: 1.7, expected: 0},
		{name: "negative distance clamps to hundred", distance: -0.5, expected: 100},
		{name: "rounding half up", distance: 0.345, expected: 66},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.Source{Source: "a.pdf", Text: "x", Distance: tt.distance}
			gt.V(t, s.Relevance()).Equal(tt.expected)
		})
	}
}

func TestAgentMode(t *testing.T) {
	for _, m := range model.AgentModes() {
		gt.NoError(t, m.Validate())
	}
	gt.Error(t, model.AgentMode("summarize").Validate())
	gt.Error(t, model.AgentMode("").Validate())

	gt.False(t, model.ModeQA.Agentic())
	gt.True(t, model.ModeSynthesize.Agentic())
	gt.True(t, model.ModeTrends.Agentic())
	gt.True(t, model.ModeGaps.Agentic())

	gt.V(t, model.ModeQA.DefaultResults()).Equal(5)
	gt.V(t, model.ModeGaps.DefaultResults()).Equal(10)
}

func TestIndexState(t *testing.T) {
	gt.False(t, model.IndexStateIdle.Terminal())
	gt.False(t, model.IndexStateIndexing.Terminal())
	gt.True(t, model.IndexStateDone.Terminal())
	gt.True(t, model.IndexStateError.Terminal())
}

func TestIndexStatusSummary(t *testing.T) {
	t.Run("done includes counts", func(t *testing.T) {
		st := &model.IndexStatus{State: model.IndexStateDone, PapersDone: 3, TotalChunks: 120}
		gt.V(t, st.Summary()).Equal("Indexed 3 papers (120 chunks)")
	})

	t.Run("error includes detail", func(t *testing.T) {
		st := &model.IndexStatus{State: model.IndexStateError, Error: "papers directory not found"}
		gt.V(t, st.Summary()).Equal("Indexing failed: papers directory not found")
	})

	t.Run("error without detail", func(t *testing.T) {
		st := &model.IndexStatus{State: model.IndexStateError}
		gt.V(t, st.Summary()).Equal("Indexing failed: unknown error")
	})

	t.Run("non-terminal states have no summary", func(t *testing.T) {
		st := &model.IndexStatus{State: model.IndexStateIndexing, PapersDone: 1}
		gt.V(t, st.Summary()).Equal("")
	})
}

func TestNewConversation(t *testing.T) {
	t.Run("title derived from first user message", func(t *testing.T) {
		msgs := []*model.Message{
			model.NewMessage(model.RoleUser, "What is attention?"),
			model.NewMessage(model.RoleAssistant, "Attention is ..."),
		}
		c := model.NewConversation(msgs)
		gt.V(t, c.Title).Equal("What is attention?")
		gt.V(t, len(c.Messages)).Equal(2)
		gt.True(t, !c.UpdatedAt.Before(c.CreatedAt))
	})

	t.Run("untitled without a user message", func(t *testing.T) {
		c := model.NewConversation(nil)
		gt.V(t, c.Title).Equal("(untitled)")
	})
}

func TestConversationTouch(t *testing.T) {
	c := model.NewConversation([]*model.Message{model.NewMessage(model.RoleUser, "hi")})
	created := c.CreatedAt
	time.Sleep(time.Millisecond)
	c.Touch()
	gt.True(t, c.UpdatedAt.After(created))
	gt.V(t, c.CreatedAt).Equal(created)
}

func TestConversationLastSources(t *testing.T) {
	src1 := []model.Source{{Source: "a.pdf", Text: "alpha", Distance: 0.2}}
	src2 := []model.Source{{Source: "b.pdf", Text: "beta", Distance: 0.4}}

	user := model.NewMessage(model.RoleUser, "q1")
	first := model.NewMessage(model.RoleAssistant, "a1")
	first.Sources = src1
	second := model.NewMessage(model.RoleAssistant, "a2")
	second.Sources = src2
	errTurn := model.NewMessage(model.RoleAssistant, "request failed")

	t.Run("most recent assistant sources win", func(t *testing.T) {
		c := model.NewConversation([]*model.Message{user, first, second})
		gt.V(t, c.LastSources()).Equal(src2)
	})

	t.Run("sourceless assistant turns are skipped", func(t *testing.T) {
		c := model.NewConversation([]*model.Message{user, first, errTurn})
		gt.V(t, c.LastSources()).Equal(src1)
	})

	t.Run("empty when nothing carries sources", func(t *testing.T) {
		c := model.NewConversation([]*model.Message{user, errTurn})
		gt.V(t, len(c.LastSources())).Equal(0)
	})
}
