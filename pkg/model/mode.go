package model

import "github.com/m-mizutani/goerr/v2"

var ErrInvalidAgentMode = goerr.New("invalid agent mode")

// AgentMode selects how a question is framed and which backend endpoint
// answers it. ModeQA is the plain question/answer path; the other modes run
// the backend's research agents.
type AgentMode string

const (
	ModeQA         AgentMode = "qa"
	ModeSynthesize AgentMode = "synthesize"
	ModeTrends     AgentMode = "trends"
	ModeGaps       AgentMode = "gaps"
)

// AgentModes lists all selectable modes in display order
func AgentModes() []AgentMode {
	return []AgentMode{ModeQA, ModeSynthesize, ModeTrends, ModeGaps}
}

// Validate checks if the agent mode is valid
func (m AgentMode) Validate() error {
	switch m {
	case ModeQA, ModeSynthesize, ModeTrends, ModeGaps:
		return nil
	default:
		return goerr.Wrap(ErrInvalidAgentMode, "unknown mode", goerr.V("mode", m))
	}
}

// Agentic reports whether the mode routes to the analysis endpoint rather
// than the direct-answer endpoint
func (m AgentMode) Agentic() bool {
	return m == ModeSynthesize || m == ModeTrends || m == ModeGaps
}

// DefaultResults is the backend's default retrieval width for the mode
func (m AgentMode) DefaultResults() int {
	if m.Agentic() {
		return 10
	}
	return 5
}
