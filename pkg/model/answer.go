package model

// Answer is the backend's reply to one question, unified across the plain
// retrieval endpoint and the agent endpoint. Text holds the generated answer
// or analysis; Mode records which path produced it.
type Answer struct {
	Question string
	Text     string
	Sources  []Source
	Mode     AgentMode
}

// Message converts the answer into an assistant turn for the conversation
// log. Plain retrieval answers carry no mode tag; absence means qa.
func (a *Answer) Message() *Message {
	msg := NewMessage(RoleAssistant, a.Text)
	msg.Sources = a.Sources
	if a.Mode.Agentic() {
		msg.AgentMode = a.Mode
	}
	return msg
}
