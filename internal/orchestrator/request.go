package orchestrator

import "strings"

// FallbackPrompt is submitted when the request carries no usable message,
// so the agent is never invoked with empty input.
const FallbackPrompt = "Find top signals"

// ChatMessage is one entry of the widget's message list.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat. The widget sends either a
// message list or a flat text field, optionally with scan constraints.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Text        string        `json:"text"`
	TimeFilter  string        `json:"time_filter"`
	SourceTypes []string      `json:"source_types"`
	TechMode    bool          `json:"tech_mode"`
}

// UserMessage extracts the message to submit: the last entry of the message
// list when present, else the flat text field, else the fallback prompt.
func (r ChatRequest) UserMessage() string {
	if len(r.Messages) > 0 {
		if msg := strings.TrimSpace(r.Messages[len(r.Messages)-1].Content); msg != "" {
			return msg
		}
	}
	if msg := strings.TrimSpace(r.Text); msg != "" {
		return msg
	}
	return FallbackPrompt
}
