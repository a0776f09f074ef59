package agent

// RunStatus is the asynchronous lifecycle state of one assistant run.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
	StatusIncomplete     RunStatus = "incomplete"
)

// TerminalFailure reports whether the run ended without producing a result.
func (s RunStatus) TerminalFailure() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusExpired, StatusIncomplete:
		return true
	}
	return false
}

// Run is one execution of the assistant against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
}

// RequiredAction carries the tool calls the assistant is waiting on.
type RequiredAction struct {
	Type              string `json:"type"`
	SubmitToolOutputs struct {
		ToolCalls []ToolCall `json:"tool_calls"`
	} `json:"submit_tool_outputs"`
}

// ToolCalls returns the requested tool calls, or nil when the run is not
// waiting on any.
func (r *Run) ToolCalls() []ToolCall {
	if r.RequiredAction == nil {
		return nil
	}
	return r.RequiredAction.SubmitToolOutputs.ToolCalls
}

// ToolCall is a named function-call request with string-encoded JSON
// arguments.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Message is one thread message. Content parts other than text are ignored
// by this relay.
type Message struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text struct {
		Value string `json:"value"`
	} `json:"text"`
}

// Text returns the message's primary text content, or "" when it has none.
func (m Message) Text() string {
	for _, p := range m.Content {
		if p.Type == "text" {
			return p.Text.Value
		}
	}
	return ""
}
