// Package llm defines the chat-model surface a pipeline.Node's processing
// function calls into. Prompts, tool schemas, and quality heuristics are a
// node function's concern, not this package's; Model only standardises the
// provider boundary.
package llm

import "context"

// Model is the common chat interface across providers (Anthropic, OpenAI,
// Google). A pipeline.Node processing function holds one of these, not a
// provider-specific client, so swapping providers never touches node code.
type Model interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a chat-style conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a function the model may call, in JSON Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a model's response: generated text, requested tool calls, or
// both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one invocation the model is requesting.
type ToolCall struct {
	Name  string
	Input map[string]any
}
