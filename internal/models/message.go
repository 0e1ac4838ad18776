package models

import "time"

// Message represents an individual entry of a conversation held by a chat session. User messages are
// frozen when they are created; the content of an assistant message grows fragment by fragment while
// its response is streaming and is frozen once the stream ends or fails.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// Model is the short model name that produced the message. Assistant only.
	Model string
	// UseThinking records whether the structured step-by-step prompt was requested. Assistant only.
	UseThinking bool

	StreamingState StreamingState
}

// Role represents the role of a message participant.
type Role string

// StreamingState tracks an assistant message through its response.
type StreamingState string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the model.
	RoleAssistant Role = "assistant"

	StreamingStateLoading   StreamingState = "loading"
	StreamingStateStreaming StreamingState = "streaming"
	StreamingStateEnded     StreamingState = "ended"
	StreamingStateFailed    StreamingState = "failed"
)

// Completion is a single-shot request to an upstream provider: one system prompt, one user message.
type Completion struct {
	// Model is the provider-specific upstream model identifier.
	Model        string
	SystemPrompt string
	Message      string

	Temperature float32
	MaxTokens   int
}
