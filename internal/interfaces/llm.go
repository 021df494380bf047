package interfaces

import "context"

// Message represents a single chat message for LLM completion
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// LLMService - interface for chat-completion providers
type LLMService interface {
	// Chat generates a completion for the conversation history
	Chat(ctx context.Context, messages []Message) (string, error)
	Close() error
}
