// Package ai talks to OpenAI-compatible chat completion APIs.
package ai

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the first choice of a non-streaming completion. Usage is
// passed through exactly as the upstream reported it.
type Completion struct {
	Content string
	Usage   openai.Usage
	Model   string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (*Completion, error)
}
