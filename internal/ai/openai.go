package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 2000
	DefaultTemperature = float32(0.7)
)

// Options are the per-process generation parameters. They are fixed at
// construction; callers cannot override them per request.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	HTTPClient  *http.Client
}

type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIProvider(opts Options) *OpenAIProvider {
	cc := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cc.HTTPClient = opts.HTTPClient
	} else {
		cc.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	return newProvider(cc, opts)
}

func newProvider(cc openai.ClientConfig, opts Options) *OpenAIProvider {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cc),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      false,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, apperr.Upstream("no content returned", nil)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Usage:   resp.Usage,
		Model:   model,
	}, nil
}
