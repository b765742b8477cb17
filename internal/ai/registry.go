package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/config"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry registers the three OpenAI-compatible backends with the
// process-wide generation parameters.
func NewDefaultRegistry(cfg config.OpenAIConfig) *Registry {
	base := Options{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	r := NewRegistry()
	r.Register("openai", func(_ context.Context, model string) (Provider, error) {
		o := base
		o.Model = model
		return NewOpenAIProvider(o), nil
	})
	r.Register("openrouter", func(_ context.Context, model string) (Provider, error) {
		o := base
		o.Model = model
		return NewOpenRouterProvider(o, cfg.SiteURL, cfg.AppName), nil
	})
	r.Register("ollama", func(_ context.Context, model string) (Provider, error) {
		o := base
		o.Model = model
		return NewOllamaProvider(o), nil
	})
	return r
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Configuration("unknown ai provider: " + name)
	}
	return f(ctx, model)
}
