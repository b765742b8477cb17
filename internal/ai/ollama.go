package ai

const (
	ollamaBaseURL = "http://localhost:11434/v1"
	ollamaModel   = "llama3:latest"
)

// NewOllamaProvider uses Ollama's OpenAI-compatible endpoint. Ollama ignores
// the bearer token, so an empty key is allowed.
func NewOllamaProvider(opts Options) *OpenAIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = ollamaBaseURL
	}
	if opts.Model == "" || opts.Model == DefaultModel {
		opts.Model = ollamaModel
	}
	if opts.APIKey == "" {
		opts.APIKey = "ollama"
	}
	return NewOpenAIProvider(opts)
}
