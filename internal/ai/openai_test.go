package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/config"
)

// fakeUpstream answers /v1/chat/completions with a fixed status and body and
// remembers the last request it decoded.
type fakeUpstream struct {
	status  int
	body    string
	last    openai.ChatCompletionRequest
	headers http.Header
	calls   int
}

func (f *fakeUpstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		f.headers = r.Header.Clone()
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.last)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const helloReply = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-2024-08-06",
"choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`

func TestOpenAIProvider_Chat(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: helloReply}
	srv := up.server(t)

	p := NewOpenAIProvider(Options{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Temperature: 0.7})
	got, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "Hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", got.Content)
	assert.Equal(t, 5, got.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-2024-08-06", got.Model)

	assert.Equal(t, DefaultModel, up.last.Model)
	assert.Equal(t, DefaultMaxTokens, up.last.MaxTokens)
	assert.InDelta(t, 0.7, up.last.Temperature, 0.0001)
	assert.False(t, up.last.Stream)
	require.Len(t, up.last.Messages, 2)
	assert.Equal(t, "Hello", up.last.Messages[1].Content)
	assert.Equal(t, "Bearer sk-test", up.headers.Get("Authorization"))
}

func TestOpenAIProvider_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			kind:   apperr.KindQuotaExceeded,
		},
		{
			name:   "rate limit without quota code",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			kind:   apperr.KindQuotaExceeded,
		},
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			kind:   apperr.KindAuthentication,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"The server had an error","type":"server_error","code":null}}`,
			kind:   apperr.KindUpstream,
		},
		{
			name:   "non json body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			kind:   apperr.KindUpstream,
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"id":"x","object":"chat.completion","model":"gpt-4o","choices":[],"usage":{"total_tokens":1}}`,
			kind:   apperr.KindUpstream,
		},
		{
			name:   "empty content",
			status: http.StatusOK,
			body:   `{"id":"x","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`,
			kind:   apperr.KindUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := &fakeUpstream{status: tc.status, body: tc.body}
			srv := up.server(t)

			p := NewOpenAIProvider(Options{BaseURL: srv.URL + "/v1", APIKey: "sk-test"})
			_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), err.Error())
			assert.Equal(t, 1, up.calls, "no retries")
		})
	}
}

func TestOpenRouterProvider_AttributionHeaders(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: helloReply}
	srv := up.server(t)

	p := NewOpenRouterProvider(Options{BaseURL: srv.URL + "/v1", APIKey: "or-key", Model: "openai/gpt-4o"}, "https://chat.example.com", "chat-relay")
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", up.headers.Get("HTTP-Referer"))
	assert.Equal(t, "chat-relay", up.headers.Get("X-Title"))
	assert.Equal(t, "openai/gpt-4o", up.last.Model)
}

func TestOllamaProvider_Defaults(t *testing.T) {
	p := NewOllamaProvider(Options{Model: DefaultModel})
	assert.Equal(t, ollamaModel, p.Model())
}

func TestRegistry(t *testing.T) {
	up := &fakeUpstream{status: http.StatusOK, body: helloReply}
	srv := up.server(t)

	reg := NewDefaultRegistry(config.OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "k", MaxTokens: 10})
	p, err := reg.Get(context.Background(), " OpenAI ", "gpt-4o-mini")
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", up.last.Model)
	assert.Equal(t, 10, up.last.MaxTokens)

	_, err = reg.Get(context.Background(), "anthropic", "x")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}
