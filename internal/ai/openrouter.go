package ai

import (
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// headerDoer adds OpenRouter's attribution headers to every request.
type headerDoer struct {
	next    *http.Client
	siteURL string
	appName string
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	if d.siteURL != "" {
		req.Header.Set("HTTP-Referer", d.siteURL)
	}
	if d.appName != "" {
		req.Header.Set("X-Title", d.appName)
	}
	return d.next.Do(req)
}

func NewOpenRouterProvider(opts Options, siteURL, appName string) *OpenAIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = openRouterBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 90 * time.Second}
	}

	cc := openai.DefaultConfig(opts.APIKey)
	cc.BaseURL = opts.BaseURL
	cc.HTTPClient = &headerDoer{next: hc, siteURL: siteURL, appName: appName}
	return newProvider(cc, opts)
}
