package summary

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaSummarizer struct {
	client  *api.Client
	prompt  string
	model   string
	timeout time.Duration
	mu      sync.Mutex
}

// NewOllamaSummarizer accepts either a bare host:port or a full base URL.
func NewOllamaSummarizer(baseURL, prompt, model string, timeout time.Duration) *OllamaSummarizer {
	return &OllamaSummarizer{
		client:  api.NewClient(ollamaURL(baseURL), &http.Client{}),
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}
}

func ollamaURL(baseURL string) *url.URL {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u
	}
	return &url.URL{Scheme: "http", Host: baseURL, Path: "/"}
}

// Summarize runs one generation at a time, the local model serves a single
// request well and queues the rest anyway.
func (o *OllamaSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		System: o.prompt,
		Prompt: clip(text),
		Stream: &stream,
		Options: map[string]any{
			"num_predict": excerptTokens,
		},
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}

	excerpt := strings.TrimSpace(sb.String())
	if excerpt == "" {
		return "", ErrEmptyExcerpt
	}

	return excerpt, nil
}
