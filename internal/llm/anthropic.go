package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 1024
)

type AnthropicClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		url:        anthropicMessagesURL,
		httpClient: newHTTPClient(),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *anthropicResponse) errorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: anthropicMaxTokens,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	header := http.Header{
		"x-api-key":         {c.apiKey},
		"anthropic-version": {anthropicVersion},
	}

	var resp anthropicResponse
	if err := postJSON(ctx, c.httpClient, ProviderAnthropic, c.url, header, req, &resp); err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			return stripFences(block.Text), nil
		}
	}
	return "", fmt.Errorf("anthropic generate: %w", errors.New("no text content returned"))
}
