package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"

	// Strategy generation wants some variety between retries.
	chatTemperature = 0.7
)

type OpenAIClient struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		url:        openAIChatURL,
		model:      chatModel,
		httpClient: newHTTPClient(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *chatResponse) errorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// chatEndpoint is any OpenAI-compatible chat completion API. Cerebras
// speaks the same wire format.
type chatEndpoint struct {
	provider string
	url      string
	apiKey   string
	model    string
	hc       *http.Client
}

func (e chatEndpoint) generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: chatTemperature,
	}
	header := http.Header{"Authorization": {"Bearer " + e.apiKey}}

	var resp chatResponse
	if err := postJSON(ctx, e.hc, e.provider, e.url, header, req, &resp); err != nil {
		return "", fmt.Errorf("%s generate: %w", e.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s generate: %w", e.provider, errors.New("no choices returned"))
	}
	return stripFences(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return chatEndpoint{
		provider: ProviderOpenAI,
		url:      c.url,
		apiKey:   c.apiKey,
		model:    c.model,
		hc:       c.httpClient,
	}.generate(ctx, prompt)
}
