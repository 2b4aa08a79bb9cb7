package llm

import (
	"context"
	"net/http"
)

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

type CerebrasClient struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewCerebrasClient(apiKey string) *CerebrasClient {
	return &CerebrasClient{
		apiKey:     apiKey,
		url:        cerebrasAPIURL,
		model:      cerebrasModel,
		httpClient: newHTTPClient(),
	}
}

func (c *CerebrasClient) Generate(ctx context.Context, prompt string) (string, error) {
	return chatEndpoint{
		provider: ProviderCerebras,
		url:      c.url,
		apiKey:   c.apiKey,
		model:    c.model,
		hc:       c.httpClient,
	}.generate(ctx, prompt)
}
