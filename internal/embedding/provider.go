package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/reflex/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient builds the embedding client for provider. Remote providers are
// wrapped in a CachedClient; the mock is returned bare so tests can inspect
// its calls.
func NewClient(provider, apiKey string, opts ...Option) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return NewCachedClient(NewOpenAIClient(apiKey, opts...), DefaultCacheSize), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid options: openai, mock)", provider)
	}
}
