package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/reflex/internal/domain"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

type providerEntry struct {
	keyEnv string
	build  func(apiKey string) domain.LLMClient
}

var providers = map[string]providerEntry{
	ProviderOpenAI:    {"OPENAI_API_KEY", func(k string) domain.LLMClient { return NewOpenAIClient(k) }},
	ProviderAnthropic: {"ANTHROPIC_API_KEY", func(k string) domain.LLMClient { return NewAnthropicClient(k) }},
	ProviderGemini:    {"GEMINI_API_KEY", func(k string) domain.LLMClient { return NewGeminiClient(k) }},
	ProviderCerebras:  {"CEREBRAS_API_KEY", func(k string) domain.LLMClient { return NewCerebrasClient(k) }},
	ProviderMock:      {"", func(string) domain.LLMClient { return NewMockClient() }},
}

// NewClient creates a generation client for the named provider. Every
// provider except mock needs an API key.
func NewClient(provider, apiKey string) (domain.LLMClient, error) {
	entry, ok := providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (valid options: %s)", provider, strings.Join(Providers(), ", "))
	}
	if entry.keyEnv != "" && apiKey == "" {
		return nil, fmt.Errorf("%s is required for the %s provider", entry.keyEnv, provider)
	}
	return entry.build(apiKey), nil
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stripFences removes a surrounding markdown code fence, which chat models
// add even when asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
