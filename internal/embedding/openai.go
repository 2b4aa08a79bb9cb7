package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Harshitk-cp/reflex/internal/buildconfig"
)

const (
	openAIEmbeddingURL = "https://api.openai.com/v1/embeddings"
	defaultModel       = "text-embedding-3-small"

	// maxInputRunes keeps requests well under the model's token window.
	maxInputRunes = 8000
)

var ErrEmptyInput = errors.New("embedding input is empty")

type OpenAIClient struct {
	apiKey     string
	url        string
	model      string
	dimensions int
	httpClient *http.Client
}

type Option func(*OpenAIClient)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *OpenAIClient) { c.model = model }
}

// WithDimensions asks the API to shorten vectors to n components.
func WithDimensions(n int) Option {
	return func(c *OpenAIClient) { c.dimensions = n }
}

func WithTimeout(d time.Duration) Option {
	return func(c *OpenAIClient) { c.httpClient.Timeout = d }
}

func NewOpenAIClient(apiKey string, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:     apiKey,
		url:        openAIEmbeddingURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// normalizeInput collapses whitespace and caps the length. Thought text
// often carries term punctuation and newlines that add nothing to a vector.
func normalizeInput(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxInputRunes {
		text = string([]rune(text)[:maxInputRunes])
	}
	return text
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	input := normalizeInput(text)
	if input == "" {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(embeddingRequest{
		Model:      c.model,
		Input:      input,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", buildconfig.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var result embeddingResponse
	if jsonErr := json.Unmarshal(respBody, &result); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("unmarshal embedding response: %w", jsonErr)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, msg)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", result.Error.Message)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding API returned no data")
	}

	return result.Data[0].Embedding, nil
}
