// Package ai wraps the OpenAI-compatible provider used for text embeddings
// and answer synthesis. Token counts are surfaced on every call because the
// rest of the system accounts for provider spend per interaction.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// EmbedResult is a single embedding with its reported token cost.
type EmbedResult struct {
	Vector []float32
	Tokens int
}

// CompleteResult is a synthesized completion with its reported token cost.
type CompleteResult struct {
	Text   string
	Tokens int
}

// Provider is the outbound boundary to the embedding/completion service.
// Calls are not retried here; a transport or quota failure is fatal to the
// current operation and handled by the caller.
type Provider interface {
	// Embed generates a fixed-width vector for the given text.
	Embed(ctx context.Context, text string) (*EmbedResult, error)

	// Complete synthesizes a response for the user prompt under the given
	// system prompt.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompleteResult, error)

	// Dimensions returns the fixed embedding width.
	Dimensions() int
}

// Config represents provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string  // empty means the provider default
	EmbeddingModel string  // e.g. text-embedding-3-small
	ChatModel      string  // e.g. gpt-4o-mini
	Dimensions     int     // fixed embedding width, default 256
	MaxTokens      int     // completion cap, default 2048
	Temperature    float32 // default 0.3
	Timeout        int     // request timeout in seconds, default 120
}

const (
	defaultDimensions  = 256
	defaultMaxTokens   = 2048
	defaultTemperature = 0.3
	defaultTimeout     = 120
)

type provider struct {
	client *openai.Client
	cfg    Config
}

// NewProvider creates a Provider for any OpenAI-compatible endpoint.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider api key is required")
	}
	if cfg.EmbeddingModel == "" || cfg.ChatModel == "" {
		return nil, errors.New("embedding and chat models are required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	return &provider{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}, nil
}

// newHTTPClient builds an HTTP client with connection pooling tuned for
// bursty refresh fan-out.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (p *provider) Embed(ctx context.Context, text string) (*EmbedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Timeout)*time.Second)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.cfg.EmbeddingModel),
		Dimensions: p.cfg.Dimensions,
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	return &EmbedResult{
		Vector: resp.Data[0].Embedding,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

func (p *provider) Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompleteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Timeout)*time.Second)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       p.cfg.ChatModel,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}

	return &CompleteResult{
		Text:   resp.Choices[0].Message.Content,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

func (p *provider) Dimensions() int {
	return p.cfg.Dimensions
}
