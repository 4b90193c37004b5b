package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatConfig holds connection settings for an OpenAI-compatible
// chat-completions endpoint.
type ChatConfig struct {
	// Name identifies the backend in logs.
	Name string

	// BaseURL is the API root, e.g. "https://api.x.ai/v1".
	BaseURL string

	// APIKey is the bearer token.
	APIKey string

	// Model is the model identifier.
	Model string

	// MaxTokens bounds the completion length. Zero means no bound.
	MaxTokens int

	// Temperature and TopP control sampling. Zero values are omitted.
	Temperature float64
	TopP        float64

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// ChatClient talks to any OpenAI-compatible chat-completions API.
type ChatClient struct {
	cfg  ChatConfig
	http *http.Client
}

// NewChatClient returns a ChatClient.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &ChatClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements Provider.
func (c *ChatClient) Name() string {
	if c.cfg.Name != "" {
		return c.cfg.Name
	}
	return c.cfg.Model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Provider.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat api returned status %d: %s", resp.StatusCode, body)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("chat api error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// NewGrok returns a Provider backed by the x.ai API.
func NewGrok(apiKey string) (*ChatClient, error) {
	return NewChatClient(ChatConfig{
		Name:    "grok",
		BaseURL: "https://api.x.ai/v1",
		APIKey:  apiKey,
		Model:   "grok-2-latest",
	})
}

// NewDeepSeek returns a Provider backed by the SiliconFlow-hosted DeepSeek
// API, with the sampling settings the hosted model expects.
func NewDeepSeek(apiKey string) (*ChatClient, error) {
	return NewChatClient(ChatConfig{
		Name:        "deepseek",
		BaseURL:     "https://api.siliconflow.cn/v1",
		APIKey:      apiKey,
		Model:       "deepseek-ai/DeepSeek-V3",
		MaxTokens:   8192,
		Temperature: 0.5,
		TopP:        0.7,
	})
}

// NewOpenAI returns a Provider backed by the OpenAI API.
func NewOpenAI(apiKey string) (*ChatClient, error) {
	return NewChatClient(ChatConfig{
		Name:    "openai",
		BaseURL: "https://api.openai.com/v1",
		APIKey:  apiKey,
		Model:   "gpt-4o",
	})
}

// ForProvider builds a Provider from configuration. BaseURL and model
// override the vendor defaults when set.
func ForProvider(name, apiKey, baseURL, model string) (*ChatClient, error) {
	var client *ChatClient
	var err error
	switch name {
	case "grok":
		client, err = NewGrok(apiKey)
	case "deepseek":
		client, err = NewDeepSeek(apiKey)
	case "openai":
		client, err = NewOpenAI(apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		client.cfg.BaseURL = baseURL
	}
	if model != "" {
		client.cfg.Model = model
	}
	return client, nil
}
