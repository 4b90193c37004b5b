package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewChatClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChatConfig
		wantErr string
	}{
		{
			name:    "missing base url",
			cfg:     ChatConfig{APIKey: "k", Model: "m"},
			wantErr: "base url is required",
		},
		{
			name:    "missing api key",
			cfg:     ChatConfig{BaseURL: "https://api.example.com/v1", Model: "m"},
			wantErr: "api key is required",
		},
		{
			name:    "missing model",
			cfg:     ChatConfig{BaseURL: "https://api.example.com/v1", APIKey: "k"},
			wantErr: "model is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChatClient(tc.cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestChatClientName(t *testing.T) {
	c, err := NewChatClient(ChatConfig{Name: "grok", BaseURL: "https://api.example.com/v1", APIKey: "k", Model: "grok-2-latest"})
	require.NoError(t, err)
	require.Equal(t, "grok", c.Name())

	c, err = NewChatClient(ChatConfig{BaseURL: "https://api.example.com/v1", APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", c.Name())
}

func TestChatClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `[{"value":"no"}]`}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "classify"},
	})
	require.NoError(t, err)
	require.Equal(t, `[{"value":"no"}]`, out)
}

func TestChatClientCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestChatClientCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestChatClientCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c, err := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestForProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		baseURL   string
		model     string
		wantName  string
		wantModel string
		wantErr   bool
	}{
		{name: "grok", provider: "grok", wantName: "grok", wantModel: "grok-2-latest"},
		{name: "deepseek", provider: "deepseek", wantName: "deepseek", wantModel: "deepseek-ai/DeepSeek-V3"},
		{name: "openai", provider: "openai", wantName: "openai", wantModel: "gpt-4o"},
		{name: "model override", provider: "grok", model: "grok-3", wantName: "grok", wantModel: "grok-3"},
		{name: "base url override", provider: "openai", baseURL: "https://proxy.example.com/v1", wantName: "openai", wantModel: "gpt-4o"},
		{name: "unknown provider", provider: "llama", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := ForProvider(tc.provider, "key", tc.baseURL, tc.model)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantName, client.Name())
			require.Equal(t, tc.wantModel, client.cfg.Model)
			if tc.baseURL != "" {
				require.Equal(t, tc.baseURL, client.cfg.BaseURL)
			}
		})
	}
}
