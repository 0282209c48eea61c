package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/BaSui01/flowrunner/llm"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := NewGeminiProvider(Config{}, zap.NewNop())
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_DefaultModel(t *testing.T) {
	assert.Equal(t, DefaultModel, chooseGeminiModel(nil, ""))
	assert.Equal(t, "custom", chooseGeminiModel(&llm.ChatRequest{}, "custom"))
	assert.Equal(t, "per-request", chooseGeminiModel(&llm.ChatRequest{Model: "per-request"}, "custom"))
}

func TestConvertToGeminiContents(t *testing.T) {
	system, contents := convertToGeminiContents([]llm.Message{
		{Role: llm.RoleSystem, Content: "be terse"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: ""},
	})

	require.NotNil(t, system)
	assert.Equal(t, "be terse", system.Parts[0].Text)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestGeminiProvider_Completion(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"responseId": "resp-1",
			"candidates": [{"index": 0, "finishReason": "STOP", "content": {"role": "model", "parts": [{"text": "{\"ok\":"}, {"text": "true}"}]}}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}
		}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gemini-test"}, zap.NewNop())
	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "plan"},
			{Role: llm.RoleUser, Content: "User Request: do it"},
		},
		ResponseMIMEType: "application/json",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Text())
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, 6, resp.Usage.TotalTokens)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "plan", captured.SystemInstruction.Parts[0].Text)
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
}

func TestGeminiProvider_CompletionErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","status":"UNAUTHENTICATED"}}`, llm.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, true},
		{"quota", http.StatusBadRequest, `{"error":{"message":"quota exceeded"}}`, llm.ErrQuotaExceeded, false},
		{"server error", http.StatusInternalServerError, `boom`, llm.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewGeminiProvider(Config{BaseURL: server.URL}, zap.NewNop())
			_, err := provider.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
			})
			require.Error(t, err)

			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.code, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, "gemini", llmErr.Provider)
		})
	}
}

func TestGeminiProvider_CompletionRejectsEmptyRequest(t *testing.T) {
	provider := NewGeminiProvider(Config{}, zap.NewNop())
	_, err := provider.Completion(context.Background(), &llm.ChatRequest{})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestGeminiProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider(Config{BaseURL: server.URL}, zap.NewNop())
	status, err := provider.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestGeminiProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	provider := NewGeminiProvider(Config{APIKey: apiKey, Timeout: 30 * time.Second}, zap.NewNop())
	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Say 'test' only"}},
		MaxTokens: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text())
}
