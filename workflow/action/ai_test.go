package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/BaSui01/flowrunner/llm"
	"github.com/BaSui01/flowrunner/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Instruction: Summarize\n\nInput Data:\nhello", BuildPrompt("", "hello", 100))
	assert.Equal(t, "Instruction: Extract\n\nInput Data:\n[\"a\",\"b\"]", BuildPrompt("Extract", []string{"a", "b"}, 100))

	long := strings.Repeat("é", 20)
	prompt := BuildPrompt("x", long, 5)
	data := strings.TrimPrefix(prompt, "Instruction: x\n\nInput Data:\n")
	assert.Equal(t, 5, utf8.RuneCountInString(data))
}

func TestAIProcessor_SendsPromptAndReturnsText(t *testing.T) {
	provider := mocks.NewSuccessProvider("A short summary")
	a := NewAIProcessor(AIConfig{Model: "gemini-test"}, provider, zap.NewNop())

	out, err := a.Handle(context.Background(), map[string]any{
		"instruction":  "Summarize the top headlines",
		"model_params": map[string]any{"temperature": 0.2, "max_tokens": "256"},
	}, []string{"h1", "h2"})
	require.NoError(t, err)
	assert.Equal(t, "A short summary", out)

	call := provider.GetLastCall()
	require.NotNil(t, call)
	assert.Equal(t, "gemini-test", call.Request.Model)
	assert.InDelta(t, 0.2, call.Request.Temperature, 0.0001)
	assert.Equal(t, 256, call.Request.MaxTokens)
	require.Len(t, call.Request.Messages, 1)
	assert.Equal(t, llm.RoleUser, call.Request.Messages[0].Role)
	assert.Equal(t, "Instruction: Summarize the top headlines\n\nInput Data:\n[\"h1\",\"h2\"]", call.Request.Messages[0].Content)
}

func TestAIProcessor_ModelOverride(t *testing.T) {
	provider := mocks.NewSuccessProvider("ok")
	a := NewAIProcessor(AIConfig{Model: "default-model"}, provider, zap.NewNop())

	_, err := a.Handle(context.Background(), map[string]any{"model_params": map[string]any{"model": "other"}}, "x")
	require.NoError(t, err)
	assert.Equal(t, "other", provider.GetLastCall().Request.Model)
}

func TestAIProcessor_EmptyOutput(t *testing.T) {
	a := NewAIProcessor(AIConfig{}, mocks.NewSuccessProvider("   "), zap.NewNop())
	out, err := a.Handle(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Equal(t, "No output generated.", out)
}

func TestAIProcessor_ProviderErrorFailsNode(t *testing.T) {
	upstream := &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}
	a := NewAIProcessor(AIConfig{}, mocks.NewErrorProvider(upstream), zap.NewNop())

	_, err := a.Handle(context.Background(), nil, "x")
	require.Error(t, err)
	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
}

func TestAIProcessor_NoProvider(t *testing.T) {
	a := NewAIProcessor(AIConfig{}, nil, zap.NewNop())
	out, err := a.Handle(context.Background(), map[string]any{"instruction": "Summarize"}, []string{"h1", "h2"})
	require.NoError(t, err)
	assert.Equal(t, "Error processing AI task: no LLM provider configured", out)
}
