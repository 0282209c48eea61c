package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/flowrunner/llm"
	"go.uber.org/zap"
)

const (
	defaultInstruction = "Summarize"
	noOutputText       = "No output generated."
	// errorTextPrefix 未配置 provider 时的降级输出前缀
	errorTextPrefix = "Error processing AI task: "
	noProviderText  = errorTextPrefix + "no LLM provider configured"
	// DefaultMaxInputRunes 输入数据截断长度
	DefaultMaxInputRunes = 10000
)

// ModelParams optionally override the model settings for one node.
type ModelParams struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   FlexInt `json:"max_tokens"`
}

// AIParams are the params of an ai_processor node.
type AIParams struct {
	Instruction string       `json:"instruction"`
	ModelParams *ModelParams `json:"model_params"`
}

// AIConfig configures the ai_processor handler.
type AIConfig struct {
	Model         string
	MaxInputRunes int
}

// AIProcessor asks an LLM to transform its input following an instruction.
type AIProcessor struct {
	cfg      AIConfig
	provider llm.Provider
	logger   *zap.Logger
}

func NewAIProcessor(cfg AIConfig, provider llm.Provider, logger *zap.Logger) *AIProcessor {
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = DefaultMaxInputRunes
	}
	return &AIProcessor{cfg: cfg, provider: provider, logger: logger}
}

func (a *AIProcessor) Kind() Kind { return KindAIProcessor }

func (a *AIProcessor) Handle(ctx context.Context, params map[string]any, input any) (any, error) {
	var p AIParams
	if err := DecodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("ai_processor: %w", err)
	}
	return a.Run(ctx, p, input)
}

// BuildPrompt renders the processor prompt for an instruction and input.
func BuildPrompt(instruction string, input any, maxRunes int) string {
	if strings.TrimSpace(instruction) == "" {
		instruction = defaultInstruction
	}
	data := truncateRunes(Stringify(input), maxRunes)
	return fmt.Sprintf("Instruction: %s\n\nInput Data:\n%s", instruction, data)
}

func (a *AIProcessor) Run(ctx context.Context, p AIParams, input any) (string, error) {
	// 无 provider 时节点仍成功，输出降级文本；provider 调用失败则节点失败
	if a.provider == nil {
		a.logger.Debug("ai_processor has no provider, returning fallback text")
		return noProviderText, nil
	}

	req := &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildPrompt(p.Instruction, input, a.cfg.MaxInputRunes)},
		},
	}
	if mp := p.ModelParams; mp != nil {
		if mp.Model != "" {
			req.Model = mp.Model
		}
		req.Temperature = mp.Temperature
		req.MaxTokens = int(mp.MaxTokens)
	}

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		a.logger.Warn("ai_processor completion failed", zap.String("model", req.Model), zap.Error(err))
		return "", fmt.Errorf("ai_processor: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return noOutputText, nil
	}
	return text, nil
}
