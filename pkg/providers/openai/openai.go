// Package openai 使用 OpenAI 官方 SDK 的翻译引擎
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
)

const systemPrompt = "You are a professional translator for GitHub pages. " +
	"Translate accurately while preserving the original meaning, code identifiers and links. " +
	"Reply with the translation only."

// Config OpenAI配置
type Config struct {
	providers.BaseConfig `mapstructure:",squash"`
	Model                string  `json:"model" mapstructure:"model"`
	Temperature          float32 `json:"temperature" mapstructure:"temperature"`
	MaxTokens            int     `json:"max_tokens" mapstructure:"max_tokens"`
	OrgID                string  `json:"org_id,omitempty" mapstructure:"org_id"`
	TargetLanguage       string  `json:"target_language" mapstructure:"target_language"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig:     providers.DefaultConfig(),
		Model:          "gpt-4o-mini",
		Temperature:    0.3,
		MaxTokens:      1024,
		TargetLanguage: "Simplified Chinese",
	}
}

// getModel 根据字符串获取模型常量
func getModel(model string) openai.ChatModel {
	switch model {
	case "gpt-4o":
		return openai.ChatModelGPT4o
	case "gpt-4o-mini":
		return openai.ChatModelGPT4oMini
	case "gpt-3.5-turbo":
		return openai.ChatModelGPT3_5Turbo
	default:
		return openai.ChatModel(model)
	}
}

// Provider OpenAI 引擎
type Provider struct {
	config Config
	client openai.Client
}

var _ providers.Provider = (*Provider)(nil)

// New 创建引擎
func New(config Config) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.APIEndpoint != "" {
		opts = append(opts, option.WithBaseURL(config.APIEndpoint))
	}
	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}
	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}
	if config.TargetLanguage == "" {
		config.TargetLanguage = DefaultConfig().TargetLanguage
	}

	return &Provider{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// GetName 获取引擎名称
func (p *Provider) GetName() string {
	return "openai"
}

// Attribution 返回来源说明
func (p *Provider) Attribution() providers.Attribution {
	return providers.Attribution{Name: "OpenAI " + p.config.Model, URL: "https://openai.com"}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	target := req.TargetLanguage
	if target == "" {
		target = p.config.TargetLanguage
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Translate the following text to %s:\n\n%s", target, req.Text)),
		},
		Model: getModel(p.config.Model),
	}
	if p.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(p.config.Temperature))
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	return &providers.Response{
		Text:      completion.Choices[0].Message.Content,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
		Metadata: map[string]string{
			"model":         completion.Model,
			"finish_reason": string(completion.Choices[0].FinishReason),
			"id":            completion.ID,
		},
	}, nil
}
