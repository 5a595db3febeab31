// Package ollama 通过 OpenAI 兼容接口调用本地模型（Ollama、vLLM 等）
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/retry"
)

// DefaultEndpoint Ollama 的 OpenAI 兼容地址
const DefaultEndpoint = "http://localhost:11434/v1"

// Config Ollama配置
type Config struct {
	providers.BaseConfig `mapstructure:",squash"`
	Model                string            `json:"model" mapstructure:"model"`
	Temperature          float32           `json:"temperature" mapstructure:"temperature"`
	MaxTokens            int               `json:"max_tokens" mapstructure:"max_tokens"`
	TargetLanguage       string            `json:"target_language" mapstructure:"target_language"`
	RetryConfig          retry.RetryConfig `json:"retry_config" mapstructure:"retry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	config := Config{
		BaseConfig:     providers.DefaultConfig(),
		Model:          "qwen2.5",
		Temperature:    0.3,
		MaxTokens:      1024,
		TargetLanguage: "简体中文",
		RetryConfig:    retry.DefaultRetryConfig(),
	}
	config.APIEndpoint = DefaultEndpoint
	return config
}

// Provider 本地模型引擎
type Provider struct {
	config Config
	client *openai.Client
}

var _ providers.Provider = (*Provider)(nil)

// New 创建新的Ollama提供商
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = DefaultEndpoint
	}
	if config.TargetLanguage == "" {
		config.TargetLanguage = DefaultConfig().TargetLanguage
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &retryTransport{
			base:    http.DefaultTransport,
			retrier: retry.NewNetworkRetrier(config.RetryConfig),
			headers: config.Headers,
		},
	}

	// go-openai 的接口后缀以斜杠开头
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.APIEndpoint, "/")
	clientConfig.HTTPClient = httpClient

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// GetName 获取引擎名称
func (p *Provider) GetName() string {
	return "ollama"
}

// Attribution 返回来源说明
func (p *Provider) Attribution() providers.Attribution {
	return providers.Attribution{Name: p.config.Model, URL: "https://ollama.com/library/" + p.config.Model}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	target := req.TargetLanguage
	if target == "" {
		target = p.config.TargetLanguage
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("把用户给出的 GitHub 文本翻译成%s，只输出译文。", target),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Text,
			},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from %s", p.config.Model)
	}

	return &providers.Response{
		Text:      strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Metadata: map[string]string{
			"model":         resp.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}

// retryTransport 在传输层重试，并附加自定义头部
type retryTransport struct {
	base    http.RoundTripper
	retrier *retry.NetworkRetrier
	headers map[string]string
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.retrier.ExecuteWithRetry(req.Context(), func() (*http.Response, error) {
		cloned := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			cloned.Body = body
		}
		for k, v := range t.headers {
			cloned.Header.Set(k, v)
		}
		return t.base.RoundTrip(cloned)
	})
}
