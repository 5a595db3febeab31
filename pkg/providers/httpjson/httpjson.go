// Package httpjson 是由配置驱动的 HTTP/JSON 翻译引擎：
// 请求方法、地址、头部、请求体模板与响应路径都是数据。
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/retry"
)

var (
	// ErrDecode 响应不是合法 JSON
	ErrDecode = errors.New("response is not valid json")
	// ErrPathNotFound 响应路径不存在或值为空
	ErrPathNotFound = errors.New("response path not found")
)

// 响应体读取上限
const maxResponseBytes = 4 << 20

// Config 引擎配置
type Config struct {
	providers.BaseConfig `mapstructure:",squash"`

	// 显示名与来源链接
	Name    string `json:"name" mapstructure:"name"`
	SiteURL string `json:"url" mapstructure:"url"`

	Method string `json:"method" mapstructure:"method"`
	// 请求体 JSON 模板，TextPath 指向待翻译文本的位置（sjson 语法）
	Template string `json:"template" mapstructure:"template"`
	TextPath string `json:"text_path" mapstructure:"text_path"`
	// 响应路径，形如 biz[0]?.sectionResult[0]?.dst
	ResponsePath string `json:"response_path" mapstructure:"response_path"`

	Retry retry.RetryConfig `json:"retry" mapstructure:"retry"`
}

// PayloadBuilder 由文本构造请求体
type PayloadBuilder func(text string) (any, error)

// Provider HTTP/JSON 引擎
type Provider struct {
	key     string
	config  Config
	path    string
	build   PayloadBuilder
	client  *retry.RetryableHTTPClient
	retrier *retry.NetworkRetrier
}

// Option 引擎选项
type Option func(*Provider)

// WithPayloadBuilder 用函数代替模板构造请求体
func WithPayloadBuilder(fn PayloadBuilder) Option {
	return func(p *Provider) {
		p.build = fn
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = p.retrier.WrapHTTPClient(c)
		}
	}
}

// New 创建引擎
func New(key string, config Config, opts ...Option) (*Provider, error) {
	if config.APIEndpoint == "" {
		return nil, fmt.Errorf("engine %s: api endpoint is required", key)
	}
	config.Method = strings.ToUpper(config.Method)
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Method != http.MethodPost && config.Method != http.MethodGet {
		return nil, fmt.Errorf("engine %s: unsupported method %s", key, config.Method)
	}
	if config.ResponsePath == "" {
		return nil, fmt.Errorf("engine %s: response path is required", key)
	}
	if config.Timeout <= 0 {
		config.Timeout = providers.DefaultTimeout
	}
	if config.Name == "" {
		config.Name = key
	}

	p := &Provider{
		key:     key,
		config:  config,
		path:    ConvertPath(config.ResponsePath),
		retrier: retry.NewNetworkRetrier(config.Retry),
	}
	p.client = p.retrier.WrapHTTPClient(&http.Client{Timeout: config.Timeout})
	for _, opt := range opts {
		opt(p)
	}
	if p.build == nil && config.Template != "" && !gjson.Valid(config.Template) {
		return nil, fmt.Errorf("engine %s: request template is not valid json", key)
	}
	return p, nil
}

// GetName 获取引擎名称
func (p *Provider) GetName() string {
	return p.key
}

// Attribution 返回来源说明
func (p *Provider) Attribution() providers.Attribution {
	return providers.Attribution{Name: p.config.Name, URL: p.config.SiteURL}
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	payload, err := p.payload(req.Text)
	if err != nil {
		return nil, providers.WrapError("invalid_request", "build request payload", err)
	}

	httpReq, err := p.newRequest(ctx, payload)
	if err != nil {
		return nil, providers.WrapError("invalid_request", "create request", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.WrapError("network", "send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, providers.WrapError("network", "read response", err)
	}

	text, err := Extract(body, p.path)
	if err != nil {
		return nil, fmt.Errorf("engine %s (status %d): %w", p.key, resp.StatusCode, err)
	}
	return &providers.Response{
		Text:     text,
		Metadata: map[string]string{"status": resp.Status},
	}, nil
}

// payload 构造请求体 JSON
func (p *Provider) payload(text string) ([]byte, error) {
	if p.build != nil {
		v, err := p.build(text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	tpl := p.config.Template
	if tpl == "" {
		tpl = "{}"
	}
	textPath := p.config.TextPath
	if textPath == "" {
		textPath = "text"
	}
	return sjson.SetBytes([]byte(tpl), textPath, text)
}

// newRequest POST 发送 JSON 请求体；GET 把顶层字段作为查询参数
func (p *Provider) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	var httpReq *http.Request
	var err error

	if p.config.Method == http.MethodGet {
		u, perr := url.Parse(p.config.APIEndpoint)
		if perr != nil {
			return nil, perr
		}
		q := u.Query()
		gjson.ParseBytes(payload).ForEach(func(k, v gjson.Result) bool {
			q.Set(k.String(), v.String())
			return true
		})
		u.RawQuery = q.Encode()
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIEndpoint, bytes.NewReader(payload))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}

	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}
	if p.config.APIKey != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	return httpReq, nil
}

// Extract 从响应体中取出路径对应的字符串。缺失的中间节点视为未找到。
func Extract(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrDecode
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() || res.Type == gjson.Null || res.String() == "" {
		return "", ErrPathNotFound
	}
	return res.String(), nil
}
