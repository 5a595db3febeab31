// Package remote 把整段文本交给远程翻译引擎，并把任何失败收敛为失败提示文本。
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/httpjson"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/retry"
)

// FailureText 解析失败或响应路径缺失时的提示
const FailureText = "翻译失败"

// 结果分类，用于指标
const (
	OutcomeOK      = "ok"
	OutcomeDecode  = "decode"
	OutcomeNetwork = "network"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// FailureWithClass 带错误分类的失败提示
func FailureWithClass(class string) string {
	return fmt.Sprintf("%s（%s）", FailureText, class)
}

// Observer 请求结果上报
type Observer interface {
	RemoteRequest(engine, outcome string, d time.Duration)
}

// Bridge 远程翻译桥
type Bridge struct {
	provider providers.Provider
	lang     string
	logger   *zap.Logger
	observer Observer
}

// Option 桥选项
type Option func(*Bridge)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver 设置结果上报
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observer = o
	}
}

// WithTargetLanguage 设置目标语言
func WithTargetLanguage(lang string) Option {
	return func(b *Bridge) {
		b.lang = lang
	}
}

// New 创建远程翻译桥
func New(p providers.Provider, opts ...Option) *Bridge {
	b := &Bridge{provider: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Engine 返回引擎名称
func (b *Bridge) Engine() string {
	return b.provider.GetName()
}

// Attribution 返回来源说明
func (b *Bridge) Attribution() providers.Attribution {
	return b.provider.Attribution()
}

// TranslateBlock 翻译整段文本，从不返回错误：
// 响应无法解析或路径缺失时返回 FailureText，传输失败时返回带分类的提示。
func (b *Bridge) TranslateBlock(ctx context.Context, text string) string {
	start := time.Now()
	resp, err := b.provider.Translate(ctx, &providers.Request{Text: text, TargetLanguage: b.lang})
	outcome, result := b.settle(resp, err)

	if b.observer != nil {
		b.observer.RemoteRequest(b.Engine(), outcome, time.Since(start))
	}
	if err != nil {
		b.logger.Warn("远程翻译失败",
			zap.String("engine", b.Engine()),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
	return result
}

func (b *Bridge) settle(resp *providers.Response, err error) (outcome, result string) {
	switch {
	case err == nil && resp != nil && resp.Text != "":
		return OutcomeOK, resp.Text
	case err == nil:
		return OutcomeDecode, FailureText
	case errors.Is(err, httpjson.ErrDecode), errors.Is(err, httpjson.ErrPathNotFound):
		return OutcomeDecode, FailureText
	}

	switch class := retry.Classify(err); class {
	case OutcomeTimeout, OutcomeNetwork:
		return class, FailureWithClass(class)
	default:
		return OutcomeError, FailureWithClass(OutcomeError)
	}
}
