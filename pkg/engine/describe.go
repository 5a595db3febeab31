package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers"
)

// ControlID 简介翻译按钮的 id
const ControlID = "translate-me"

var (
	// ErrControlBusy 上一次翻译尚未结束
	ErrControlBusy = errors.New("translate control is busy")
	// ErrControlDetached 按钮已从文档移除
	ErrControlDetached = errors.New("translate control is detached")
	// ErrNoTranslator 未配置远程翻译
	ErrNoTranslator = errors.New("no remote translator configured")
)

// Translator 远程整段翻译。失败时返回失败提示文本而不是错误。
type Translator interface {
	TranslateBlock(ctx context.Context, text string) string
	Attribution() providers.Attribution
}

// DescControl 仓库或 gist 简介后的“翻译”按钮
type DescControl struct {
	e      *Engine
	target *html.Node
	button *html.Node
	busy   atomic.Bool
}

// Node 返回按钮节点
func (c *DescControl) Node() *html.Node {
	return c.button
}

// Target 返回简介元素
func (c *DescControl) Target() *html.Node {
	return c.target
}

// Disabled 请求进行中时为 true
func (c *DescControl) Disabled() bool {
	return c.busy.Load()
}

// Click 翻译简介文本并用结果块替换按钮。
// 同一按钮同时只允许一个请求，结束后无论成败都会恢复可用。
func (c *DescControl) Click(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrControlBusy
	}
	defer c.busy.Store(false)

	e := c.e
	e.mu.Lock()
	attached := c.button.Parent != nil
	text := strings.TrimSpace(dom.TextContent(c.target))
	tr := e.translator
	e.mu.Unlock()

	if !attached {
		return ErrControlDetached
	}
	if text == "" {
		return nil
	}
	if tr == nil {
		return ErrNoTranslator
	}

	// 网络请求不持有引擎锁
	translated := tr.TranslateBlock(ctx, text)
	if err := ctx.Err(); err != nil {
		// 调用方已放弃，丢弃结果，按钮保留以便重试
		return err
	}
	attr := tr.Attribution()

	var err error
	e.Do(func(doc *dom.Document) {
		// 请求期间按钮被移除（如关闭了描述翻译）时忽略结果
		if c.button.Parent == nil {
			err = ErrControlDetached
			return
		}
		doc.RemoveChild(c.button)
		doc.InsertAfter(c.target, renderResult(attr, translated))
		if e.control == c {
			e.control = nil
		}
	})
	if err != nil {
		return err
	}
	e.logger.Debug("简介翻译完成", zap.String("engine", attr.Name), zap.Int("length", len(text)))
	return nil
}

// renderResult 生成带来源说明的结果块
func renderResult(attr providers.Attribution, translated string) *html.Node {
	link := dom.NewElement("a",
		html.Attribute{Key: "target", Val: "_blank"},
		html.Attribute{Key: "style", Val: "color:#1b95e0;"},
		html.Attribute{Key: "href", Val: attr.URL})
	link.AppendChild(dom.NewText(attr.Name))

	span := dom.NewElement("span", html.Attribute{Key: "style", Val: "font-size: small"})
	span.AppendChild(dom.NewText("由 "))
	span.AppendChild(link)
	span.AppendChild(dom.NewText(" 翻译👇"))

	div := dom.NewElement("div")
	div.AppendChild(span)
	div.AppendChild(dom.NewElement("br"))
	div.AppendChild(dom.NewText(translated))
	return div
}

// DescControl 返回当前的简介翻译按钮，未安装时为 nil
func (e *Engine) DescControl() *DescControl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.control
}

// InstallDescControl 在当前页面类型的简介元素后插入翻译按钮
func (e *Engine) InstallDescControl() (*DescControl, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scope.Load() == nil {
		return nil, ErrNoScope
	}
	c := e.installDescControl()
	e.drain()
	return c, nil
}

func (e *Engine) installDescControl() *DescControl {
	sel := e.opts.DescSelectors[string(e.pageType)]
	if sel == "" {
		return nil
	}
	target := e.doc.QuerySelector(sel)
	if target == nil {
		return nil
	}
	if next := dom.NextElementSibling(target); next != nil && dom.AttrOr(next, "id", "") == ControlID {
		if e.control != nil && e.control.button == next {
			return e.control
		}
		return nil
	}

	button := dom.NewElement("div",
		html.Attribute{Key: "id", Val: ControlID},
		html.Attribute{Key: "style", Val: "color: #1b95e0; font-size: small; cursor: pointer;"})
	button.AppendChild(dom.NewText("翻译"))
	e.doc.InsertAfter(target, button)

	e.control = &DescControl{e: e, target: target, button: button}
	return e.control
}

func (e *Engine) removeDescControl() {
	if body := e.doc.Body(); body != nil {
		if el := dom.FindByID(body, ControlID); el != nil {
			e.doc.RemoveChild(el)
		}
	}
	e.control = nil
}
