package engine

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/scope"
)

// 时间元素前缀 "on"（只去掉独立的词）
var reTimePrefix = regexp.MustCompile(`^on(?:\s+|$)`)

// 按钮类 input 的 type
var buttonTypes = map[string]bool{"button": true, "submit": true, "reset": true}

// 按钮上的确认与等待提示属性
var buttonDataAttrs = []string{
	dom.DatasetAttr("confirm"),
	dom.DatasetAttr("confirmText"),
	dom.DatasetAttr("confirmCancelText"),
	dom.DatasetAttr("disableWith"),
}

// onBatch 页面级观察者回调，在 drain 中执行，调用方已持有锁
func (e *Engine) onBatch(records []dom.Record, _ *dom.Observer) {
	e.stats.Batches++
	e.metrics.Batch()

	if e.navigating {
		e.handleURLChange()
	}
	s := e.scope.Load()
	if s == nil {
		return
	}
	for _, n := range collect(records, s) {
		e.traverse(n)
	}
}

// collect 从一批记录中取出需要重新处理的节点。
// 新增子节点取新增节点本身，属性与文本变更取目标节点。
func collect(records []dom.Record, s *scope.RuleScope) []*html.Node {
	seen := make(map[*html.Node]struct{})
	var nodes []*html.Node
	add := func(n *html.Node) {
		if n == nil || n.Parent == nil {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		nodes = append(nodes, n)
	}

	for _, r := range records {
		switch r.Type {
		case dom.RecordChildList:
			for _, n := range r.AddedNodes {
				add(n)
			}
		case dom.RecordAttributes:
			add(r.Target)
		case dom.RecordCharacterData:
			if s.WatchCharacterData {
				add(r.Target)
			}
		}
	}

	ignore := s.IgnoreMutationMatcher()
	kept := nodes[:0]
	for _, n := range nodes {
		if parent := dom.ParentElement(n); parent != nil && dom.Closest(parent, ignore) != nil {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

// traverse 对 root 做先序遍历，命中忽略选择器的子树整体剪枝
func (e *Engine) traverse(root *html.Node) {
	s := e.scope.Load()
	if s == nil || root == nil {
		return
	}
	start := time.Now()
	defer func() {
		d := time.Since(start)
		e.stats.Traversals++
		e.metrics.TraversalDone(d)
		if d > slowTraversal {
			e.logger.Debug("节点遍历耗时", zap.Duration("duration", d), zap.String("root", dom.TagName(root)))
		}
	}()

	ignore := s.IgnoreMatcher()
	// 根节点本身或其祖先被忽略时不处理
	from := root
	if root.Type != html.ElementNode {
		from = dom.ParentElement(root)
	}
	if from != nil && dom.Closest(from, ignore) != nil {
		return
	}

	switch root.Type {
	case html.TextNode:
		e.handleText(s, root)
		return
	case html.ElementNode:
		e.handleElement(s, root)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			switch c.Type {
			case html.ElementNode:
				if !dom.Matches(c, ignore) {
					e.handleElement(s, c)
					walk(c)
				}
			case html.TextNode:
				e.handleText(s, c)
			}
			c = next
		}
	}
	walk(root)
}

func (e *Engine) handleText(s *scope.RuleScope, n *html.Node) {
	if e.handled != nil {
		e.handled(n)
	}
	if n.Data == "" || dom.TextLength(n.Data) > e.opts.TextNodeLimit {
		return
	}
	if out, ok := scope.Resolve(s, n.Data, e.features.regexp); ok && out != n.Data {
		e.doc.SetData(n, out)
		e.countTranslated(1)
	}
}

func (e *Engine) handleElement(s *scope.RuleScope, n *html.Node) {
	if e.handled != nil {
		e.handled(n)
	}

	switch dom.TagName(n) {
	case "relative-time":
		e.handleTimeElement(n)
		return

	case "input", "textarea":
		if isButtonLike(n) {
			e.translateAttr(s, n, dom.DatasetAttr("confirm"))
			e.translateAttr(s, n, "value")
		} else {
			e.translateAttr(s, n, "placeholder")
		}

	case "optgroup":
		e.translateAttr(s, n, "label")

	case "button":
		e.translateAttr(s, n, "title")
		for _, attr := range buttonDataAttrs {
			e.translateAttr(s, n, attr)
		}
		fallthrough

	case "a", "span":
		e.translateAttr(s, n, "title")
		fallthrough

	default:
		if strings.Contains(dom.AttrOr(n, "class", ""), "tooltipped") {
			e.translateAttr(s, n, "aria-label")
		}
	}
}

func isButtonLike(n *html.Node) bool {
	if dom.TagName(n) != "input" {
		return false
	}
	return buttonTypes[strings.ToLower(dom.AttrOr(n, "type", ""))]
}

// translateAttr 翻译属性，值不变时不写回，避免观察者反复触发
func (e *Engine) translateAttr(s *scope.RuleScope, n *html.Node, key string) {
	v, ok := dom.Attr(n, key)
	if !ok || v == "" {
		return
	}
	if out, ok := scope.Resolve(s, v, e.features.regexp); ok && out != v {
		e.doc.SetAttr(n, key, out)
		e.countTranslated(1)
	}
}

// handleTimeElement 处理 relative-time 的影子树，并常驻监听其重绘
func (e *Engine) handleTimeElement(host *html.Node) {
	root := e.doc.ShadowRoot(host)
	if root == nil {
		return
	}
	e.stripTimePrefix(root)

	if _, ok := e.shadows[root]; ok {
		return
	}
	e.shadows[root] = struct{}{}
	// 重绘可能先删后加，直接以影子根的当前文本为准
	e.doc.Observe(root, dom.ObserveOptions{ChildList: true}, func(_ []dom.Record, _ *dom.Observer) {
		e.stripTimePrefix(root)
	})
}

// stripTimePrefix 去掉时间文本开头的 "on"。有子节点时取最后一个子节点的文本。
func (e *Engine) stripTimePrefix(n *html.Node) {
	if n == nil {
		return
	}
	text := dom.TextContent(n)
	if n.FirstChild != nil {
		text = dom.TextContent(n.LastChild)
	}
	out := reTimePrefix.ReplaceAllString(text, "")
	if out != text {
		e.doc.SetTextContent(n, out)
	}
}
