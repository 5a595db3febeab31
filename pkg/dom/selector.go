package dom

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrEmptySelector 空选择器
var ErrEmptySelector = errors.New("empty selector")

// Matcher 元素匹配器
type Matcher interface {
	Match(n *html.Node) bool
}

var (
	selectorCacheMu sync.RWMutex
	selectorCache   = make(map[string]cascadia.Selector)
)

// CompileSelector 编译 CSS 选择器（支持逗号组合），结果会被缓存
func CompileSelector(sel string) (cascadia.Selector, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, ErrEmptySelector
	}

	selectorCacheMu.RLock()
	cached, ok := selectorCache[sel]
	selectorCacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	compiled, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}

	selectorCacheMu.Lock()
	selectorCache[sel] = compiled
	selectorCacheMu.Unlock()
	return compiled, nil
}

// QuerySelector 返回 root 子树中第一个匹配的元素
func QuerySelector(root *html.Node, sel string) *html.Node {
	if root == nil {
		return nil
	}
	m, err := CompileSelector(sel)
	if err != nil {
		return nil
	}
	found := goquery.NewDocumentFromNode(root).FindMatcher(m).First()
	if found.Length() == 0 {
		return nil
	}
	return found.Get(0)
}

// QuerySelector 在文档主树中查找
func (d *Document) QuerySelector(sel string) *html.Node {
	return QuerySelector(d.root, sel)
}
