package dom

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// Attr 读取属性
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr 读取属性，不存在时返回默认值
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// TagName 返回元素的小写标签名，非元素返回空串
func TagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// ClassList 返回 class 属性拆分后的列表
func ClassList(n *html.Node) []string {
	v, ok := Attr(n, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClass 判断元素是否含有指定 class
func HasClass(n *html.Node, class string) bool {
	for _, c := range ClassList(n) {
		if c == class {
			return true
		}
	}
	return false
}

// TextContent 返回节点的文本内容
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.CommentNode:
		return n.Data
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// TextLength 以 UTF-16 码元计算文本长度（与浏览器 CharacterData.length 一致）
func TextLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// ParentElement 返回父元素；父节点不是元素（文档、影子根）时返回 nil
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// Closest 从 n 开始向上查找第一个匹配的元素（含自身）
func Closest(n *html.Node, m Matcher) *html.Node {
	if m == nil {
		return nil
	}
	for el := n; el != nil && el.Type == html.ElementNode; el = el.Parent {
		if m.Match(el) {
			return el
		}
	}
	return nil
}

// Matches 判断元素是否匹配，非元素节点恒为 false
func Matches(n *html.Node, m Matcher) bool {
	if n == nil || m == nil || n.Type != html.ElementNode {
		return false
	}
	return m.Match(n)
}

// IsAncestor 判断 a 是否为 n 的祖先（不含自身）
func IsAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// DatasetAttr 把 dataset 键（如 confirmText）转换为属性名（data-confirm-text）
func DatasetAttr(key string) string {
	var sb strings.Builder
	sb.WriteString("data-")
	for _, r := range key {
		if unicode.IsUpper(r) {
			sb.WriteByte('-')
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// NewElement 创建元素节点
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type: html.ElementNode,
		Data: tag,
		Attr: attrs,
	}
}

// NewText 创建文本节点
func NewText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// FindByID 在树中查找 id 相同的元素
func FindByID(root *html.Node, id string) *html.Node {
	if root == nil {
		return nil
	}
	if v, ok := Attr(root, "id"); ok && v == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// NextElementSibling 返回下一个兄弟元素
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
