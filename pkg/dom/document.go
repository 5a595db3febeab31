// Package dom 提供一个可观察的文档树：基于 golang.org/x/net/html 的节点，
// 附带影子根（shadow root）与变更观察者（MutationObserver 语义）。
//
// Document 本身不加锁，调用方（通常是 engine.Engine）负责把所有读写
// 串行化到同一个逻辑线程上。
package dom

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowRootName 影子根节点的 Data 值
const ShadowRootName = "#shadow-root"

// DefaultMaxFlushRounds Flush 单次最多投递的轮数
const DefaultMaxFlushRounds = 64

// Document 可观察文档
type Document struct {
	root *html.Node

	// 宿主元素 -> 影子根
	shadows map[*html.Node]*html.Node
	// 影子根 -> 模式（open/closed）
	shadowModes map[*html.Node]string

	observers []*Observer

	maxFlushRounds int
	dropped        int
}

// NewDocument 用已有的节点树创建文档（不会转换声明式影子根）
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:           root,
		shadows:        make(map[*html.Node]*html.Node),
		shadowModes:    make(map[*html.Node]string),
		maxFlushRounds: DefaultMaxFlushRounds,
	}
}

// Parse 解析 HTML 文档，并把 <template shadowrootmode> 转换为影子根
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := NewDocument(root)
	d.adoptDeclarativeShadowRoots(root)
	return d, nil
}

// SetMaxFlushRounds 设置 Flush 的最大轮数，<= 0 时恢复默认值
func (d *Document) SetMaxFlushRounds(n int) {
	if n <= 0 {
		n = DefaultMaxFlushRounds
	}
	d.maxFlushRounds = n
}

// Root 返回文档节点
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement 返回 <html> 元素
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Head 返回 <head> 元素
func (d *Document) Head() *html.Node {
	return d.childOfHTML(atom.Head)
}

// Body 返回 <body> 元素
func (d *Document) Body() *html.Node {
	return d.childOfHTML(atom.Body)
}

func (d *Document) childOfHTML(a atom.Atom) *html.Node {
	el := d.DocumentElement()
	if el == nil {
		return nil
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// titleElement 返回 <head> 中的 <title>
func (d *Document) titleElement() *html.Node {
	head := d.Head()
	if head == nil {
		return nil
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Title {
			return c
		}
	}
	return nil
}

// Title 返回文档标题
func (d *Document) Title() string {
	el := d.titleElement()
	if el == nil {
		return ""
	}
	return TextContent(el)
}

// SetTitle 设置文档标题，必要时创建 <title>
func (d *Document) SetTitle(title string) {
	el := d.titleElement()
	if el == nil {
		head := d.Head()
		if head == nil {
			return
		}
		el = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		d.AppendChild(head, el)
	}
	d.SetTextContent(el, title)
}

// ShadowRoot 返回宿主元素的影子根，不存在时返回 nil
func (d *Document) ShadowRoot(host *html.Node) *html.Node {
	if host == nil {
		return nil
	}
	return d.shadows[host]
}

// ShadowMode 返回影子根的模式
func (d *Document) ShadowMode(root *html.Node) string {
	return d.shadowModes[root]
}

// AttachShadow 为宿主元素附加影子根；已存在时直接返回
func (d *Document) AttachShadow(host *html.Node, mode string) *html.Node {
	if sr, ok := d.shadows[host]; ok {
		return sr
	}
	if mode == "" {
		mode = "open"
	}
	sr := &html.Node{Type: html.DocumentNode, Data: ShadowRootName}
	d.shadows[host] = sr
	d.shadowModes[sr] = mode
	return sr
}

// adoptDeclarativeShadowRoots 把声明式影子根从树中摘出，挂到宿主上
func (d *Document) adoptDeclarativeShadowRoots(n *html.Node) {
	var templates []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Template &&
				c.Parent != nil && c.Parent.Type == html.ElementNode {
				if _, ok := Attr(c, "shadowrootmode"); ok {
					templates = append(templates, c)
				}
			}
			walk(c)
		}
	}
	walk(n)

	for _, tpl := range templates {
		host := tpl.Parent
		if _, exists := d.shadows[host]; exists {
			continue
		}
		mode, _ := Attr(tpl, "shadowrootmode")
		sr := d.AttachShadow(host, mode)
		for c := tpl.FirstChild; c != nil; {
			next := c.NextSibling
			tpl.RemoveChild(c)
			sr.AppendChild(c)
			c = next
		}
		host.RemoveChild(tpl)
	}
}

// Render 序列化文档，影子根以声明式 <template> 形式输出
func (d *Document) Render(w io.Writer) error {
	type restore struct {
		host, tpl, sr *html.Node
	}
	var restores []restore

	for host, sr := range d.shadows {
		if !d.contains(host) {
			continue
		}
		tpl := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Template,
			Data:     "template",
			Attr:     []html.Attribute{{Key: "shadowrootmode", Val: d.shadowModes[sr]}},
		}
		for c := sr.FirstChild; c != nil; {
			next := c.NextSibling
			sr.RemoveChild(c)
			tpl.AppendChild(c)
			c = next
		}
		host.InsertBefore(tpl, host.FirstChild)
		restores = append(restores, restore{host: host, tpl: tpl, sr: sr})
	}

	err := html.Render(w, d.root)

	for _, r := range restores {
		r.host.RemoveChild(r.tpl)
		for c := r.tpl.FirstChild; c != nil; {
			next := c.NextSibling
			r.tpl.RemoveChild(c)
			r.sr.AppendChild(c)
			c = next
		}
	}

	if err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// contains 判断节点是否挂在文档树（含影子树）上
func (d *Document) contains(n *html.Node) bool {
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	if top == d.root {
		return true
	}
	for host, sr := range d.shadows {
		if sr == top {
			return d.contains(host)
		}
	}
	return false
}
