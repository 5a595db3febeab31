package dom

import (
	"golang.org/x/net/html"
)

// AppendChild 追加子节点（若已有父节点会先摘除）
func (d *Document) AppendChild(parent, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	if child.Parent != nil {
		d.RemoveChild(child)
	}
	parent.AppendChild(child)
	d.enqueue(Record{Type: RecordChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// InsertAfter 把 node 插入到 ref 之后
func (d *Document) InsertAfter(ref, node *html.Node) {
	if ref == nil || ref.Parent == nil || node == nil {
		return
	}
	if node.Parent != nil {
		d.RemoveChild(node)
	}
	parent := ref.Parent
	parent.InsertBefore(node, ref.NextSibling)
	d.enqueue(Record{Type: RecordChildList, Target: parent, AddedNodes: []*html.Node{node}})
}

// RemoveChild 从父节点摘除
func (d *Document) RemoveChild(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	parent := n.Parent
	// 先入队再摘除，保证观察者的祖先判断仍能命中
	d.enqueue(Record{Type: RecordChildList, Target: parent, RemovedNodes: []*html.Node{n}})
	parent.RemoveChild(n)
}

// SetTextContent 设置节点文本。元素/影子根会替换全部子节点，文本节点改写 data。
func (d *Document) SetTextContent(n *html.Node, text string) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		d.SetData(n, text)
		return
	}

	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}

	var added []*html.Node
	if text != "" {
		t := NewText(text)
		n.AppendChild(t)
		added = append(added, t)
	}

	if len(removed) == 0 && len(added) == 0 {
		return
	}
	d.enqueue(Record{Type: RecordChildList, Target: n, AddedNodes: added, RemovedNodes: removed})
}

// SetData 改写文本节点内容
func (d *Document) SetData(n *html.Node, data string) {
	if n == nil || (n.Type != html.TextNode && n.Type != html.CommentNode) {
		return
	}
	old := n.Data
	n.Data = data
	d.enqueue(Record{Type: RecordCharacterData, Target: n, OldValue: old})
}

// SetAttr 设置属性（浏览器语义：即使值相同也会产生记录）
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	old := ""
	found := false
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old = n.Attr[i].Val
			n.Attr[i].Val = val
			found = true
			break
		}
	}
	if !found {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.enqueue(Record{Type: RecordAttributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttr 删除属性
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old := n.Attr[i].Val
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.enqueue(Record{Type: RecordAttributes, Target: n, AttributeName: key, OldValue: old})
			return
		}
	}
}
