package dom

import (
	"errors"

	"golang.org/x/net/html"
)

// ErrFlushOverflow Flush 超过最大轮数仍未静止，剩余记录被丢弃
var ErrFlushOverflow = errors.New("mutation flush did not settle")

// RecordType 变更记录类型
type RecordType string

const (
	RecordChildList     RecordType = "childList"
	RecordAttributes    RecordType = "attributes"
	RecordCharacterData RecordType = "characterData"
)

// Record 单条变更记录
type Record struct {
	Type          RecordType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
}

// ObserveOptions 观察选项
type ObserveOptions struct {
	ChildList     bool
	Attributes    bool
	CharacterData bool
	Subtree       bool
	// 非空时只关注这些属性，并隐含 Attributes=true
	AttributeFilter []string
}

// Callback 批量回调，一次 Flush 轮次内同一观察者的记录作为一个批次
type Callback func(records []Record, o *Observer)

// Observer 变更观察者
type Observer struct {
	doc     *Document
	target  *html.Node
	opts    ObserveOptions
	cb      Callback
	queue   []Record
	stopped bool
}

// Observe 在 target 上注册观察者
func (d *Document) Observe(target *html.Node, opts ObserveOptions, cb Callback) *Observer {
	if len(opts.AttributeFilter) > 0 {
		opts.Attributes = true
	}
	o := &Observer{doc: d, target: target, opts: opts, cb: cb}
	d.observers = append(d.observers, o)
	return o
}

// Target 返回被观察的节点
func (o *Observer) Target() *html.Node {
	return o.target
}

// Disconnect 停止观察并清空待投递的记录
func (o *Observer) Disconnect() {
	o.stopped = true
	o.queue = nil
	obs := o.doc.observers[:0]
	for _, other := range o.doc.observers {
		if other != o {
			obs = append(obs, other)
		}
	}
	o.doc.observers = obs
}

// TakeRecords 取走尚未投递的记录
func (o *Observer) TakeRecords() []Record {
	recs := o.queue
	o.queue = nil
	return recs
}

// wants 判断记录是否属于该观察者
func (o *Observer) wants(r Record) bool {
	if o.stopped || o.target == nil {
		return false
	}
	if r.Target != o.target && !(o.opts.Subtree && IsAncestor(o.target, r.Target)) {
		return false
	}

	switch r.Type {
	case RecordChildList:
		return o.opts.ChildList
	case RecordCharacterData:
		return o.opts.CharacterData
	case RecordAttributes:
		if !o.opts.Attributes {
			return false
		}
		if len(o.opts.AttributeFilter) == 0 {
			return true
		}
		for _, name := range o.opts.AttributeFilter {
			if name == r.AttributeName {
				return true
			}
		}
		return false
	}
	return false
}

func (d *Document) enqueue(r Record) {
	for _, o := range d.observers {
		if o.wants(r) {
			o.queue = append(o.queue, r)
		}
	}
}

// Pending 返回尚未投递的记录总数
func (d *Document) Pending() int {
	n := 0
	for _, o := range d.observers {
		n += len(o.queue)
	}
	return n
}

// Dropped 返回因 Flush 溢出而丢弃的记录数
func (d *Document) Dropped() int {
	return d.dropped
}

// Flush 投递所有待处理记录。回调中产生的新记录会在下一轮投递，
// 直到没有新记录或达到最大轮数。批次之间严格串行。
func (d *Document) Flush() error {
	for round := 0; round < d.maxFlushRounds; round++ {
		delivered := false
		snapshot := append([]*Observer(nil), d.observers...)
		for _, o := range snapshot {
			if o.stopped || len(o.queue) == 0 {
				continue
			}
			recs := o.queue
			o.queue = nil
			delivered = true
			o.cb(recs, o)
		}
		if !delivered {
			return nil
		}
	}

	for _, o := range d.observers {
		d.dropped += len(o.queue)
		o.queue = nil
	}
	return ErrFlushOverflow
}
