package dom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en">
<head><title>Issues</title><meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;/issues"></head>
<body class="logged-in env-production">
  <div id="main"><span class="label">Open</span></div>
  <relative-time datetime="2024-03-03"><template shadowrootmode="open">on Mar 3, 2024</template></relative-time>
</body>
</html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestParseAccessors(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	require.NotNil(t, doc.Body())
	require.NotNil(t, doc.Head())
	assert.Equal(t, "Issues", doc.Title())
	assert.True(t, HasClass(doc.Body(), "logged-in"))
	assert.Equal(t, "en", AttrOr(doc.DocumentElement(), "lang", ""))

	meta := doc.QuerySelector(`meta[name="analytics-location"]`)
	require.NotNil(t, meta)
	assert.Equal(t, "/<user-name>/<repo-name>/issues", AttrOr(meta, "content", ""))
}

func TestDeclarativeShadowRoot(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	host := doc.QuerySelector("relative-time")
	require.NotNil(t, host)
	sr := doc.ShadowRoot(host)
	require.NotNil(t, sr)
	assert.Equal(t, "on Mar 3, 2024", TextContent(sr))
	// 模板已从主树中摘除
	assert.Nil(t, host.FirstChild)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), `<template shadowrootmode="open">on Mar 3, 2024</template>`)
	// 渲染后树结构恢复
	assert.Nil(t, host.FirstChild)
	assert.Equal(t, "on Mar 3, 2024", TextContent(doc.ShadowRoot(host)))
}

func TestSetTitle(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	doc.SetTitle("议题")
	assert.Equal(t, "议题", doc.Title())
}

func TestObserverSubtreeDelivery(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	var batches [][]Record
	doc.Observe(doc.Body(), ObserveOptions{
		ChildList:       true,
		Subtree:         true,
		AttributeFilter: []string{"placeholder"},
	}, func(recs []Record, _ *Observer) {
		batches = append(batches, recs)
	})

	main := doc.QuerySelector("#main")
	require.NotNil(t, main)

	p := NewElement("p")
	doc.AppendChild(main, p)
	doc.SetAttr(p, "placeholder", "Search")
	doc.SetAttr(p, "title", "ignored by filter")

	require.NoError(t, doc.Flush())
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, RecordChildList, batches[0][0].Type)
	assert.Equal(t, []*html.Node{p}, batches[0][0].AddedNodes)
	assert.Equal(t, RecordAttributes, batches[0][1].Type)
	assert.Equal(t, "placeholder", batches[0][1].AttributeName)
}

func TestObserverIgnoresShadowTree(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	calls := 0
	doc.Observe(doc.Body(), ObserveOptions{ChildList: true, Subtree: true, CharacterData: true},
		func([]Record, *Observer) { calls++ })

	host := doc.QuerySelector("relative-time")
	doc.SetTextContent(doc.ShadowRoot(host), "on Mar 4, 2024")
	require.NoError(t, doc.Flush())
	assert.Zero(t, calls)
}

func TestCharacterDataRecord(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	var got []Record
	doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true},
		func(recs []Record, _ *Observer) { got = append(got, recs...) })

	label := doc.QuerySelector(".label")
	doc.SetData(label.FirstChild, "Closed")
	require.NoError(t, doc.Flush())
	require.Len(t, got, 1)
	assert.Equal(t, "Open", got[0].OldValue)
	assert.Equal(t, "Closed", label.FirstChild.Data)
}

func TestFlushCascadesAndSettles(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	label := doc.QuerySelector(".label")

	rounds := 0
	doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true},
		func(recs []Record, _ *Observer) {
			rounds++
			if label.FirstChild.Data == "Closed" {
				doc.SetData(label.FirstChild, "已关闭")
			}
		})

	doc.SetData(label.FirstChild, "Closed")
	require.NoError(t, doc.Flush())
	assert.Equal(t, 2, rounds)
	assert.Equal(t, "已关闭", label.FirstChild.Data)
}

func TestFlushOverflow(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	doc.SetMaxFlushRounds(3)
	label := doc.QuerySelector(".label")

	doc.Observe(doc.Body(), ObserveOptions{CharacterData: true, Subtree: true},
		func([]Record, *Observer) { doc.SetData(label.FirstChild, "again") })

	doc.SetData(label.FirstChild, "x")
	assert.ErrorIs(t, doc.Flush(), ErrFlushOverflow)
	assert.Equal(t, 1, doc.Dropped())
	assert.Zero(t, doc.Pending())
}

func TestDisconnect(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	calls := 0
	o := doc.Observe(doc.Body(), ObserveOptions{ChildList: true, Subtree: true},
		func([]Record, *Observer) { calls++ })

	doc.AppendChild(doc.Body(), NewElement("div"))
	o.Disconnect()
	require.NoError(t, doc.Flush())
	assert.Zero(t, calls)
}

func TestClosestAndSelectors(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	label := doc.QuerySelector(".label")

	m, err := CompileSelector("#main, .nothing")
	require.NoError(t, err)
	assert.Equal(t, doc.QuerySelector("#main"), Closest(label, m))
	assert.Nil(t, Closest(doc.Body(), m))

	_, err = CompileSelector("  ")
	assert.ErrorIs(t, err, ErrEmptySelector)
}

func TestDatasetAttr(t *testing.T) {
	assert.Equal(t, "data-confirm", DatasetAttr("confirm"))
	assert.Equal(t, "data-confirm-cancel-text", DatasetAttr("confirmCancelText"))
	assert.Equal(t, "data-disable-with", DatasetAttr("disableWith"))
}

func TestTextLength(t *testing.T) {
	assert.Equal(t, 5, TextLength("hello"))
	assert.Equal(t, 2, TextLength("你好"))
	assert.Equal(t, 2, TextLength("😀"))
}
