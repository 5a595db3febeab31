// Package engine 驱动整页本地化：分类页面、维护当前规则范围、
// 订阅文档变更并把受影响的节点送入同一套逐节点翻译逻辑。
package engine

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
	"github.com/nerdneilsfield/go-github-chinese/pkg/scope"
)

// 默认值
const (
	DefaultLang          = "zh-CN"
	DefaultTextNodeLimit = 500
	slowTraversal        = 10 * time.Millisecond
)

var (
	// ErrStarted 引擎已经启动
	ErrStarted = errors.New("engine already started")
	// ErrNoScope 当前页面没有可用的规则范围
	ErrNoScope = errors.New("no active rule scope")
)

// 页面级观察者关注的属性
var observedAttributes = []string{"value", "placeholder", "aria-label", "data-confirm"}

// DefaultDescSelectors 页面类型 -> 简介元素选择器
func DefaultDescSelectors() map[string]string {
	return map[string]string{
		"repository": ".f4.my-3",
		"gist":       ".gist-content [itemprop='about']",
	}
}

// Options 引擎参数
type Options struct {
	// 目标语言，同时写入 <html lang>
	Lang string
	// 文本节点长度上限（UTF-16 码元），超过则跳过
	TextNodeLimit int
	DescSelectors map[string]string
	SiteMap       map[string]string
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		Lang:          DefaultLang,
		TextNodeLimit: DefaultTextNodeLimit,
		DescSelectors: DefaultDescSelectors(),
	}
}

// Recorder 指标上报接口
type Recorder interface {
	TraversalDone(d time.Duration)
	Translated(n int)
	Batch()
	ScopeRebuilt(pageType string)
}

type nopRecorder struct{}

func (nopRecorder) TraversalDone(time.Duration) {}
func (nopRecorder) Translated(int)              {}
func (nopRecorder) Batch()                      {}
func (nopRecorder) ScopeRebuilt(string)         {}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder 设置指标上报
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithFlags 设置功能开关存储
func WithFlags(f FlagStore) Option {
	return func(e *Engine) {
		if f != nil {
			e.flags = f
		}
	}
}

// WithTranslator 设置远程翻译
func WithTranslator(t Translator) Option {
	return func(e *Engine) {
		e.translator = t
	}
}

// Stats 运行统计
type Stats struct {
	SessionID  string
	PageType   page.Type
	Traversals int
	Rebuilds   int
	Translated int
	Batches    int
	Dropped    int
}

type features struct {
	regexp bool
	desc   bool
}

// Engine 页面本地化引擎。所有文档修改与引擎处理在 mu 下串行执行。
type Engine struct {
	mu sync.Mutex

	doc        *dom.Document
	repo       *i18n.Repository
	opts       Options
	classifier *page.Classifier
	builder    *scope.Builder

	logger     *zap.Logger
	metrics    Recorder
	flags      FlagStore
	translator Translator
	sessionID  string

	unsubscribe func()
	closeOnce   sync.Once

	started    bool
	url        *url.URL
	navigating bool
	nextURL    *url.URL

	pageType page.Type
	// 当前规则范围，整体替换
	scope atomic.Pointer[scope.RuleScope]
	// 最近一次构建的规则范围，页面类型不变时复用
	built *scope.RuleScope

	features features
	bodyObs  *dom.Observer
	langObs  *dom.Observer
	shadows  map[*html.Node]struct{}
	control  *DescControl
	stats    Stats

	// 逐节点处理钩子，测试用
	handled func(*html.Node)
}

// New 创建引擎
func New(doc *dom.Document, repo *i18n.Repository, opts Options, options ...Option) *Engine {
	if opts.TextNodeLimit <= 0 {
		opts.TextNodeLimit = DefaultTextNodeLimit
	}
	if opts.DescSelectors == nil {
		opts.DescSelectors = DefaultDescSelectors()
	}
	opts.Lang = canonicalLang(opts.Lang)

	e := &Engine{
		doc:       doc,
		repo:      repo,
		opts:      opts,
		logger:    zap.NewNop(),
		metrics:   nopRecorder{},
		sessionID: uuid.NewString(),
		shadows:   make(map[*html.Node]struct{}),
	}
	for _, o := range options {
		o(e)
	}
	if e.flags == nil {
		e.flags = NewMemoryFlags()
	}
	e.logger = e.logger.With(zap.String("session", e.sessionID))

	classifierOpts := []page.Option{page.WithLogger(e.logger)}
	if len(opts.SiteMap) > 0 {
		classifierOpts = append(classifierOpts, page.WithSiteMap(opts.SiteMap))
	}
	e.classifier = page.NewClassifier(repo, opts.Lang, classifierOpts...)
	e.builder = scope.NewBuilder(repo, opts.Lang, e.logger)

	e.features = features{
		regexp: e.flags.Bool(FlagRegexp, true),
		desc:   e.flags.Bool(FlagTransDesc, true),
	}
	e.unsubscribe = e.flags.Subscribe(e.onFlag)
	return e
}

// Close 取消功能开关订阅并停止页面监听，可重复调用
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.unsubscribe != nil {
			e.unsubscribe()
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.bodyObs != nil {
			e.bodyObs.Disconnect()
		}
		if e.langObs != nil {
			e.langObs.Disconnect()
		}
	})
}

// canonicalLang 规范化语言标签，无效时回退到默认语言
func canonicalLang(lang string) string {
	if lang == "" {
		return DefaultLang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLang
	}
	return tag.String()
}

// Document 返回引擎管理的文档
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Lang 返回目标语言
func (e *Engine) Lang() string {
	return e.opts.Lang
}

// Start 初始化页面：设置语言、分类、订阅 body 变更、首次全量翻译
func (e *Engine) Start(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrStarted
	}
	e.started = true
	e.url = u

	e.pinLang()
	e.classify()

	if body := e.doc.Body(); body != nil {
		e.bodyObs = e.doc.Observe(body, dom.ObserveOptions{
			ChildList:       true,
			Subtree:         true,
			CharacterData:   true,
			AttributeFilter: observedAttributes,
		}, e.onBatch)

		if e.scope.Load() != nil {
			e.logger.Debug("开始全量翻译", zap.String("pageType", string(e.pageType)))
			e.traverse(body)
		}
	}

	e.pageLoaded()
	e.drain()
	return nil
}

// Navigate 标记页面即将切换。下一批变更到达时，若地址确实变化则重新分类。
func (e *Engine) Navigate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}
	e.mu.Lock()
	e.navigating = true
	e.nextURL = u
	e.mu.Unlock()
	return nil
}

// PageLoaded 页面加载完成：翻译标题、应用选择器规则、安装简介翻译按钮
func (e *Engine) PageLoaded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pageLoaded()
	e.drain()
}

// Flush 投递文档中积压的变更记录
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drain()
}

// Do 在引擎锁内修改文档，返回前处理完由此产生的全部变更
func (e *Engine) Do(fn func(doc *dom.Document)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.doc)
	e.drain()
}

// TraverseNode 以 root 为根执行一次过滤遍历
func (e *Engine) TraverseNode(root *html.Node) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scope.Load() == nil {
		return ErrNoScope
	}
	e.traverse(root)
	e.drain()
	return nil
}

// Scope 返回当前规则范围，可能为 nil
func (e *Engine) Scope() *scope.RuleScope {
	return e.scope.Load()
}

// PageType 返回当前页面类型
func (e *Engine) PageType() page.Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageType
}

// URL 返回当前页面地址
func (e *Engine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.url == nil {
		return ""
	}
	return e.url.String()
}

// Stats 返回运行统计
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.SessionID = e.sessionID
	s.PageType = e.pageType
	s.Dropped = e.doc.Dropped()
	return s
}

// pinLang 设置 <html lang>，并在页面把它改回 en 时恢复
func (e *Engine) pinLang() {
	root := e.doc.DocumentElement()
	if root == nil {
		return
	}
	e.doc.SetAttr(root, "lang", e.opts.Lang)
	e.langObs = e.doc.Observe(root, dom.ObserveOptions{AttributeFilter: []string{"lang"}},
		func([]dom.Record, *dom.Observer) {
			if dom.AttrOr(root, "lang", "") == "en" {
				e.doc.SetAttr(root, "lang", e.opts.Lang)
			}
		})
}

// classify 重新分类；页面类型变化时才重建规则范围
func (e *Engine) classify() {
	t := e.classifier.DetectDocument(e.doc, e.url)
	if t == page.None {
		e.pageType = page.None
		e.scope.Store(nil)
		return
	}

	if e.built == nil || e.built.PageType != t {
		e.built = e.builder.Build(t)
		e.stats.Rebuilds++
		e.metrics.ScopeRebuilt(string(t))
		e.logger.Info("页面切换",
			zap.String("pageType", string(t)),
			zap.String("url", e.url.String()))
	}
	e.pageType = t
	e.scope.Store(e.built)
}

// handleURLChange 导航标记存在且地址已变化时重新分类
func (e *Engine) handleURLChange() {
	if e.nextURL == nil || (e.url != nil && e.nextURL.String() == e.url.String()) {
		return
	}
	e.url = e.nextURL
	e.nextURL = nil
	e.navigating = false
	e.classify()
}

func (e *Engine) pageLoaded() {
	s := e.scope.Load()
	if s == nil {
		return
	}

	e.translateTitle()
	for _, rule := range s.DirectSelectors {
		if el := e.doc.QuerySelector(rule.Selector); el != nil {
			e.doc.SetTextContent(el, rule.Text)
		}
	}
	if e.features.desc {
		e.installDescControl()
	}
}

// translateTitle 用 title 词库翻译文档标题，未命中保持原样
func (e *Engine) translateTitle() {
	title := e.doc.Title()
	if title == "" {
		return
	}
	out, ok := scope.ResolveWith(e.repo.Lookup(e.opts.Lang, i18n.TitleKey), title)
	if ok && out != title {
		e.doc.SetTitle(out)
		e.countTranslated(1)
	}
}

func (e *Engine) drain() {
	before := e.doc.Dropped()
	if err := e.doc.Flush(); err != nil {
		e.logger.Warn("变更队列未能静止，剩余记录已丢弃",
			zap.Int("dropped", e.doc.Dropped()-before),
			zap.Error(err))
	}
}

func (e *Engine) countTranslated(n int) {
	e.stats.Translated += n
	e.metrics.Translated(n)
}
