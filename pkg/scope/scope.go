// Package scope 把公共词库与页面类型词库合并为一个只读的规则范围，
// 并在其上解析单条文本的译文。
package scope

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
)

// RuleScope 当前页面类型的有效规则。构建后不可修改，页面类型变化时整体替换。
type RuleScope struct {
	PageType   page.Type
	StaticDict map[string]string
	RegexRules []i18n.Rule

	// 以 ", " 连接的组合选择器，保证非空
	IgnoreMutationSelector string
	IgnoreSelector         string

	WatchCharacterData bool
	DirectSelectors    []i18n.SelectorRule

	ignoreMutation cascadia.Selector
	ignore         cascadia.Selector
}

// IgnoreMutationMatcher 返回忽略变更选择器的匹配器
func (s *RuleScope) IgnoreMutationMatcher() dom.Matcher {
	if s == nil || s.ignoreMutation == nil {
		return nil
	}
	return s.ignoreMutation
}

// IgnoreMatcher 返回遍历剪枝选择器的匹配器
func (s *RuleScope) IgnoreMatcher() dom.Matcher {
	if s == nil || s.ignore == nil {
		return nil
	}
	return s.ignore
}

// Builder 规则范围构建器
type Builder struct {
	repo   *i18n.Repository
	lang   string
	logger *zap.Logger
}

// NewBuilder 创建构建器
func NewBuilder(repo *i18n.Repository, lang string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{repo: repo, lang: lang, logger: logger}
}

// Build 合并公共规则与页面规则。静态词典页面优先，正则与选择器规则公共在前。
func (b *Builder) Build(pageType page.Type) *RuleScope {
	pub := b.repo.Lookup(b.lang, i18n.PublicKey)
	specific := b.repo.Lookup(b.lang, string(pageType))

	s := &RuleScope{
		PageType:           pageType,
		StaticDict:         make(map[string]string),
		WatchCharacterData: b.repo.WatchCharacterData(string(pageType)),
	}

	for _, rules := range []*i18n.PageRules{pub, specific} {
		if rules == nil {
			continue
		}
		for k, v := range rules.Static {
			s.StaticDict[k] = v
		}
		s.RegexRules = append(s.RegexRules, rules.Regexp...)
		s.DirectSelectors = append(s.DirectSelectors, rules.Selector...)
	}

	defaults := i18n.DefaultConf()
	s.IgnoreMutationSelector, s.ignoreMutation = b.combine(
		b.repo.IgnoreMutationSelectors(string(pageType)),
		defaults.IgnoreMutationSelectorPage[i18n.WildcardKey])
	s.IgnoreSelector, s.ignore = b.combine(
		b.repo.IgnoreSelectors(string(pageType)),
		defaults.IgnoreSelectorPage[i18n.WildcardKey])

	return s
}

// combine 连接选择器；无效的单项会被丢弃，全部为空时回退到默认值
func (b *Builder) combine(selectors, fallback []string) (string, cascadia.Selector) {
	valid := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if _, err := dom.CompileSelector(sel); err != nil {
			b.logger.Warn("忽略无效选择器", zap.String("selector", sel), zap.Error(err))
			continue
		}
		valid = append(valid, sel)
	}
	if len(valid) == 0 {
		valid = fallback
	}

	joined := strings.Join(valid, ", ")
	m, err := dom.CompileSelector(joined)
	if err != nil {
		b.logger.Error("组合选择器编译失败", zap.String("selector", joined), zap.Error(err))
		return joined, nil
	}
	return joined, m
}
