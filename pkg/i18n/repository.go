// Package i18n 是词库仓库：按页面类型组织的静态词典、正则规则与选择器规则，
// 以及分类器和遍历器使用的全局配置。仓库只承载数据，不含翻译逻辑。
package i18n

import (
	"github.com/dlclark/regexp2"
)

// PublicKey 合并到每个页面类型的公共词库
const PublicKey = "public"

// TitleKey 文档标题专用词库
const TitleKey = "title"

// WildcardKey 全局配置中对所有页面生效的键
const WildcardKey = "*"

// PageRules 单个页面类型的规则
type PageRules struct {
	Static   map[string]string
	Regexp   []Rule
	Selector []SelectorRule
}

// Empty 判断规则是否为空
func (p *PageRules) Empty() bool {
	return p == nil || (len(p.Static) == 0 && len(p.Regexp) == 0 && len(p.Selector) == 0)
}

// merge 合并另一份规则：静态词典后者覆盖，列表追加
func (p *PageRules) merge(o *PageRules) {
	if o == nil {
		return
	}
	if p.Static == nil {
		p.Static = make(map[string]string, len(o.Static))
	}
	for k, v := range o.Static {
		p.Static[k] = v
	}
	p.Regexp = append(p.Regexp, o.Regexp...)
	p.Selector = append(p.Selector, o.Selector...)
}

// Locale 某个目标语言下 页面类型 -> 规则
type Locale map[string]*PageRules

// Conf 全局配置
type Conf struct {
	// 页面类型 -> 忽略变更的祖先选择器，* 对所有页面生效
	IgnoreMutationSelectorPage map[string][]string
	// 页面类型 -> 遍历时整棵剪除的选择器
	IgnoreSelectorPage map[string][]string
	// 需要监听文本节点变更的页面类型
	CharacterDataPage []string

	RePagePathRepo *regexp2.Regexp
	RePagePathOrg  *regexp2.Regexp
	RePagePath     *regexp2.Regexp
}

// Repository 词库仓库
type Repository struct {
	Conf    Conf
	Locales map[string]Locale
}

// NewRepository 创建只带默认配置的空仓库
func NewRepository() *Repository {
	return &Repository{
		Conf:    DefaultConf(),
		Locales: make(map[string]Locale),
	}
}

// DefaultConf 默认全局配置，保证 * 下的选择器非空
func DefaultConf() Conf {
	return Conf{
		IgnoreMutationSelectorPage: map[string][]string{
			WildcardKey: {
				".js-file-line-container",
				".highlight",
				".blob-code",
				"#readme",
				"td.blob-code",
				".markdown-body",
			},
		},
		IgnoreSelectorPage: map[string][]string{
			WildcardKey: {
				"style",
				"script",
				"svg",
				"pre",
				"code",
				"table.highlight",
				".blob-code-inner",
				"#translate-me",
			},
		},
		CharacterDataPage: []string{},
	}
}

// Lookup 返回指定语言和页面类型的规则，未知键返回 nil
func (r *Repository) Lookup(lang, pageType string) *PageRules {
	if r == nil {
		return nil
	}
	loc, ok := r.Locales[lang]
	if !ok {
		return nil
	}
	return loc[pageType]
}

// Has 仅当页面类型存在非空词库时返回 true
func (r *Repository) Has(lang, pageType string) bool {
	return !r.Lookup(lang, pageType).Empty()
}

// PageTypes 返回某语言下的所有页面类型
func (r *Repository) PageTypes(lang string) []string {
	loc := r.Locales[lang]
	types := make([]string, 0, len(loc))
	for k := range loc {
		types = append(types, k)
	}
	return types
}

// IgnoreMutationSelectors 返回 * 与页面类型的忽略变更选择器
func (r *Repository) IgnoreMutationSelectors(pageType string) []string {
	return joinBuckets(r.Conf.IgnoreMutationSelectorPage, pageType)
}

// IgnoreSelectors 返回 * 与页面类型的遍历忽略选择器
func (r *Repository) IgnoreSelectors(pageType string) []string {
	return joinBuckets(r.Conf.IgnoreSelectorPage, pageType)
}

// WatchCharacterData 页面类型是否需要监听文本节点变更
func (r *Repository) WatchCharacterData(pageType string) bool {
	for _, t := range r.Conf.CharacterDataPage {
		if t == pageType {
			return true
		}
	}
	return false
}

func joinBuckets(m map[string][]string, pageType string) []string {
	out := make([]string, 0, len(m[WildcardKey])+len(m[pageType]))
	out = append(out, m[WildcardKey]...)
	if pageType != WildcardKey {
		out = append(out, m[pageType]...)
	}
	return out
}

// Merge 把另一个仓库合并进来，后者优先
func (r *Repository) Merge(o *Repository) {
	if o == nil {
		return
	}
	mergeBuckets(r.Conf.IgnoreMutationSelectorPage, o.Conf.IgnoreMutationSelectorPage)
	mergeBuckets(r.Conf.IgnoreSelectorPage, o.Conf.IgnoreSelectorPage)
	r.Conf.CharacterDataPage = append(r.Conf.CharacterDataPage, o.Conf.CharacterDataPage...)
	if o.Conf.RePagePathRepo != nil {
		r.Conf.RePagePathRepo = o.Conf.RePagePathRepo
	}
	if o.Conf.RePagePathOrg != nil {
		r.Conf.RePagePathOrg = o.Conf.RePagePathOrg
	}
	if o.Conf.RePagePath != nil {
		r.Conf.RePagePath = o.Conf.RePagePath
	}

	for lang, loc := range o.Locales {
		dst, ok := r.Locales[lang]
		if !ok {
			dst = make(Locale)
			r.Locales[lang] = dst
		}
		for pageType, rules := range loc {
			cur, ok := dst[pageType]
			if !ok {
				cur = &PageRules{}
				dst[pageType] = cur
			}
			cur.merge(rules)
		}
	}
}

func mergeBuckets(dst, src map[string][]string) {
	for k, v := range src {
		dst[k] = v
	}
}
