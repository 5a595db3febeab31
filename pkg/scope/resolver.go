package scope

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
)

var (
	// 空白或纯数字
	reBlankOrDigits = regexp.MustCompile(`^[\s\x{00a0}\x{feff}0-9]*$`)
	// 纯中文
	reTargetScript = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}]+$`)
	// 含英文字母或逗号句点才值得查词
	reSourceScript = regexp.MustCompile(`[a-zA-Z,.]`)
)

// ShouldSkip 判断文本是否无需翻译
func ShouldSkip(text string) bool {
	return reBlankOrDigits.MatchString(text) ||
		reTargetScript.MatchString(text) ||
		!reSourceScript.MatchString(text)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\u00a0' || r == '\ufeff'
}

// Normalize 返回去除首尾空白的文本与折叠内部空白后的查词键
func Normalize(text string) (trimmed, key string) {
	trimmed = strings.TrimFunc(text, isSpace)
	key = strings.Join(strings.FieldsFunc(trimmed, isSpace), " ")
	return trimmed, key
}

// Resolve 解析文本译文。返回 false 表示不翻译，调用方保持原文。
// 命中时只替换去除首尾空白的部分，原有首尾空白保留。
func Resolve(s *RuleScope, text string, regexEnabled bool) (string, bool) {
	if s == nil || ShouldSkip(text) {
		return "", false
	}

	trimmed, key := Normalize(text)
	translated, ok := lookup(s.StaticDict, s.RegexRules, key, regexEnabled)
	// 译文与原文相同视为未命中，空串除外
	if !ok || (translated != "" && translated == key) {
		return "", false
	}
	return strings.Replace(text, trimmed, translated, 1), true
}

// lookup 先查静态词典（空串也算命中），再按顺序尝试正则
func lookup(dict map[string]string, rules []i18n.Rule, key string, regexEnabled bool) (string, bool) {
	if v, ok := dict[key]; ok {
		return v, true
	}
	if !regexEnabled {
		return "", false
	}
	for _, r := range rules {
		if out := r.Apply(key); out != key {
			return out, true
		}
	}
	return "", false
}

// ResolveWith 在任意规则集上解析（标题词库使用，正则总是启用）
func ResolveWith(rules *i18n.PageRules, text string) (string, bool) {
	if rules == nil {
		return "", false
	}
	return lookup(rules.Static, rules.Regexp, text, true)
}
