package i18n

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout 单条正则的匹配超时，防止灾难性回溯拖住整页
const DefaultMatchTimeout = 200 * time.Millisecond

// namedGroupRef JS 的 $<name> 引用
var namedGroupRef = regexp.MustCompile(`\$<([A-Za-z_][A-Za-z0-9_]*)>`)

// Rule 正则替换规则
type Rule struct {
	// 原始写法（/body/flags 或裸表达式）
	Source      string
	Pattern     *regexp2.Regexp
	Replacement string
	// g 标志：替换全部匹配，否则只替换第一个
	Global bool
}

// CompileRule 编译一条正则规则
func CompileRule(pattern, replacement string) (Rule, error) {
	body, flags := splitLiteral(pattern)

	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	global := false
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			// ECMAScript 模式不允许与 Singleline 组合
			opts = (opts &^ regexp2.ECMAScript) | regexp2.Singleline
		case 'u', 'y', 'd':
		default:
			return Rule{}, fmt.Errorf("unsupported regexp flag %q in %s", f, pattern)
		}
	}

	re, err := regexp2.Compile(body, opts)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regexp %s: %w", pattern, err)
	}
	re.MatchTimeout = DefaultMatchTimeout

	return Rule{
		Source:      pattern,
		Pattern:     re,
		Replacement: namedGroupRef.ReplaceAllString(replacement, "$${$1}"),
		Global:      global,
	}, nil
}

// MustCompileRule 编译失败时 panic，仅用于测试和内置数据
func MustCompileRule(pattern, replacement string) Rule {
	r, err := CompileRule(pattern, replacement)
	if err != nil {
		panic(err)
	}
	return r
}

// Apply 按 String.prototype.replace 的语义替换，出错时原样返回
func (r Rule) Apply(text string) string {
	if r.Pattern == nil {
		return text
	}
	count := 1
	if r.Global {
		count = -1
	}
	out, err := r.Pattern.Replace(text, r.Replacement, -1, count)
	if err != nil {
		return text
	}
	return out
}

// splitLiteral 拆分 /body/flags 写法
func splitLiteral(s string) (string, string) {
	if len(s) < 2 || s[0] != '/' {
		return s, ""
	}
	last := strings.LastIndexByte(s, '/')
	if last == 0 {
		return s, ""
	}
	flags := s[last+1:]
	for _, f := range flags {
		if !strings.ContainsRune("gimsuyd", f) {
			return s, ""
		}
	}
	return s[1:last], flags
}

// CompilePattern 编译分类器使用的路径正则
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	r, err := CompileRule(pattern, "")
	if err != nil {
		return nil, err
	}
	return r.Pattern, nil
}

// SelectorRule 选择器直译规则：命中元素的文本整体替换
type SelectorRule struct {
	Selector string
	Text     string
}
