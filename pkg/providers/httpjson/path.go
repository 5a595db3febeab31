package httpjson

import (
	"regexp"
	"strings"
)

var reIndex = regexp.MustCompile(`\[(\d+)\]`)

// gjson 路径中需要转义的字符
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`!`, `\!`,
	`=`, `\=`,
	`<`, `\<`,
	`>`, `\>`,
	`%`, `\%`,
)

// ConvertPath 把 a.b[0]?.c 形式的响应路径转换为 gjson 路径 a.b.0.c。
// 可选链标记 ?. 与普通的 . 等价：缺失的中间节点总是视为未找到。
func ConvertPath(path string) string {
	path = strings.ReplaceAll(path, "?.", ".")
	path = strings.TrimSuffix(path, "?")
	path = reIndex.ReplaceAllString(path, ".$1")

	parts := strings.Split(path, ".")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		keys = append(keys, pathEscaper.Replace(p))
	}
	return strings.Join(keys, ".")
}
