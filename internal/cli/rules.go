package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
	"github.com/nerdneilsfield/go-github-chinese/pkg/scope"
)

// 表格中单元格的最大显示宽度
const cellWidth = 40

// 未命中时最多给出的近似词条数
const maxSuggestions = 5

func newLookupCommand(a *app) *cobra.Command {
	var (
		pageType string
		noRegexp bool
	)

	cmd := &cobra.Command{
		Use:   "lookup [flags] <text>",
		Short: "在词库中查询一条文本的译文",
		Long: `按页面类型合并公共词库与页面词库后查询文本译文，先查静态词典再试正则规则。
未命中时列出静态词典中的近似词条。

用法示例：
  ghzh lookup "New issue" --page repository/issues
  ghzh lookup "3 comments" --no-regexp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			s := scope.NewBuilder(repo, a.cfg.Lang, a.log).Build(page.Type(pageType))
			w := cmd.OutOrStdout()

			if out, ok := scope.Resolve(s, args[0], !noRegexp); ok {
				fmt.Fprintln(w, out)
				return nil
			}

			color.New(color.FgYellow).Fprintf(w, "未找到 %q 的译文\n", args[0])
			if suggestions := suggest(s.StaticDict, args[0]); len(suggestions) > 0 {
				fmt.Fprintln(w, "近似词条:")
				for _, k := range suggestions {
					fmt.Fprintf(w, "  %s => %s\n", k, s.StaticDict[k])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pageType, "page", "p", "", "页面类型，空为只用公共词库")
	cmd.Flags().BoolVar(&noRegexp, "no-regexp", false, "只查静态词典")
	return cmd
}

// suggest 按模糊匹配距离返回最接近的词条
func suggest(dict map[string]string, source string) []string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	ranks := fuzzy.RankFindFold(source, keys)
	sort.Sort(ranks)

	out := make([]string, 0, maxSuggestions)
	for _, r := range ranks {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

func newRulesCommand(a *app) *cobra.Command {
	var pageType string

	cmd := &cobra.Command{
		Use:   "rules [flags]",
		Short: "查看词库",
		Long: `不带参数时列出所有页面类型及其词条数量；
使用 --page 时列出该页面类型的全部规则。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			if pageType == "" {
				title(cmd, fmt.Sprintf("词库概览 (%s)", a.cfg.Lang))
				renderSummary(cmd.OutOrStdout(), repo, a.cfg.Lang)
				return nil
			}
			rules := repo.Lookup(a.cfg.Lang, pageType)
			if rules.Empty() {
				return fmt.Errorf("页面类型 %s 没有词库", pageType)
			}
			title(cmd, fmt.Sprintf("%s 的规则", pageType))
			renderRules(cmd.OutOrStdout(), rules)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pageType, "page", "p", "", "页面类型")
	return cmd
}

// renderSummary 输出各页面类型的规则数量
func renderSummary(w io.Writer, repo *i18n.Repository, lang string) {
	types := repo.PageTypes(lang)
	sort.Strings(types)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"页面类型", "静态", "正则", "选择器"})
	var static, regexps, selectors int
	for _, t := range types {
		rules := repo.Lookup(lang, t)
		if rules == nil {
			continue
		}
		tw.AppendRow(table.Row{t, len(rules.Static), len(rules.Regexp), len(rules.Selector)})
		static += len(rules.Static)
		regexps += len(rules.Regexp)
		selectors += len(rules.Selector)
	}
	tw.AppendFooter(table.Row{"合计", static, regexps, selectors})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// renderRules 输出单个页面类型的规则
func renderRules(w io.Writer, rules *i18n.PageRules) {
	keys := make([]string, 0, len(rules.Static))
	for k := range rules.Static {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"类别", "原文", "译文"})
	for _, k := range keys {
		tw.AppendRow(table.Row{"static", clip(k), clip(rules.Static[k])})
	}
	for _, r := range rules.Regexp {
		tw.AppendRow(table.Row{"regexp", clip(r.Source), clip(r.Replacement)})
	}
	for _, r := range rules.Selector {
		tw.AppendRow(table.Row{"selector", clip(r.Selector), clip(r.Text)})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// clip 按显示宽度截断，中文按两列计算
func clip(s string) string {
	if runewidth.StringWidth(s) <= cellWidth {
		return s
	}
	return runewidth.Truncate(s, cellWidth, "…")
}
