package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/factory"
)

func newRemoteCommand(a *app) *cobra.Command {
	var (
		engineName string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "remote [flags] [text...]",
		Short: "用远程翻译引擎翻译整段文本",
		Long: `把文本交给远程翻译引擎。不带参数时从标准输入逐行读取，每个非空行一段。
失败的段落输出失败提示而不中断其余段落。

用法示例：
  ghzh remote "My first repository on GitHub!"
  ghzh remote --engine deeplx < descriptions.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				lines, err := readLines(cmd)
				if err != nil {
					return err
				}
				texts = lines
			}
			if len(texts) == 0 {
				return errors.New("没有需要翻译的文本")
			}

			b, err := a.bridge(engineName, nil)
			if err != nil {
				return err
			}

			var bar *pterm.ProgressbarPrinter
			if !noProgress && len(texts) > 1 {
				bar, _ = pterm.DefaultProgressbar.
					WithTotal(len(texts)).
					WithTitle(fmt.Sprintf("翻译中 (%s)", b.Engine())).
					WithWriter(cmd.ErrOrStderr()).
					Start()
			}

			results := make([]string, 0, len(texts))
			for _, t := range texts {
				results = append(results, b.TranslateBlock(cmd.Context(), t))
				if bar != nil {
					bar.Increment()
				}
			}
			if bar != nil {
				_, _ = bar.Stop()
			}

			w := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintln(w, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "翻译引擎，默认使用配置中的 trans_engine")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	return cmd
}

// readLines 读取标准输入中的非空行
func readLines(cmd *cobra.Command) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取标准输入失败: %w", err)
	}
	return lines, nil
}

func newEnginesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "列出可用的翻译引擎",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := factory.New()
			if err := f.Build(a.cfg.TransEngines); err != nil {
				return fmt.Errorf("创建翻译引擎失败: %w", err)
			}

			title(cmd, "翻译引擎")
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"名称", "类型", "显示名", "默认"})
			attrs := f.Registry().Attributions()
			for _, name := range f.Registry().List() {
				typ := a.cfg.TransEngines[name].Type
				if typ == "" {
					typ = factory.TypeHTTPJSON
				}
				mark := ""
				if name == a.cfg.TransEngine {
					mark = "*"
				}
				tw.AppendRow(table.Row{name, typ, attrs[name].Name, mark})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()

			types := factory.SupportedTypes()
			sort.Strings(types)
			fmt.Fprintf(cmd.OutOrStdout(), "支持的类型: %s\n", strings.Join(types, ", "))
			return nil
		},
	}
}
