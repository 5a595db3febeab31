package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
)

func newTranslateCommand(a *app) *cobra.Command {
	var (
		pageURL  string
		output   string
		describe bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "translate [flags] [page.html]",
		Short: "本地化一个 GitHub 页面的 HTML",
		Long: `读取页面 HTML（文件或标准输入），按页面地址识别页面类型并替换界面文本，
输出本地化后的 HTML。

用法示例：
  ghzh translate --url https://github.com/octocat/Hello-World page.html
  curl -s https://github.com/octocat/Hello-World | ghzh translate --url https://github.com/octocat/Hello-World
  ghzh translate --url https://github.com/octocat/Hello-World --describe -o out.html page.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageURL == "" {
				return errors.New("必须通过 --url 指定页面地址")
			}
			in, closeIn, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeIn()

			doc, err := dom.Parse(in)
			if err != nil {
				return fmt.Errorf("解析页面失败: %w", err)
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			store, err := a.settings()
			if err != nil {
				return err
			}

			options := []engine.Option{engine.WithLogger(a.log), engine.WithFlags(store)}
			if describe {
				b, err := a.bridge("", nil)
				if err != nil {
					return err
				}
				options = append(options, engine.WithTranslator(b))
			}
			e := engine.New(doc, repo, a.cfg.EngineOptions(), options...)
			defer e.Close()
			if err := e.Start(pageURL); err != nil {
				return err
			}
			if describe {
				clickDescription(cmd.Context(), a, e)
			}

			var buf bytes.Buffer
			if err := e.Document().Render(&buf); err != nil {
				return fmt.Errorf("输出页面失败: %w", err)
			}
			if output != "" {
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("写入输出文件失败: %w", err)
				}
			} else if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
				return err
			}

			if !quiet {
				printSummary(cmd, e.Stats())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pageURL, "url", "u", "", "页面地址 (必需)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件，默认写到标准输出")
	cmd.Flags().BoolVar(&describe, "describe", false, "同时远程翻译仓库简介")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "不输出统计信息")
	return cmd
}

// openInput 打开参数指定的文件，没有参数或参数为 - 时读取标准输入
func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("打开输入文件失败: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func clickDescription(ctx context.Context, a *app, e *engine.Engine) {
	ctrl := e.DescControl()
	if ctrl == nil {
		a.log.Info("当前页面没有可翻译的简介", zap.String("pageType", string(e.PageType())))
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctrl.Click(ctx); err != nil {
		a.log.Warn("简介翻译失败", zap.Error(err))
	}
}

// printSummary 统计信息写到标准错误，不混入页面输出
func printSummary(cmd *cobra.Command, s engine.Stats) {
	w := cmd.ErrOrStderr()
	pt := string(s.PageType)
	if pt == "" {
		pt = "(未识别)"
	}
	label := color.New(color.FgGreen)
	label.Fprint(w, "页面类型: ")
	fmt.Fprintln(w, pt)
	label.Fprint(w, "已翻译: ")
	fmt.Fprintf(w, "%d 处\n", s.Translated)
	if s.Dropped > 0 {
		color.New(color.FgYellow).Fprintf(w, "丢弃的变更记录: %d\n", s.Dropped)
	}
}

func newClassifyCommand(a *app) *cobra.Command {
	var (
		location   string
		bodyClass  string
		inputFile  string
		useBuiltin bool
	)

	cmd := &cobra.Command{
		Use:   "classify [flags] <url>",
		Short: "识别页面类型",
		Long: `根据页面地址识别页面类型。可以附带 body 的 class 与 analytics-location，
或者用 --input 直接读取页面 HTML 提取这两项。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("无效的地址 %q: %w", args[0], err)
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}

			var opts []page.Option
			if !useBuiltin && len(a.cfg.SiteMap) > 0 {
				opts = append(opts, page.WithSiteMap(a.cfg.SiteMap))
			}
			opts = append(opts, page.WithLogger(a.log))
			c := page.NewClassifier(repo, a.cfg.Lang, opts...)

			snap := page.Snapshot{
				URL:               u,
				BodyClasses:       strings.Fields(bodyClass),
				AnalyticsLocation: location,
			}
			if inputFile != "" {
				data, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("读取页面失败: %w", err)
				}
				doc, err := dom.Parse(bytes.NewReader(data))
				if err != nil {
					return fmt.Errorf("解析页面失败: %w", err)
				}
				snap = page.SnapshotOf(doc, u)
			}

			t := c.Detect(snap)
			if t == page.None {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "未匹配任何页面类型")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(t))
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "analytics-location 元数据")
	cmd.Flags().StringVar(&bodyClass, "body-class", "", "body 元素的 class，空格分隔")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "从页面 HTML 读取 body class 与 analytics-location")
	cmd.Flags().BoolVar(&useBuiltin, "default-site-map", false, "忽略配置中的站点映射")
	return cmd
}
