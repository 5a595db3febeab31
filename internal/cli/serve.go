package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/internal/metrics"
	"github.com/nerdneilsfield/go-github-chinese/internal/server"
	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
)

func newToggleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle [key]",
		Short: "查看或切换功能开关",
		Long: `不带参数时列出功能开关；带键名时翻转该开关并写入设置文件。

可用的键：
  enable_RegExp     正则功能
  enable_transDesc  描述翻译`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.settings()
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			// 菜单挂在引擎上，这里用空文档承载
			doc, err := dom.Parse(strings.NewReader("<html><head></head><body></body></html>"))
			if err != nil {
				return err
			}
			e := engine.New(doc, repo, a.cfg.EngineOptions(), engine.WithLogger(a.log), engine.WithFlags(store))
			defer e.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				v, err := e.Toggle(args[0])
				if err != nil {
					return err
				}
				a.log.Debug("开关已写入", zap.String("file", store.Path()))
				fmt.Fprintf(w, "%s => %s\n", args[0], onOff(v))
				return nil
			}

			title(cmd, "功能开关")
			for _, item := range e.Menu() {
				fmt.Fprintf(w, "%-18s %-8s %s\n", item.Key, item.Label, onOff(item.Enabled))
			}
			return nil
		},
	}
	return cmd
}

func onOff(v bool) string {
	if v {
		return color.GreenString("开启")
	}
	return color.RedString("关闭")
}

func newServeCommand(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "启动本地化 HTTP 服务",
		Long: `启动 HTTP 服务：
  POST /v1/translate?url=   页面整页本地化
  GET  /v1/classify?url=    页面类型识别
  POST /v1/remote           远程整段翻译
  GET  /v1/flags            查看功能开关
  PUT  /v1/flags/{key}      设置功能开关
  GET  /healthz             健康检查
  GET  /metrics             Prometheus 指标`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Server.WatchRules = watch
			}

			repo, err := a.repository()
			if err != nil {
				return err
			}
			store, err := a.settings()
			if err != nil {
				return err
			}
			m := metrics.New()
			options := []server.Option{
				server.WithLogger(a.log),
				server.WithMetrics(m),
				server.WithFlags(store),
				server.WithRulesPath(a.cfg.RulesPath),
			}
			if b, err := a.bridge("", m); err != nil {
				a.log.Warn("远程翻译不可用", zap.Error(err))
			} else {
				options = append(options, server.WithBridge(b))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(repo, a.cfg.Server, a.cfg.EngineOptions(), options...).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "监听地址，覆盖配置中的 server.addr")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "词库文件变化时自动重载")
	return cmd
}
