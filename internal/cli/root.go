package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/internal/config"
	"github.com/nerdneilsfield/go-github-chinese/internal/logger"
	"github.com/nerdneilsfield/go-github-chinese/internal/metrics"
	"github.com/nerdneilsfield/go-github-chinese/internal/settings"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/factory"
	"github.com/nerdneilsfield/go-github-chinese/pkg/remote"
)

// app 各子命令共享的运行环境，在 PersistentPreRunE 中初始化
type app struct {
	// 命令行标志
	cfgFile  string
	debug    bool
	logLevel string
	rules    string
	lang     string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ghzh",
		Short: "GitHub 页面中文化工具",
		Long: `ghzh 按词库把 GitHub 页面的界面文本替换为中文。

词库按页面类型组织（公共、仓库、议题、设置等），支持静态词典、正则规则
和选择器规则。页面 HTML 可以通过命令行离线处理，也可以通过 HTTP 服务处理。
仓库简介等整段文本可交给远程翻译引擎（讯飞听见、DeepLX、OpenAI、Ollama）。`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "配置文件路径 (默认 $HOME/.ghzh.yaml)")
	pf.BoolVar(&a.debug, "debug", false, "启用调试日志")
	pf.StringVar(&a.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	pf.StringVar(&a.rules, "rules", "", "词库文件或目录，覆盖配置中的 rules_path")
	pf.StringVar(&a.lang, "lang", "", "目标语言，覆盖配置中的 lang")

	rootCmd.AddCommand(
		newTranslateCommand(a),
		newClassifyCommand(a),
		newLookupCommand(a),
		newRulesCommand(a),
		newRemoteCommand(a),
		newEnginesCommand(a),
		newToggleCommand(a),
		newServeCommand(a),
	)
	return rootCmd
}

// init 加载配置并创建日志
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}
	if a.rules != "" {
		cfg.RulesPath = a.rules
	}
	if a.lang != "" {
		cfg.Lang = a.lang
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Debug: cfg.Debug, Console: true})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.log.Debug("配置已加载",
		zap.String("lang", cfg.Lang),
		zap.String("rules", cfg.RulesPath),
		zap.String("engine", cfg.TransEngine))
	return nil
}

// repository 加载词库，未配置路径时使用内置词库
func (a *app) repository() (*i18n.Repository, error) {
	repo, err := i18n.LoadOrBuiltin(a.cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("加载词库失败: %w", err)
	}
	return repo, nil
}

// settings 打开功能开关存储
func (a *app) settings() (*settings.Store, error) {
	return settings.Open(a.cfg.SettingsFile, a.cfg.FlagDefaults())
}

// bridge 创建远程翻译桥。name 为空时使用配置中的 trans_engine。
func (a *app) bridge(name string, m *metrics.Collector) (*remote.Bridge, error) {
	if name == "" {
		name = a.cfg.TransEngine
	}
	f := factory.New()
	if err := f.Build(a.cfg.TransEngines); err != nil {
		return nil, fmt.Errorf("创建翻译引擎失败: %w", err)
	}
	p, err := f.Registry().Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w，可用: %s", err, strings.Join(f.Registry().List(), ", "))
	}

	opts := []remote.Option{remote.WithLogger(a.log), remote.WithTargetLanguage(a.cfg.Lang)}
	if m != nil {
		opts = append(opts, remote.WithObserver(m))
	}
	return remote.New(p, opts...), nil
}

// title 打印带颜色的分节标题
func title(cmd *cobra.Command, s string) {
	c := color.New(color.FgCyan, color.Bold)
	w := cmd.OutOrStdout()
	c.Fprintln(w, s)
	c.Fprintln(w, strings.Repeat("=", 50))
}
