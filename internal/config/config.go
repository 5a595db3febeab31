package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/factory"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/httpjson"
)

// FeatureConfig 功能开关的初始值（设置文件中没有记录时使用）
type FeatureConfig struct {
	EnableRegexp    bool `mapstructure:"enable_regexp"`
	EnableTransDesc bool `mapstructure:"enable_trans_desc"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	WatchRules   bool          `mapstructure:"watch_rules"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// 请求体上限（字节）
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// 词库变化后的重载延迟
	ReloadDebounce time.Duration `mapstructure:"reload_debounce"`
}

// Config 保存全部配置
type Config struct {
	Lang string `mapstructure:"lang"`
	// 词库文件或目录，为空时使用内置词库
	RulesPath    string `mapstructure:"rules_path"`
	Debug        bool   `mapstructure:"debug"`
	LogLevel     string `mapstructure:"log_level"`
	SettingsFile string `mapstructure:"settings_file"`

	Features FeatureConfig `mapstructure:"features"`

	TransEngine  string                          `mapstructure:"trans_engine"`
	TransEngines map[string]factory.EngineConfig `mapstructure:"-"`

	// 键中含有点号（域名），单独读取
	DescSelectors map[string]string `mapstructure:"-"`
	SiteMap       map[string]string `mapstructure:"-"`

	TextNodeLimit int `mapstructure:"text_node_limit"`

	Server ServerConfig `mapstructure:"server"`
}

// LoadConfig 加载配置。configPath 为空时依次查找 $HOME/.ghzh.yaml 与 ./.ghzh.yaml，
// 找不到配置文件时使用默认值。环境变量前缀 GHZH。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".ghzh")
		v.SetConfigType("yaml")
	}

	// 读取环境变量
	v.SetEnvPrefix("GHZH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 引擎名可能含点号，逐个解析
	config.TransEngines = make(map[string]factory.EngineConfig)
	for name := range v.GetStringMap("trans_engines") {
		var ec factory.EngineConfig
		if err := v.UnmarshalKey("trans_engines."+name, &ec); err != nil {
			return nil, fmt.Errorf("解析引擎 %s 配置失败: %w", name, err)
		}
		config.TransEngines[name] = ec
	}
	config.DescSelectors = v.GetStringMapString("desc_selectors")
	config.SiteMap = v.GetStringMapString("site_map")

	if config.SettingsFile == "" {
		config.SettingsFile = defaultSettingsFile()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 检查配置
func (c *Config) Validate() error {
	if c.TextNodeLimit <= 0 {
		return fmt.Errorf("text_node_limit 必须大于 0")
	}
	if c.TransEngine == "" {
		return fmt.Errorf("trans_engine 不能为空")
	}
	if _, ok := c.TransEngines[c.TransEngine]; !ok {
		if _, ok := httpjson.Preset(c.TransEngine); !ok {
			return fmt.Errorf("未配置的翻译引擎: %s", c.TransEngine)
		}
	}
	return nil
}

// NewDefaultConfig 返回默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Lang:          engine.DefaultLang,
		LogLevel:      "info",
		SettingsFile:  defaultSettingsFile(),
		Features:      FeatureConfig{EnableRegexp: true, EnableTransDesc: true},
		TransEngine:   httpjson.DefaultEngine,
		TransEngines:  map[string]factory.EngineConfig{},
		DescSelectors: engine.DefaultDescSelectors(),
		SiteMap:       page.DefaultSiteMap(),
		TextNodeLimit: engine.DefaultTextNodeLimit,
		Server: ServerConfig{
			Addr:           "127.0.0.1:8787",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxBodyBytes:   10 << 20,
			ReloadDebounce: 300 * time.Millisecond,
		},
	}
}

// EngineOptions 转换为引擎参数
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Lang:          c.Lang,
		TextNodeLimit: c.TextNodeLimit,
		DescSelectors: c.DescSelectors,
		SiteMap:       c.SiteMap,
	}
}

// FlagDefaults 设置文件中缺少开关时的默认值
func (c *Config) FlagDefaults() map[string]bool {
	return map[string]bool{
		engine.FlagRegexp:    c.Features.EnableRegexp,
		engine.FlagTransDesc: c.Features.EnableTransDesc,
	}
}

func defaultSettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ghzh-settings.yaml"
	}
	return filepath.Join(dir, "ghzh", "settings.yaml")
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("lang", d.Lang)
	v.SetDefault("rules_path", "")
	v.SetDefault("debug", false)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("settings_file", "")
	v.SetDefault("features.enable_regexp", d.Features.EnableRegexp)
	v.SetDefault("features.enable_trans_desc", d.Features.EnableTransDesc)
	v.SetDefault("trans_engine", d.TransEngine)
	v.SetDefault("desc_selectors", d.DescSelectors)
	v.SetDefault("site_map", d.SiteMap)
	v.SetDefault("text_node_limit", d.TextNodeLimit)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.watch_rules", false)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.reload_debounce", d.Server.ReloadDebounce)
}
