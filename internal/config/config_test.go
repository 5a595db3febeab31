package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ghzh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "zh-CN", cfg.Lang)
	assert.Equal(t, "iflyrec", cfg.TransEngine)
	assert.Equal(t, 500, cfg.TextNodeLimit)
	assert.True(t, cfg.Features.EnableRegexp)
	assert.True(t, cfg.Features.EnableTransDesc)
	assert.Equal(t, "gist", cfg.SiteMap["gist.github.com"])
	assert.Equal(t, ".f4.my-3", cfg.DescSelectors["repository"])
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.NotEmpty(t, cfg.SettingsFile)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
lang: zh-CN
rules_path: ./locales
features:
  enable_regexp: false
trans_engine: local
trans_engines:
  local:
    type: ollama
    model: qwen2.5:7b
    endpoint: http://gpu-box:11434/v1
    timeout: 45s
  deeplx:
    endpoint: http://deeplx.lan/translate
site_map:
  gist.example.com: gist
server:
  addr: ":9000"
  watch_rules: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./locales", cfg.RulesPath)
	assert.False(t, cfg.Features.EnableRegexp)
	assert.True(t, cfg.Features.EnableTransDesc)
	assert.Equal(t, "local", cfg.TransEngine)

	require.Contains(t, cfg.TransEngines, "local")
	local := cfg.TransEngines["local"]
	assert.Equal(t, "ollama", local.Type)
	assert.Equal(t, "qwen2.5:7b", local.Model)
	assert.Equal(t, 45*time.Second, local.Timeout)
	assert.Equal(t, "http://deeplx.lan/translate", cfg.TransEngines["deeplx"].Endpoint)

	assert.Equal(t, map[string]string{"gist.example.com": "gist"}, cfg.SiteMap)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.WatchRules)

	flags := cfg.FlagDefaults()
	assert.False(t, flags[engine.FlagRegexp])
	assert.True(t, flags[engine.FlagTransDesc])
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("GHZH_TEXT_NODE_LIMIT", "120")
	t.Setenv("GHZH_SERVER_ADDR", ":7000")

	cfg, err := LoadConfig(writeConfig(t, "lang: zh-CN\n"))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.TextNodeLimit)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadConfigRejectsUnknownEngine(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "trans_engine: nowhere\n"))
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	opts := cfg.EngineOptions()
	assert.Equal(t, cfg.Lang, opts.Lang)
	assert.Equal(t, cfg.TextNodeLimit, opts.TextNodeLimit)
	assert.Equal(t, cfg.SiteMap, opts.SiteMap)
}
