package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-github-chinese/internal/settings"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
)

const rulesYAML = `
conf:
  rePagePathRepo: '/^\/[^\/]+\/[^\/]+\/(issues|pulls)/'
locales:
  zh-CN:
    public:
      static:
        Open: 开启
        Closed: 已关闭
      regexp:
        - ['/^(\d+) comments?$/', '$1 条评论']
    repository:
      static:
        About: 关于
    repository/issues:
      static:
        New issue: 新建议题
      selector:
        - ['#issues-heading', '议题列表']
`

const issuesHTML = `<!DOCTYPE html><html lang="en"><head><title>Issues</title>
<meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;/issues/&lt;issue-number&gt;"></head>
<body><h2 id="issues-heading">Issues</h2><span>Open</span><span>3 comments</span><a>New issue</a></body></html>`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// writeConfig 在临时目录写入词库与配置文件，返回配置路径
func writeConfig(t *testing.T, extra string) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(rulesYAML), 0o644))

	cfg := fmt.Sprintf("rules_path: %s\nsettings_file: %s\nlog_level: error\n%s",
		rules, filepath.Join(dir, "settings.yaml"), extra)
	cfgPath = filepath.Join(dir, "ghzh.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dir
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand("1.0.0", "abc123", "2026-01-01")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestHelpAndVersion(t *testing.T) {
	out, _, err := run(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "GitHub 页面")
	for _, sub := range []string{"translate", "classify", "lookup", "rules", "remote", "engines", "toggle", "serve"} {
		assert.Contains(t, out, sub)
	}

	out, _, err = run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "commit abc123")
}

func TestTranslateFromStdin(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	out, errOut, err := run(t, issuesHTML, "translate", "-c", cfg,
		"--url", "https://github.com/octocat/Hello-World/issues/5")
	require.NoError(t, err)

	assert.Contains(t, out, `<span>开启</span>`)
	assert.Contains(t, out, `<span>3 条评论</span>`)
	assert.Contains(t, out, `<a>新建议题</a>`)
	assert.Contains(t, out, `议题列表`)
	assert.Contains(t, out, `lang="zh-CN"`)

	assert.Contains(t, errOut, "页面类型: repository/issues")
}

func TestTranslateFileToFile(t *testing.T) {
	cfg, dir := writeConfig(t, "")
	in := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(in, []byte(issuesHTML), 0o644))
	outPath := filepath.Join(dir, "out.html")

	out, errOut, err := run(t, "", "translate", "-c", cfg, "-q", "-o", outPath,
		"--url", "https://github.com/octocat/Hello-World/issues/5", in)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, errOut)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<span>开启</span>`)
}

func TestTranslateErrors(t *testing.T) {
	cfg, dir := writeConfig(t, "")

	_, _, err := run(t, issuesHTML, "translate", "-c", cfg)
	assert.Error(t, err)

	_, _, err = run(t, "", "translate", "-c", cfg, "--url", "https://github.com/", filepath.Join(dir, "missing.html"))
	assert.Error(t, err)

	_, _, err = run(t, issuesHTML, "translate", "-c", cfg, "--url", "http://[::1")
	assert.Error(t, err)
}

func TestTranslateRespectsRegexpFlag(t *testing.T) {
	cfg, dir := writeConfig(t, "")
	store, err := settings.Open(filepath.Join(dir, "settings.yaml"), nil)
	require.NoError(t, err)
	require.NoError(t, store.SetBool(engine.FlagRegexp, false))

	out, _, err := run(t, issuesHTML, "translate", "-c", cfg, "-q",
		"--url", "https://github.com/octocat/Hello-World/issues/5")
	require.NoError(t, err)
	assert.Contains(t, out, `<span>3 comments</span>`)
	assert.Contains(t, out, `<span>开启</span>`)
}

func TestClassify(t *testing.T) {
	cfg, dir := writeConfig(t, "")

	out, _, err := run(t, "", "classify", "-c", cfg,
		"--location", "/<user-name>/<repo-name>/issues/<issue-number>",
		"https://github.com/octocat/Hello-World/issues/5")
	require.NoError(t, err)
	assert.Equal(t, "repository/issues\n", out)

	out, _, err = run(t, "", "classify", "-c", cfg, "https://github.com/explore")
	require.NoError(t, err)
	assert.Contains(t, out, "未匹配")

	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><head>
<meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;"></head><body></body></html>`), 0o644))
	out, _, err = run(t, "", "classify", "-c", cfg, "-i", page, "https://github.com/octocat/Hello-World")
	require.NoError(t, err)
	assert.Equal(t, "repository\n", out)
}

func TestLookup(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	out, _, err := run(t, "", "lookup", "-c", cfg, "Open")
	require.NoError(t, err)
	assert.Equal(t, "开启\n", out)

	out, _, err = run(t, "", "lookup", "-c", cfg, "--page", "repository/issues", "New issue")
	require.NoError(t, err)
	assert.Equal(t, "新建议题\n", out)

	out, _, err = run(t, "", "lookup", "-c", cfg, "12 comments")
	require.NoError(t, err)
	assert.Equal(t, "12 条评论\n", out)

	out, _, err = run(t, "", "lookup", "-c", cfg, "--no-regexp", "12 comments")
	require.NoError(t, err)
	assert.Contains(t, out, "未找到")

	out, _, err = run(t, "", "lookup", "-c", cfg, "Opn")
	require.NoError(t, err)
	assert.Contains(t, out, "未找到")
	assert.Contains(t, out, "Open => 开启")
}

func TestSuggestOrdersByDistance(t *testing.T) {
	dict := map[string]string{"Open": "开启", "Opened by": "开启者", "Closed": "已关闭"}
	got := suggest(dict, "open")
	require.Len(t, got, 2)
	assert.Equal(t, "Open", got[0])
	assert.Equal(t, "Opened by", got[1])
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short"))
	long := strings.Repeat("中", 30)
	clipped := clip(long)
	assert.NotEqual(t, long, clipped)
	assert.True(t, strings.HasSuffix(clipped, "…"))
}

func TestRules(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	out, _, err := run(t, "", "rules", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "repository/issues")
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "合计")

	out, _, err = run(t, "", "rules", "-c", cfg, "--page", "repository/issues")
	require.NoError(t, err)
	assert.Contains(t, out, "新建议题")
	assert.Contains(t, out, "#issues-heading")

	_, _, err = run(t, "", "rules", "-c", cfg, "--page", "nope")
	assert.Error(t, err)
}

func TestToggle(t *testing.T) {
	cfg, dir := writeConfig(t, "")

	out, _, err := run(t, "", "toggle", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "enable_RegExp")
	assert.Contains(t, out, "描述翻译")

	out, _, err = run(t, "", "toggle", "-c", cfg, engine.FlagRegexp)
	require.NoError(t, err)
	assert.Equal(t, "enable_RegExp => 关闭\n", out)

	store, err := settings.Open(filepath.Join(dir, "settings.yaml"), nil)
	require.NoError(t, err)
	assert.False(t, store.Bool(engine.FlagRegexp, true))

	out, _, err = run(t, "", "toggle", "-c", cfg, engine.FlagRegexp)
	require.NoError(t, err)
	assert.Equal(t, "enable_RegExp => 开启\n", out)

	_, _, err = run(t, "", "toggle", "-c", cfg, "enable_everything")
	assert.Error(t, err)
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"biz":[{"sectionResult":[{"dst":"你好"}]}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote(t *testing.T) {
	upstream := newUpstream(t)
	cfg, _ := writeConfig(t, fmt.Sprintf(`trans_engine: iflyrec
trans_engines:
  iflyrec:
    preset: iflyrec
    endpoint: %s
`, upstream.URL))

	out, _, err := run(t, "", "remote", "-c", cfg, "--no-progress", "hello", "hi")
	require.NoError(t, err)
	assert.Equal(t, "你好\n你好\n", out)

	out, _, err = run(t, "hello\n\n  \nhi there\n", "remote", "-c", cfg, "--no-progress")
	require.NoError(t, err)
	assert.Equal(t, "你好\n你好\n", out)

	_, _, err = run(t, "", "remote", "-c", cfg)
	assert.Error(t, err)

	_, _, err = run(t, "", "remote", "-c", cfg, "--engine", "nope", "hello")
	assert.Error(t, err)
}

func TestTranslateDescribe(t *testing.T) {
	upstream := newUpstream(t)
	cfg, _ := writeConfig(t, fmt.Sprintf(`trans_engines:
  iflyrec:
    endpoint: %s
`, upstream.URL))

	page := `<html><head><title>octocat/Hello-World</title>
<meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;"></head>
<body><p class="f4 my-3">My first repository</p></body></html>`
	out, _, err := run(t, page, "translate", "-c", cfg, "-q", "--describe",
		"--url", "https://github.com/octocat/Hello-World")
	require.NoError(t, err)
	assert.Contains(t, out, "你好")
	assert.Contains(t, out, "讯飞听见")
	assert.NotContains(t, out, `id="`+engine.ControlID+`"`)
}

func TestEngines(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	out, _, err := run(t, "", "engines", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "iflyrec")
	assert.Contains(t, out, "deeplx")
	assert.Contains(t, out, "讯飞听见")
	assert.Contains(t, out, "httpjson, ollama, openai")
}

func TestInvalidConfig(t *testing.T) {
	cfg, _ := writeConfig(t, "trans_engine: nowhere\n")
	_, _, err := run(t, "", "rules", "-c", cfg)
	assert.Error(t, err)

	cfg, _ = writeConfig(t, "")
	_, _, err = run(t, "", "rules", "-c", cfg, "--log-level", "loud")
	assert.Error(t, err)
}
