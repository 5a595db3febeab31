package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-github-chinese/internal/config"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/providers/httpjson"
	"github.com/nerdneilsfield/go-github-chinese/pkg/remote"
)

const rulesYAML = `
conf:
  rePagePathRepo: '/^\/[^\/]+\/[^\/]+\/(issues|pulls)/'
locales:
  zh-CN:
    public:
      static:
        Open: 开启
      regexp:
        - ['/^(\d+) comments?$/', '$1 条评论']
    repository:
      static:
        About: 关于
    repository/issues:
      static:
        New issue: 新建议题
`

const issuesHTML = `<!DOCTYPE html><html lang="en"><head><title>Issues</title>
<meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;/issues/&lt;issue-number&gt;"></head>
<body><span>Open</span><span>3 comments</span></body></html>`

const repoHTML = `<!DOCTYPE html><html><head><title>octocat/Hello-World</title>
<meta name="analytics-location" content="/&lt;user-name&gt;/&lt;repo-name&gt;"></head>
<body><p class="f4 my-3">My first repository on GitHub!</p></body></html>`

func newRepo(t *testing.T, data string) *i18n.Repository {
	t.Helper()
	part, err := i18n.Decode([]byte(data), i18n.FormatYAML)
	require.NoError(t, err)
	repo := i18n.NewRepository()
	repo.Merge(part)
	return repo
}

func newBridge(t *testing.T) *remote.Bridge {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"biz":[{"sectionResult":[{"dst":"我在 GitHub 上的第一个仓库"}]}]}`)
	}))
	t.Cleanup(upstream.Close)

	cfg, ok := httpjson.Preset("iflyrec")
	require.True(t, ok)
	cfg.APIEndpoint = upstream.URL
	cfg.Retry.MaxRetries = 0
	p, err := httpjson.New("iflyrec", cfg)
	require.NoError(t, err)
	return remote.New(p)
}

func newServer(t *testing.T, options ...Option) *Server {
	t.Helper()
	cfg := config.NewDefaultConfig()
	return New(newRepo(t, rulesYAML), cfg.Server, cfg.EngineOptions(), options...)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func translateURL(pageURL string, extra ...string) string {
	q := url.Values{"url": {pageURL}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return "/v1/translate?" + q.Encode()
}

func TestTranslatePage(t *testing.T) {
	s := newServer(t)
	rec := do(t, s, http.MethodPost, translateURL("https://github.com/octocat/Hello-World/issues/5"), issuesHTML)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "repository/issues", rec.Header().Get("X-Page-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Translated"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, `<span>开启</span>`)
	assert.Contains(t, body, `<span>3 条评论</span>`)
	assert.Contains(t, body, `lang="zh-CN"`)
}

func TestTranslateValidation(t *testing.T) {
	s := newServer(t)

	rec := do(t, s, http.MethodPost, "/v1/translate", issuesHTML)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, translateURL("http://[::1"), issuesHTML)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cfg := config.NewDefaultConfig()
	cfg.Server.MaxBodyBytes = 32
	small := New(newRepo(t, rulesYAML), cfg.Server, cfg.EngineOptions())
	rec = do(t, small, http.MethodPost, translateURL("https://github.com/"), issuesHTML)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTranslateDescribe(t *testing.T) {
	s := newServer(t, WithBridge(newBridge(t)))
	rec := do(t, s, http.MethodPost,
		translateURL("https://github.com/octocat/Hello-World", "describe", "1"), repoHTML)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "repository", rec.Header().Get("X-Page-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "我在 GitHub 上的第一个仓库")
	assert.Contains(t, body, "讯飞听见")
	assert.NotContains(t, body, `id="`+engine.ControlID+`"`)

	// 不要求简介翻译时只插入按钮
	rec = do(t, s, http.MethodPost, translateURL("https://github.com/octocat/Hello-World"), repoHTML)
	assert.Contains(t, rec.Body.String(), `id="`+engine.ControlID+`"`)
}

func TestClassify(t *testing.T) {
	s := newServer(t)
	q := url.Values{
		"url":      {"https://github.com/octocat/Hello-World/issues/5"},
		"location": {"/<user-name>/<repo-name>/issues/<issue-number>"},
	}
	rec := do(t, s, http.MethodGet, "/v1/classify?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp classifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "repository/issues", resp.PageType)
	assert.True(t, resp.Matched)

	rec = do(t, s, http.MethodGet, "/v1/classify?url="+url.QueryEscape("https://github.com/explore"), "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
	assert.Empty(t, resp.PageType)

	rec = do(t, s, http.MethodGet, "/v1/classify", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemote(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPost, "/v1/remote", `{"text":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s := newServer(t, WithBridge(newBridge(t)))
	rec = do(t, s, http.MethodPost, "/v1/remote", `{"text":"My first repository on GitHub!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp remoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, remoteResponse{Text: "我在 GitHub 上的第一个仓库", Engine: "iflyrec"}, resp)

	rec = do(t, s, http.MethodPost, "/v1/remote", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPost, "/v1/remote", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlags(t *testing.T) {
	s := newServer(t)

	rec := do(t, s, http.MethodPut, "/v1/flags/"+engine.FlagRegexp, `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var flags map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	assert.False(t, flags[engine.FlagRegexp])
	assert.True(t, flags[engine.FlagTransDesc])

	rec = do(t, s, http.MethodPost, translateURL("https://github.com/octocat/Hello-World/issues/5"), issuesHTML)
	assert.Contains(t, rec.Body.String(), `<span>3 comments</span>`)
	assert.Contains(t, rec.Body.String(), `<span>开启</span>`)

	rec = do(t, s, http.MethodPut, "/v1/flags/enable_everything", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	do(t, s, http.MethodPost, translateURL("https://github.com/octocat/Hello-World/issues/5"), issuesHTML)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.PageTypes)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ghzh_pages_total{page_type="repository/issues"} 1`)
	assert.Contains(t, rec.Body.String(), `ghzh_translated_units_total 2`)
}

func TestSetRepository(t *testing.T) {
	s := newServer(t)
	s.SetRepository(newRepo(t, strings.Replace(rulesYAML, "Open: 开启", "Open: 打开", 1)))

	rec := do(t, s, http.MethodPost, translateURL("https://github.com/octocat/Hello-World/issues/5"), issuesHTML)
	assert.Contains(t, rec.Body.String(), `<span>打开</span>`)

	s.SetRepository(nil)
	assert.NotNil(t, s.Repository())
}
