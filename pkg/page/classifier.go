// Package page 负责页面分类：根据 URL、body class 与 analytics-location
// meta 推断当前页面类型，并仅在词库中存在对应条目时返回该类型。
package page

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
)

// Type 页面类型。空值 None 表示没有可用的规则范围。
type Type string

// None 未匹配
const None Type = ""

// 固定的页面类型
const (
	TypeSession   Type = "session-authentication"
	TypeProfile   Type = "page-profile"
	TypeDashboard Type = "dashboard"
	TypeHomepage  Type = "homepage"
	TypeRepo      Type = "repository"
	TypeOrgs      Type = "orgs"
)

// DefaultSiteMap 卫星站点 域名 -> 类型
func DefaultSiteMap() map[string]string {
	return map[string]string{
		"gist.github.com":      "gist",
		"www.githubstatus.com": "status",
		"skills.github.com":    "skills",
		"education.github.com": "education",
	}
}

var (
	reRepoLocation = regexp.MustCompile(`/<user-name>/<repo-name>`)
	reOrgLocation  = regexp.MustCompile(`/<org-login>`)
	reOrgPath      = regexp.MustCompile(`^/(?:orgs|organizations)`)
)

// Snapshot 分类所需的页面状态
type Snapshot struct {
	URL *url.URL
	// body 的 class 列表
	BodyClasses []string
	// <meta name="analytics-location"> 的 content
	AnalyticsLocation string
}

// HasBodyClass 判断 body 是否带有 class
func (s Snapshot) HasBodyClass(class string) bool {
	for _, c := range s.BodyClasses {
		if c == class {
			return true
		}
	}
	return false
}

// SnapshotOf 从文档与地址提取分类所需的状态
func SnapshotOf(doc *dom.Document, u *url.URL) Snapshot {
	s := Snapshot{URL: u}
	if doc == nil {
		return s
	}
	s.BodyClasses = dom.ClassList(doc.Body())
	if head := doc.Head(); head != nil {
		if meta := dom.QuerySelector(head, `meta[name="analytics-location"]`); meta != nil {
			s.AnalyticsLocation = dom.AttrOr(meta, "content", "")
		}
	}
	return s
}

// Classifier 页面分类器
type Classifier struct {
	repo    *i18n.Repository
	lang    string
	siteMap map[string]string
	logger  *zap.Logger
}

// Option 分类器选项
type Option func(*Classifier)

// WithSiteMap 替换卫星站点映射
func WithSiteMap(m map[string]string) Option {
	return func(c *Classifier) {
		if len(m) > 0 {
			c.siteMap = m
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier 创建分类器
func NewClassifier(repo *i18n.Repository, lang string, opts ...Option) *Classifier {
	c := &Classifier{
		repo:    repo,
		lang:    lang,
		siteMap: DefaultSiteMap(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect 推断页面类型；推断失败或词库缺失时返回 None
func (c *Classifier) Detect(s Snapshot) Type {
	t := c.detect(s)
	if t == None || !c.repo.Has(c.lang, string(t)) {
		c.logger.Warn("页面类型未匹配或词库缺失",
			zap.String("pageType", string(t)),
			zap.String("url", urlString(s.URL)))
		return None
	}
	return t
}

// DetectDocument 便捷方法
func (c *Classifier) DetectDocument(doc *dom.Document, u *url.URL) Type {
	return c.Detect(SnapshotOf(doc, u))
}

func (c *Classifier) detect(s Snapshot) Type {
	if s.URL == nil {
		return None
	}
	// 按编码后的路径匹配，与浏览器的 location.pathname 一致
	pathname := s.URL.EscapedPath()
	if pathname == "" {
		pathname = "/"
	}

	site, special := c.siteMap[s.URL.Hostname()]
	isSession := s.HasBodyClass("session-authentication")
	isLogin := s.HasBodyClass("logged-in")
	isProfile := s.HasBodyClass("page-profile") || s.AnalyticsLocation == "/<user-name>"
	isHomepage := pathname == "/" && !special
	isRepository := reRepoLocation.MatchString(s.AnalyticsLocation)
	isOrganization := reOrgLocation.MatchString(s.AnalyticsLocation) || reOrgPath.MatchString(pathname)

	c.logger.Debug("页面特征",
		zap.String("pathname", pathname),
		zap.String("site", site),
		zap.Bool("isLogin", isLogin),
		zap.String("analyticsLocation", s.AnalyticsLocation),
		zap.Bool("isOrganization", isOrganization),
		zap.Bool("isRepository", isRepository),
		zap.Bool("isProfile", isProfile),
		zap.Bool("isSession", isSession))

	conf := c.repo.Conf
	switch {
	case isSession:
		return TypeSession

	case special:
		return Type(site)

	case isProfile:
		if strings.Contains(pathname, "/stars") {
			return TypeProfile + "/stars"
		}
		if tab := s.URL.Query().Get("tab"); tab != "" {
			return TypeProfile + Type("/"+tab)
		}
		return TypeProfile

	case isHomepage:
		if isLogin {
			return TypeDashboard
		}
		return TypeHomepage

	case isRepository:
		if sub, ok := subType(conf.RePagePathRepo, pathname); ok {
			return TypeRepo + Type("/"+sub)
		}
		return TypeRepo

	case isOrganization:
		if sub, ok := subType(conf.RePagePathOrg, pathname); ok {
			return TypeOrgs + Type("/"+sub)
		}
		return TypeOrgs

	default:
		if sub, ok := subType(conf.RePagePath, pathname); ok {
			return Type(sub)
		}
		return None
	}
}

// subType 取第一个捕获组，为空时取最后一个捕获组
func subType(re *regexp2.Regexp, pathname string) (string, bool) {
	if re == nil {
		return "", false
	}
	m, err := re.FindStringMatch(pathname)
	if err != nil || m == nil {
		return "", false
	}
	groups := m.Groups()
	if len(groups) < 2 {
		return "", false
	}
	if v := groups[1].String(); v != "" {
		return v, true
	}
	if v := groups[len(groups)-1].String(); v != "" {
		return v, true
	}
	return "", false
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
