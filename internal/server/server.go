// Package server 提供本地化 HTTP 服务：页面整页翻译、页面分类、远程整段翻译，
// 以及健康检查与 Prometheus 指标。
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/internal/config"
	"github.com/nerdneilsfield/go-github-chinese/internal/metrics"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
	"github.com/nerdneilsfield/go-github-chinese/pkg/i18n"
	"github.com/nerdneilsfield/go-github-chinese/pkg/remote"
)

const shutdownTimeout = 5 * time.Second

// Server HTTP 服务
type Server struct {
	cfg       config.ServerConfig
	opts      engine.Options
	rulesPath string

	logger  *zap.Logger
	metrics *metrics.Collector
	flags   engine.FlagStore
	bridge  *remote.Bridge

	repo   atomic.Pointer[i18n.Repository]
	router chi.Router
}

// Option 服务选项
type Option func(*Server)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithFlags 设置功能开关存储
func WithFlags(f engine.FlagStore) Option {
	return func(s *Server) {
		if f != nil {
			s.flags = f
		}
	}
}

// WithBridge 设置远程翻译
func WithBridge(b *remote.Bridge) Option {
	return func(s *Server) {
		s.bridge = b
	}
}

// WithRulesPath 设置词库路径，开启监视时用于热重载
func WithRulesPath(path string) Option {
	return func(s *Server) {
		s.rulesPath = path
	}
}

// New 创建服务
func New(repo *i18n.Repository, cfg config.ServerConfig, opts engine.Options, options ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.NewDefaultConfig().Server.MaxBodyBytes
	}
	s := &Server{
		cfg:    cfg,
		opts:   opts,
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.flags == nil {
		s.flags = engine.NewMemoryFlags()
	}
	s.repo.Store(repo)
	s.router = s.routes()
	return s
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	return s.router
}

// Repository 返回当前词库
func (s *Server) Repository() *i18n.Repository {
	return s.repo.Load()
}

// SetRepository 替换词库，之后的请求使用新词库
func (s *Server) SetRepository(repo *i18n.Repository) {
	if repo != nil {
		s.repo.Store(repo)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/translate", s.handleTranslate)
		r.Get("/classify", s.handleClassify)
		r.Post("/remote", s.handleRemote)
		r.Get("/flags", s.handleFlags)
		r.Put("/flags/{key}", s.handleSetFlag)
	})
	return r
}

// requestLogger 以 zap 记录每个请求
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("请求完成",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())))
	})
}

// Run 监听并阻塞到 ctx 取消。开启 watch_rules 时同时监视词库。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if s.cfg.WatchRules && s.rulesPath != "" {
		w := i18n.NewWatcher(s.rulesPath, s.cfg.ReloadDebounce, s.logger).
			OnError(func(error) { s.metrics.RulesReloaded(false) })
		go func() {
			if err := w.Watch(ctx, s.reload); err != nil {
				s.logger.Error("词库监视退出", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("服务已启动", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("正在关闭服务")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) reload(repo *i18n.Repository) {
	s.SetRepository(repo)
	s.metrics.RulesReloaded(true)
}

// snapshotFlags 为单个请求复制当前开关，避免每个引擎都订阅共享存储
func (s *Server) snapshotFlags() *engine.MemoryFlags {
	f := engine.NewMemoryFlags()
	for _, key := range []string{engine.FlagRegexp, engine.FlagTransDesc} {
		_ = f.SetBool(key, s.flags.Bool(key, true))
	}
	return f
}

// render 序列化文档
func render(e *engine.Engine) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Document().Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
