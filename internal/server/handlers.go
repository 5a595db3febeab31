package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-github-chinese/pkg/dom"
	"github.com/nerdneilsfield/go-github-chinese/pkg/engine"
	"github.com/nerdneilsfield/go-github-chinese/pkg/page"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Lang      string `json:"lang"`
	PageTypes int    `json:"page_types"`
	Engine    string `json:"engine,omitempty"`
}

type classifyResponse struct {
	URL      string `json:"url"`
	PageType string `json:"page_type"`
	Matched  bool   `json:"matched"`
}

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readBody 读取请求体，超出上限返回 413
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "failed to read request body")
		}
		return nil, false
	}
	return data, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Lang:      s.opts.Lang,
		PageTypes: len(s.repo.Load().PageTypes(s.langOrDefault())),
	}
	if s.bridge != nil {
		resp.Engine = s.bridge.Engine()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTranslate POST /v1/translate?url=  请求体为页面 HTML，返回本地化后的 HTML。
// describe=1 时同时远程翻译仓库简介。
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageURL := q.Get("url")
	if pageURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	options := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithRecorder(s.metrics),
		engine.WithFlags(s.snapshotFlags()),
	}
	if s.bridge != nil {
		options = append(options, engine.WithTranslator(s.bridge))
	}
	e := engine.New(doc, s.repo.Load(), s.opts, options...)
	defer e.Close()
	if err := e.Start(pageURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if describe, _ := strconv.ParseBool(q.Get("describe")); describe {
		if ctrl := e.DescControl(); ctrl != nil {
			if err := ctrl.Click(r.Context()); err != nil && !errors.Is(err, engine.ErrNoTranslator) {
				s.logger.Warn("简介翻译失败", zap.String("url", pageURL), zap.Error(err))
			}
		}
	}

	out, err := render(e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := e.Stats()
	s.metrics.PageServed(string(stats.PageType))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Page-Type", string(stats.PageType))
	w.Header().Set("X-Translated", strconv.Itoa(stats.Translated))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleClassify GET /v1/classify?url=&location=&body_class=
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	var opts []page.Option
	if len(s.opts.SiteMap) > 0 {
		opts = append(opts, page.WithSiteMap(s.opts.SiteMap))
	}
	c := page.NewClassifier(s.repo.Load(), s.langOrDefault(), opts...)
	t := c.Detect(page.Snapshot{
		URL:               u,
		BodyClasses:       strings.Fields(q.Get("body_class")),
		AnalyticsLocation: q.Get("location"),
	})
	writeJSON(w, http.StatusOK, classifyResponse{URL: u.String(), PageType: string(t), Matched: t != page.None})
}

// handleRemote POST /v1/remote  {"text": "..."}
func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, engine.ErrNoTranslator.Error())
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req remoteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, remoteResponse{
		Text:   s.bridge.TranslateBlock(r.Context(), text),
		Engine: s.bridge.Engine(),
	})
}

// handleFlags GET /v1/flags
func (s *Server) handleFlags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		engine.FlagRegexp:    s.flags.Bool(engine.FlagRegexp, true),
		engine.FlagTransDesc: s.flags.Bool(engine.FlagTransDesc, true),
	})
}

// handleSetFlag PUT /v1/flags/{key}  {"enabled": bool}
func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key != engine.FlagRegexp && key != engine.FlagTransDesc {
		writeError(w, http.StatusNotFound, "unknown feature flag")
		return
	}
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req flagRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.flags.SetBool(key, req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("功能开关已更新", zap.String("key", key), zap.Bool("enabled", req.Enabled))
	s.handleFlags(w, r)
}

func (s *Server) langOrDefault() string {
	if s.opts.Lang == "" {
		return engine.DefaultLang
	}
	return s.opts.Lang
}
