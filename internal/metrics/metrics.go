// Package metrics 汇总引擎与远程翻译的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ghzh"

// Collector 指标收集器，实现 engine.Recorder 与 remote.Observer
type Collector struct {
	registry *prometheus.Registry

	translated     prometheus.Counter
	batches        prometheus.Counter
	traversals     prometheus.Counter
	rebuilds       *prometheus.CounterVec
	traversalTime  prometheus.Histogram
	remoteRequests *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	pages          *prometheus.CounterVec
	reloads        *prometheus.CounterVec
}

// New 创建收集器，使用独立的注册表
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		translated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translated_units_total",
			Help:      "Total number of text nodes, attributes and titles rewritten",
		}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_batches_total",
			Help:      "Total number of mutation batches delivered to the page observer",
		}),
		traversals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversals_total",
			Help:      "Total number of filtered tree traversals",
		}),
		rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_rebuilds_total",
			Help:      "Total number of rule scope rebuilds by page type",
		}, []string{"page_type"}),
		traversalTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traversal_duration_seconds",
			Help:      "Duration of a single filtered traversal",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .5},
		}),
		remoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Total number of remote translation requests by engine and outcome",
		}, []string{"engine", "outcome"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Remote translation request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Total number of pages localized over HTTP by page type",
		}, []string{"page_type"}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_reloads_total",
			Help:      "Total number of rule repository reloads",
		}, []string{"result"}),
	}
}

// Registry 返回底层注册表
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// TraversalDone 记录一次遍历
func (c *Collector) TraversalDone(d time.Duration) {
	c.traversals.Inc()
	c.traversalTime.Observe(d.Seconds())
}

// Translated 记录改写数量
func (c *Collector) Translated(n int) {
	c.translated.Add(float64(n))
}

// Batch 记录一个变更批次
func (c *Collector) Batch() {
	c.batches.Inc()
}

// ScopeRebuilt 记录规则范围重建
func (c *Collector) ScopeRebuilt(pageType string) {
	c.rebuilds.WithLabelValues(pageType).Inc()
}

// RemoteRequest 记录远程翻译请求
func (c *Collector) RemoteRequest(engine, outcome string, d time.Duration) {
	c.remoteRequests.WithLabelValues(engine, outcome).Inc()
	c.remoteDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// PageServed 记录一次页面本地化
func (c *Collector) PageServed(pageType string) {
	if pageType == "" {
		pageType = "none"
	}
	c.pages.WithLabelValues(pageType).Inc()
}

// RulesReloaded 记录词库重载结果
func (c *Collector) RulesReloaded(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.reloads.WithLabelValues(result).Inc()
}
