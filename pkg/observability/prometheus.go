package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rostermap"

// Prometheus implements every hook interface with Prometheus collectors on
// its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	loads          *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	steps          *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	affected       prometheus.Histogram
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderBytes    *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	cacheBytes     *prometheus.CounterVec
	requests       *prometheus.CounterVec
	reqDuration    *prometheus.HistogramVec
	sessions       prometheus.Gauge
	streamMessages *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them together with
// the Go and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dataset_loads_total", Help: "Dataset loads by result.",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "dataset_load_seconds", Help: "Dataset load and initial layout time.",
			Buckets: prometheus.DefBuckets,
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "steps_total", Help: "Step changes applied, by direction and result.",
		}, []string{"direction", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "step_seconds", Help: "Relayout, repartition and planning time per step.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"direction"}),
		affected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "step_affected_territories", Help: "Territories repartitioned per step.",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "renders_total", Help: "Rendered artifacts by format and result.",
		}, []string{"format", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "render_seconds", Help: "Render time by format.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		renderBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "render_bytes", Help: "Rendered artifact size by format.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total", Help: "Cache lookups by key type and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_written_bytes_total", Help: "Bytes written to the cache by key type.",
		}, []string{"key_type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP responses by route and status.",
		}, []string{"method", "route", "status"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_seconds", Help: "HTTP latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active", Help: "Open viewer sessions.",
		}),
		streamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stream_messages_total", Help: "WebSocket messages by kind.",
		}, []string{"kind"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.loads, p.loadDuration, p.steps, p.stepDuration, p.affected,
		p.renders, p.renderDuration, p.renderBytes,
		p.cacheLookups, p.cacheBytes,
		p.requests, p.reqDuration, p.sessions, p.streamMessages,
	)
	return p
}

// Registry exposes the registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Register installs p as the engine, cache and server hooks.
func (p *Prometheus) Register() {
	SetEngineHooks(p)
	SetCacheHooks(p)
	SetServerHooks(p)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnLoad(_ context.Context, _, _, _ int, d time.Duration, err error) {
	p.loads.WithLabelValues(result(err)).Inc()
	if err == nil {
		p.loadDuration.Observe(d.Seconds())
	}
}

func (p *Prometheus) OnStepComplete(_ context.Context, _ int, dir string, affected int, d time.Duration, err error) {
	p.steps.WithLabelValues(dir, result(err)).Inc()
	if err != nil {
		return
	}
	p.stepDuration.WithLabelValues(dir).Observe(d.Seconds())
	p.affected.Observe(float64(affected))
}

func (p *Prometheus) OnRenderComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	p.renders.WithLabelValues(format, result(err)).Inc()
	if err != nil {
		return
	}
	p.renderDuration.WithLabelValues(format).Observe(d.Seconds())
	p.renderBytes.WithLabelValues(format).Observe(float64(size))
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.reqDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Prometheus) OnSessions(_ context.Context, active int) { p.sessions.Set(float64(active)) }

func (p *Prometheus) OnStreamMessage(_ context.Context, kind string) {
	p.streamMessages.WithLabelValues(kind).Inc()
}

var (
	_ EngineHooks = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
	_ ServerHooks = (*Prometheus)(nil)
)
