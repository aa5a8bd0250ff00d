// Package metrics exposes prometheus instruments for the write queue.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
)

// ProviderInterface observes the write queue and serves what it collected.
type ProviderInterface interface {
	Enqueued(name string, depth int)
	Finished(name, id string, waited, ran time.Duration, err error)
	Handler() http.Handler
}

type Provider struct {
	registry     *prometheus.Registry
	jobsQueued   *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobWait      prometheus.Histogram
	pending      prometheus.Gauge
}

// NewProvider returns a noop provider unless metrics are enabled. Every
// enabled provider owns its registry.
func NewProvider(conf config.Metrics) ProviderInterface {
	if !conf.Enabled {
		return &noopMetrics{}
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Provider{
		registry: reg,
		jobsQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldnotes_write_jobs_queued_total",
			Help: "Total number of write jobs accepted by the queue",
		}, []string{"job"}),

		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldnotes_write_jobs_finished_total",
			Help: "Total number of finished write jobs by outcome",
		}, []string{"job", "outcome"}),

		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldnotes_write_job_duration_seconds",
			Help:    "Time a write job spent running",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),

		jobWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldnotes_write_job_wait_seconds",
			Help:    "Time a write job spent queued before running",
			Buckets: prometheus.DefBuckets,
		}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldnotes_write_queue_pending",
			Help: "Write jobs queued or running",
		}),
	}
}

func (m *Provider) Enqueued(name string, _ int) {
	m.jobsQueued.WithLabelValues(name).Inc()
	m.pending.Inc()
}

func (m *Provider) Finished(name, _ string, waited, ran time.Duration, err error) {
	m.pending.Dec()
	m.jobsFinished.WithLabelValues(name, outcome(err)).Inc()
	m.jobDuration.WithLabelValues(name).Observe(ran.Seconds())
	m.jobWait.Observe(waited.Seconds())
}

func (m *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for registering extra collectors.
func (m *Provider) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type noopMetrics struct{}

func (n *noopMetrics) Enqueued(string, int)                                         {}
func (n *noopMetrics) Finished(string, string, time.Duration, time.Duration, error) {}
func (n *noopMetrics) Handler() http.Handler                                        { return http.NotFoundHandler() }
