package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	UpstreamFetches      int64
	UpstreamFailures     int64
	ArticlesNormalized   int64
	SuccessfulEnrichment int64
	FailedEnrichment     int64
	PostsPublished       int64
	URLScans             int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	registry   *prometheus.Registry
	upstream   *prometheus.CounterVec
	normalized prometheus.Counter
	enrich     *prometheus.CounterVec
	published  *prometheus.CounterVec
	scans      *prometheus.CounterVec
	processing prometheus.Histogram
}

var Global = New()

// New creates a Metrics with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		IsHealthy: true,
		registry:  prometheus.NewRegistry(),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "technews",
			Name:      "upstream_fetches_total",
			Help:      "WordPress list fetches by result.",
		}, []string{"result"}),
		normalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "technews",
			Name:      "articles_normalized_total",
			Help:      "Raw posts normalized into articles.",
		}),
		enrich: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "technews",
			Name:      "enrichments_total",
			Help:      "Translate/summarize attempts by result.",
		}, []string{"result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "technews",
			Name:      "posts_published_total",
			Help:      "WordPress write-backs by result.",
		}, []string{"result"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "technews",
			Name:      "url_scans_total",
			Help:      "URL safety checks by reputation source.",
		}, []string{"source"}),
		processing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "technews",
			Name:      "processing_duration_seconds",
			Help:      "Duration of content-processing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
	m.registry.MustRegister(m.upstream, m.normalized, m.enrich, m.published, m.scans, m.processing)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordUpstreamFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpstreamFetches++
	if err != nil {
		m.UpstreamFailures++
		m.LastError = err.Error()
		m.LastErrorTime = time.Now()
		m.upstream.WithLabelValues("error").Inc()
		return
	}
	m.upstream.WithLabelValues("ok").Inc()
}

func (m *Metrics) AddArticlesNormalized(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesNormalized += int64(n)
	m.normalized.Add(float64(n))
}

func (m *Metrics) IncrementSuccessfulEnrichment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuccessfulEnrichment++
	m.enrich.WithLabelValues("ok").Inc()
}

func (m *Metrics) IncrementFailedEnrichment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedEnrichment++
	m.enrich.WithLabelValues("fallback").Inc()
}

func (m *Metrics) RecordPublish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.published.WithLabelValues("error").Inc()
		return
	}
	m.PostsPublished++
	m.published.WithLabelValues("ok").Inc()
}

func (m *Metrics) RecordURLScan(simulated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.URLScans++
	source := "virustotal"
	if simulated {
		source = "simulated"
	}
	m.scans.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	m.processing.Observe(duration.Seconds())
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"upstream_fetches":           m.UpstreamFetches,
		"upstream_failures":          m.UpstreamFailures,
		"articles_normalized":        m.ArticlesNormalized,
		"successful_enrichment":      m.SuccessfulEnrichment,
		"failed_enrichment":          m.FailedEnrichment,
		"posts_published":            m.PostsPublished,
		"url_scans":                  m.URLScans,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              formatTime(m.LastRunTime),
		"last_error_time":            formatTime(m.LastErrorTime),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
