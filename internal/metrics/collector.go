// Package metrics holds the prometheus collectors for module init, tokenizer
// loads, tokenize calls and the HTTP API. A nil *Collector is valid and
// records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "tokenscope"

type Collector struct {
	moduleLoadsTotal    *prometheus.CounterVec
	moduleLoadDuration  *prometheus.HistogramVec
	tokenizerLoadsTotal *prometheus.CounterVec
	tokenizeTotal       *prometheus.CounterVec
	tokensPerInput      prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers the collectors on reg. A nil reg uses the default
// prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		moduleLoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_loads_total",
				Help:      "Tokenizer module loads by outcome",
			},
			[]string{"module", "strategy", "result"},
		),
		moduleLoadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_load_duration_seconds",
				Help:      "Tokenizer module load duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"module"},
		),
		tokenizerLoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokenizer_loads_total",
				Help:      "Tokenizer instance loads by outcome",
			},
			[]string{"result"},
		),
		tokenizeTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokenize_total",
				Help:      "Tokenize requests by outcome",
			},
			[]string{"result"},
		),
		tokensPerInput: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tokens_per_input",
				Help:      "Token count of each tokenized input",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (c *Collector) RecordModuleLoad(module, strategy string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.moduleLoadsTotal.WithLabelValues(module, strategy, outcome(err)).Inc()
	c.moduleLoadDuration.WithLabelValues(module).Observe(duration.Seconds())
}

// RecordTokenizerLoad counts a LoadTokenizer call. result is "ok" or a
// failure kind.
func (c *Collector) RecordTokenizerLoad(result string) {
	if c == nil {
		return
	}
	c.tokenizerLoadsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordTokenize(tokens int, err error) {
	if c == nil {
		return
	}
	c.tokenizeTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		c.tokensPerInput.Observe(float64(tokens))
	}
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return strconv.Itoa(code)
	}
}
