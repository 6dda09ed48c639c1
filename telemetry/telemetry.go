package telemetry

import (
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	// Register metrics with Prometheus
	prometheus.MustRegister(httpInFlight)
	prometheus.MustRegister(httpDuration)
	prometheus.MustRegister(httpQueueTime)
	prometheus.MustRegister(splitInFlight)
	prometheus.MustRegister(splitDuration)
	prometheus.MustRegister(splitRetries)
}

var (
	// Transport level metrics

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinot_http_client_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
		[]string{"client"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinot_http_client_duration_seconds",
			Help:    "HTTP request duration distributions",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"client", "status"},
	)

	httpQueueTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinot_http_client_queue_seconds",
			Help:    "Time spent waiting before request starts",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"client"},
	)

	// Split execution metrics

	splitInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pinot_split_executions_in_flight",
			Help: "Current number of splits being executed",
		},
		[]string{"kind"},
	)

	splitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinot_split_execution_duration_seconds",
			Help:    "Split execution duration distributions including retries",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "outcome"},
	)

	splitRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinot_split_retries_total",
			Help: "Number of retried split executions",
		},
		[]string{"kind"},
	)
)

// StartSplitExecution tracks one split execution. Call the returned function
// with the final error when the execution finishes.
func StartSplitExecution(kind string) func(err error) {
	start := time.Now()
	splitInFlight.WithLabelValues(kind).Inc()
	return func(err error) {
		splitInFlight.WithLabelValues(kind).Dec()
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		splitDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
	}
}

func RecordSplitRetry(kind string) {
	splitRetries.WithLabelValues(kind).Inc()
}

// MetricsTransport is an http.RoundTripper that records request metrics under
// a client name.
type MetricsTransport struct {
	name     string
	wrapped  http.RoundTripper
	inFlight int64
}

func NewMetricsTransport(name string, wrapped http.RoundTripper) *MetricsTransport {
	if wrapped == nil {
		wrapped = http.DefaultTransport
	}
	return &MetricsTransport{
		name:    name,
		wrapped: wrapped,
	}
}

func (t *MetricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	atomic.AddInt64(&t.inFlight, 1)
	defer atomic.AddInt64(&t.inFlight, -1)

	httpInFlight.WithLabelValues(t.name).Set(float64(atomic.LoadInt64(&t.inFlight)))

	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			httpQueueTime.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := t.wrapped.RoundTrip(req)
	if err != nil {
		httpDuration.WithLabelValues(t.name, "error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	httpDuration.WithLabelValues(t.name, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	return resp, nil
}
