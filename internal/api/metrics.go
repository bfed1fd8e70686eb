package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/dealdesk/internal/notice"
)

// Metrics holds the collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	estimates prometheus.Counter
	notices   *prometheus.GaugeVec
	completes *prometheus.CounterVec
}

// NewMetrics registers the dealdesk collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dealdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route"}),
		estimates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealdesk",
			Name:      "estimates_total",
			Help:      "Closing-cost breakdowns served.",
		}),
		notices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dealdesk",
			Name:      "notices_outstanding",
			Help:      "Milestones in the last notices response, by status.",
		}, []string{"status"}),
		completes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealdesk",
			Name:      "milestone_updates_total",
			Help:      "Milestone completion flags written, by value.",
		}, []string{"completed"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "dealdesk"}),
		m.requests, m.latency, m.estimates, m.notices, m.completes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) observeNotices(res notice.Result) {
	m.notices.WithLabelValues(notice.StatusOverdue).Set(float64(len(res.Overdue)))
	m.notices.WithLabelValues(notice.StatusUpcoming).Set(float64(len(res.Upcoming)))
}

func (m *Metrics) observeCompletion(done bool, n int) {
	m.completes.WithLabelValues(strconv.FormatBool(done)).Add(float64(n))
}

// instrument records request counts and latency under the matched chi route
// pattern so ids do not explode label cardinality.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
