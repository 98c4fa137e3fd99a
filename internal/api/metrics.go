package api

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saschahuberzh/SeoulChat/internal/stats"
)

// StatsReader exposes the realtime counters kept by the chat server.
type StatsReader interface {
	Value(name string) int64
}

type httpMetrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newHttpMetrics(su StatsReader) *httpMetrics {
	m := &httpMetrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if su != nil {
		m.registerRealtimeGauges(su)
	}

	return m
}

func (m *httpMetrics) registerRealtimeGauges(su StatsReader) {
	gauges := map[string]string{
		stats.ConnectionsActive: "seoulchat_ws_connections",
		stats.ConnectionsTotal:  "seoulchat_ws_connections_opened",
		stats.UsersOnline:       "seoulchat_users_online",
		stats.RoomsActive:       "seoulchat_rooms_active",
		stats.EventsPublished:   "seoulchat_events_published",
		stats.FramesDropped:     "seoulchat_frames_dropped",
	}

	for stat, name := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: "Realtime counter " + stat,
		}, func() float64 {
			return float64(su.Value(stat))
		}))
	}
}

func (m *httpMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records the request count and latency per route pattern.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(snoop.Code)}
		m.requestsTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(snoop.Duration.Seconds())
	})
}
