package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codesync",
		Name:      "session_events_total",
		Help:      "Inbound session events by name and outcome",
	}, []string{"event", "outcome"})

	sessionEventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codesync",
		Name:      "session_event_duration_seconds",
		Help:      "Time spent applying and fanning out a session event",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"event"})

	connectedSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codesync",
		Name:      "connected_sockets",
		Help:      "Live transport connections",
	})

	roomsWithState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codesync",
		Name:      "rooms",
		Help:      "Rooms holding file state in this process",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codesync",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codesync",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveEvent records one handled session event. A nil err counts as ok.
func ObserveEvent(event string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	sessionEvents.WithLabelValues(event, outcome).Inc()
	sessionEventLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
}

func SocketConnected()    { connectedSockets.Inc() }
func SocketDisconnected() { connectedSockets.Dec() }

func SetRooms(n int) { roomsWithState.Set(float64(n)) }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is needed for the socket.io websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(rec.status)
		httpRequests.WithLabelValues(r.Method, route, status).Inc()
		httpLatency.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
