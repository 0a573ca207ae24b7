package client

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk_client",
			Name:      "requests_total",
			Help:      "HTTP requests issued, by method and status code.",
		},
		[]string{"method", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "desk_client",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests to the desk API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// metricsTransport records request counts and latency and stamps each
// request with an X-Request-ID for correlation with server logs.
type metricsTransport struct{ base http.RoundTripper }

func (mt *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-ID") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	start := time.Now()
	resp, err := mt.base.RoundTrip(req)
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	requestsTotal.WithLabelValues(req.Method, code).Inc()
	return resp, err
}
