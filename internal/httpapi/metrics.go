package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	salesCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_committed_total",
		Help: "Count of committed sales by payment method.",
	}, []string{"payment_method"})

	saleAmountCents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_amount_cents",
		Help:    "Distribution of committed sale totals in cents.",
		Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
	})
)

// statusRecorder captures the status code written by a handler so the
// metrics middleware can label by it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
