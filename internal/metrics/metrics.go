package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	approvalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_approval_transitions_total",
			Help: "Approval workflow transitions by kind",
		},
		[]string{"transition"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_notifications_total",
			Help: "Notification emails by result",
		},
		[]string{"result"},
	)

	escalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "procurement_escalations_total",
			Help: "Reminders sent for approval steps past their SLA",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procurement_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

const (
	TransitionSubmitted    = "submitted"
	TransitionAutoApproved = "auto_approved"
	TransitionAdvanced     = "advanced"
	TransitionApproved     = "approved"
	TransitionRejected     = "rejected"
)

func RecordTransition(transition string) {
	approvalTransitions.WithLabelValues(transition).Inc()
}

func RecordNotification(err error) {
	if err != nil {
		notifications.WithLabelValues("failed").Inc()
		return
	}
	notifications.WithLabelValues("sent").Inc()
}

func RecordEscalation() {
	escalations.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware counts requests and observes their duration.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
