package metric

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Basic metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"method", "endpoint"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)

	// JobsProcessed counts jobs by kind and terminal outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_jobs_processed_total",
			Help: "Total number of jobs driven to a terminal state",
		},
		[]string{"kind", "outcome"},
	)

	// JobDuration tracks end-to-end processing time per job kind.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_job_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// PaymentsSettled counts settlement attempts by result.
	PaymentsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_payments_settled_total",
			Help: "Total number of payment settlement attempts",
		},
		[]string{"result"},
	)
)

type Server struct {
	conf *Config
}

type Config struct {
	Port int `default:"4014"`
}

func New(conf *Config) *Server {
	if conf == nil {
		conf = &Config{}
		envconfig.MustProcess("metric", conf)
	}
	return &Server{conf: conf}
}

func (s *Server) Start() error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", s.conf.Port), nil)
}

// RecordRequest records a request metric
func RecordRequest(method, endpoint string) {
	requestsTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestDuration records the duration of a request
func RecordRequestDuration(method, endpoint string, duration time.Duration) {
	requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
