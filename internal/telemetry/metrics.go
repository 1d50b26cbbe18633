// Package telemetry holds the prometheus metrics of the search engine and
// the endpoint that exposes them.
package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eosearch/internal/logging"
	"eosearch/internal/transport"
)

// Job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeError     = "error"
)

var (
	jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eosearch_jobs_total",
		Help: "Search jobs by provider and outcome",
	}, []string{"provider", "outcome"})
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eosearch_polls_total",
		Help: "Job status polls by provider and reported status",
	}, []string{"provider", "status"})
	reauthTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eosearch_reauth_total",
		Help: "Re-authentications triggered by a 403 status",
	}, []string{"provider"})
	entriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eosearch_entries_total",
		Help: "Normalized entries produced",
	}, []string{"provider"})
	conversionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eosearch_conversion_errors_total",
		Help: "Converter failures during extraction",
	}, []string{"converter"})
	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eosearch_query_duration_seconds",
		Help:    "Wall time of a full search query",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider"})
)

// Registry holds the engine metrics plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	MustRegisterMetrics(Registry)
	Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// RegisterMetrics registers the engine metrics with r.
func RegisterMetrics(r prometheus.Registerer) error {
	return errors.Join(
		r.Register(jobsTotal),
		r.Register(pollsTotal),
		r.Register(reauthTotal),
		r.Register(entriesTotal),
		r.Register(conversionErrorsTotal),
		r.Register(queryDuration),
	)
}

// MustRegisterMetrics is RegisterMetrics that panics on error.
func MustRegisterMetrics(r prometheus.Registerer) {
	if err := RegisterMetrics(r); err != nil {
		panic(err)
	}
}

func JobDone(provider, outcome string) { jobsTotal.WithLabelValues(provider, outcome).Inc() }

// Poll status labels. Any status a provider reports outside this set is
// counted as pending.
const (
	PollCompleted = "completed"
	PollFailed    = "failed"
	PollForbidden = "forbidden"
	PollPending   = "pending"
)

func Polled(provider, status string) {
	switch status {
	case PollCompleted, PollFailed, PollForbidden:
	default:
		status = PollPending
	}
	pollsTotal.WithLabelValues(provider, status).Inc()
}

func Reauthenticated(provider string) { reauthTotal.WithLabelValues(provider).Inc() }

func EntriesProduced(provider string, n int) {
	entriesTotal.WithLabelValues(provider).Add(float64(n))
}

func ConversionFailed(converter string) { conversionErrorsTotal.WithLabelValues(converter).Inc() }

// ObserveQuery records the duration of a query started at start.
func ObserveQuery(provider string, start time.Time) {
	queryDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// Handler serves Registry in the prometheus text format.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	return mux
}

// Expose serves /metrics on port in the background.
func Expose(port int) (*transport.Server, error) {
	s, err := transport.StartServer(port, Handler())
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(); err != nil {
			logging.L().Error("metrics server stopped", "err", err)
		}
	}()
	logging.L().Info("metrics exposed", "port", s.Port())
	return s, nil
}
