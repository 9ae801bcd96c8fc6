package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Guyuepp/popularity-service/domain"
)

var (
	ProjectionWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "projection_write_failures_total",
		Help: "Projection writes that failed and were handed to repair",
	}, []string{"op"})

	ProjectionMissing = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "projection_missing_total",
		Help: "Projection documents found missing for an existing item",
	}, []string{"op"})

	RepairDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "projection_repair_dropped_total",
		Help: "Repairs abandoned because the queue was full or retries ran out",
	})

	DecayBuckets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decay_buckets_total",
		Help: "Processed decay buckets",
	}, []string{"window"})

	DecayItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decay_items_total",
		Help: "Items touched by decay, by outcome",
	}, []string{"window", "status"})

	DecayLastBucket = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "decay_last_bucket_start_seconds",
		Help: "Start of the most recently processed decay bucket",
	}, []string{"window"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// MustRegister registers every collector of the service.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ProjectionWriteFailures,
		ProjectionMissing,
		RepairDropped,
		DecayBuckets,
		DecayItems,
		DecayLastBucket,
		HTTPRequestDuration,
	)
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, start time.Time) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// Reporter exposes projection drift through the package collectors.
type Reporter struct{}

var _ domain.DriftReporter = Reporter{}

func (Reporter) ProjectionWriteFailed(op string) {
	ProjectionWriteFailures.WithLabelValues(op).Inc()
}

func (Reporter) ProjectionMissing(op string) {
	ProjectionMissing.WithLabelValues(op).Inc()
}

func (Reporter) RepairDropped() {
	RepairDropped.Inc()
}

func (Reporter) DecayBucketProcessed(r domain.DecayResult) {
	w := string(r.Window)
	DecayBuckets.WithLabelValues(w).Inc()
	DecayItems.WithLabelValues(w, "success").Add(float64(r.Items - r.Failed))
	DecayItems.WithLabelValues(w, "failed").Add(float64(r.Failed))
	DecayLastBucket.WithLabelValues(w).Set(float64(r.BucketStart.Unix()))
}
