package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Guyuepp/popularity-service/domain"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { MustRegister(reg) })
	assert.Panics(t, func() { MustRegister(reg) }, "double registration is a programming error")
}

func TestReporter(t *testing.T) {
	r := Reporter{}

	before := testutil.ToFloat64(ProjectionWriteFailures.WithLabelValues("like"))
	r.ProjectionWriteFailed("like")
	assert.Equal(t, before+1, testutil.ToFloat64(ProjectionWriteFailures.WithLabelValues("like")))

	before = testutil.ToFloat64(RepairDropped)
	r.RepairDropped()
	assert.Equal(t, before+1, testutil.ToFloat64(RepairDropped))

	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	failedBefore := testutil.ToFloat64(DecayItems.WithLabelValues("week", "failed"))
	r.DecayBucketProcessed(domain.DecayResult{Window: domain.WindowWeek, BucketStart: start, Items: 5, Failed: 2})
	assert.Equal(t, failedBefore+2, testutil.ToFloat64(DecayItems.WithLabelValues("week", "failed")))
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(DecayLastBucket.WithLabelValues("week")))
}
