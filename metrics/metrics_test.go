package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrementByPhase(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.Uploaded.WithLabelValues("blob").Inc()
	r.Uploaded.WithLabelValues("blob").Inc()
	r.Skipped.WithLabelValues("recipe").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(r.Uploaded.WithLabelValues("blob")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Skipped.WithLabelValues("recipe")))
}

func TestInFlightGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.InFlightUploads.Inc()
	r.InFlightUploads.Inc()
	r.InFlightUploads.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.InFlightUploads))
}
