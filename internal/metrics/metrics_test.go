package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObservePage("CAT", 3)
	m.ObservePage("CAT", 1)
	m.JobStarted()
	m.JobFinished("completed", 2*time.Second)
	m.IncError("navigation")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("CAT")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("CAT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RegionsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("navigation")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObservePage("CAT", 1)
		m.JobStarted()
		m.JobFinished("failed", time.Second)
		m.IncError("session")
	})
}
