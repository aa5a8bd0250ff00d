package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
)

func TestNoopMetrics_WhenDisabled(t *testing.T) {
	m := NewProvider(config.Metrics{Enabled: false})
	_, ok := m.(*noopMetrics)
	assert.True(t, ok, "should return noopMetrics when disabled")

	// Ensure no-op methods don't panic
	m.Enqueued("write_down", 1)
	m.Finished("write_down", "id", time.Millisecond, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProvidersDoNotShareRegistry(t *testing.T) {
	// Two enabled providers in one process must not collide on registration.
	first := NewProvider(config.Metrics{Enabled: true})
	second := NewProvider(config.Metrics{Enabled: true})
	assert.NotSame(t, first.(*Provider).Registry(), second.(*Provider).Registry())
}

func TestProviderCountsJobs(t *testing.T) {
	m, ok := NewProvider(config.Metrics{Enabled: true}).(*Provider)
	require.True(t, ok)

	m.Enqueued("write_down", 1)
	m.Enqueued("write_down", 2)
	m.Enqueued("update_tags", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))

	m.Finished("write_down", "a", time.Millisecond, 2*time.Millisecond, nil)
	m.Finished("write_down", "b", time.Millisecond, 2*time.Millisecond, errors.New("conflict"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsQueued.WithLabelValues("write_down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("write_down", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("write_down", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fieldnotes_write_jobs_finished_total")
	assert.Contains(t, string(body), "fieldnotes_write_job_duration_seconds")
}
