package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTP(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "GET /api/tasks", "200"))
	ObserveHTTP("GET", "GET /api/tasks", http.StatusOK, 20*time.Millisecond)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "GET /api/tasks", "200"))
	require.Equal(t, before+1, after)
}

func TestJobFinishedOutcome(t *testing.T) {
	JobFinished("sweep", time.Second, nil)
	JobFinished("sweep", time.Second, errors.New("boom"))
	require.GreaterOrEqual(t, testutil.ToFloat64(jobRuns.WithLabelValues("sweep", "success")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(jobRuns.WithLabelValues("sweep", "error")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	SetRealtimeSubscribers(3)
	BadgeUnlocked("first-step")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "thrive_realtime_subscribers 3")
	require.Contains(t, rec.Body.String(), `thrive_badges_unlocked_total{badge="first-step"}`)
}
