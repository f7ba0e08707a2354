package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestRecorderCountsClaims(t *testing.T) {
	rec := newTestRecorder()
	rec.ClaimAccepted(2)
	rec.ClaimAccepted(1)
	rec.ClaimRejected("quota")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.claims.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.claims.WithLabelValues("quota")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.claimedCells))
}

func TestRecorderIgnoresNonPositiveCounts(t *testing.T) {
	rec := newTestRecorder()
	rec.SquaresConfirmed(0)
	rec.SquaresReleased("expired", -1)
	rec.SquaresReleased("expired", 4)

	assert.Equal(t, 0.0, testutil.ToFloat64(rec.confirmed))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.released.WithLabelValues("expired")))
}

func TestRecorderFeedGauge(t *testing.T) {
	rec := newTestRecorder()
	rec.FeedOpened()
	rec.FeedOpened()
	rec.FeedClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.feeds))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ClaimAccepted(1)
	rec.ClaimRejected("conflict")
	rec.SquaresConfirmed(1)
	rec.SquaresReleased("manual", 1)
	rec.GridLocked()
	rec.NotificationsQueued("invite", 1)
	rec.FeedOpened()
	rec.FeedClosed()
	rec.SweepCompleted(time.Second)
	rec.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, w.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	rec := newTestRecorder()
	rec.GridLocked()

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "squares_grids_locked_total 1")
}
