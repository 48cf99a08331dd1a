package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSync(t *testing.T) {
	c := NewCollector("timeline")
	c.ObserveSync("GitHub", "success", 3, 150*time.Millisecond)
	c.ObserveSync("GitHub", "success", 0, time.Second)
	c.ObserveSync("Notion", "remote_error", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SyncRuns.WithLabelValues("GitHub", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.EntriesCreated.WithLabelValues("GitHub")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SyncRuns.WithLabelValues("Notion", "remote_error")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveSync("GitHub", "success", 1, time.Second)
		c.ObserveRequest("GET", "/timeline", "200")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("timeline")
	c.ObserveRequest("POST", "/api/connections/:provider/sync", "200")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "timeline_http_requests_total"))
}
