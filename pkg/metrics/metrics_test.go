package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("find", "IXSCAN", 1, 1, time.Millisecond)
		m.ObserveWrite("c", "insert")
		m.ObserveIndexBuild("c", time.Millisecond, nil)
		m.ObserveReaperCycle(map[string]int{"c": 1}, 0)
		m.SetDocuments("c", 3)
	})
	assert.NotNil(t, m.Handler())
}

func TestObservations(t *testing.T) {
	m := New(nil)

	m.ObserveQuery("find", "IXSCAN", 10, 4, time.Millisecond)
	m.ObserveQuery("find", "IXSCAN", 2, 2, time.Millisecond)
	m.ObserveWrite("users", "insert")
	m.ObserveIndexBuild("users", time.Second, nil)
	m.ObserveIndexBuild("users", time.Second, errors.New("duplicate"))
	m.ObserveReaperCycle(map[string]int{"sessions": 3}, 1)
	m.SetDocuments("users", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("find", "IXSCAN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("users", "insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReaperCyclesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReaperDeletedTotal.WithLabelValues("sessions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReaperFailuresTotal))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.CollectionDocuments.WithLabelValues("users")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DocsExamined))
}

func TestHandler_ServesOwnRegistry(t *testing.T) {
	m := New(nil)
	m.ObserveWrite("users", "insert")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `idxdb_writes_total{collection="users",operation="insert"} 1`)
	assert.NotContains(t, w.Body.String(), "go_goroutines")
}

func TestNew_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) }, "collectors register once per registry")
}
