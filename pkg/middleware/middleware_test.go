package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adfharrison1/idxdb/pkg/metrics"
)

func newRouter(mw ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/collections/{coll}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodPost)
	router.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	router.HandleFunc("/deadline", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Use(mw...)
	return router
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.New(nil)
	router := newRouter(Metrics(m))

	assert.Equal(t, http.StatusCreated, serve(router, http.MethodPost, "/collections/users").Code)
	assert.Equal(t, http.StatusCreated, serve(router, http.MethodPost, "/collections/orders").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/fail").Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/collections/{coll}", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/fail", "500")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestMetrics_NilIsPassThrough(t *testing.T) {
	router := newRouter(Metrics(nil))
	assert.Equal(t, http.StatusCreated, serve(router, http.MethodPost, "/collections/users").Code)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newRouter(Logging(zap.New(core)))

	serve(router, http.MethodPost, "/collections/users")
	serve(router, http.MethodGet, "/fail")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/collections/users", fields["path"])
	assert.Equal(t, "/collections/{coll}", fields["route"])
	assert.EqualValues(t, 201, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newRouter(Timeout(time.Second)), http.MethodGet, "/deadline").Code)
	assert.Equal(t, http.StatusTeapot, serve(newRouter(Timeout(0)), http.MethodGet, "/deadline").Code)
}
