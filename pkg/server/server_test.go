package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/idxdb/pkg/config"
	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.StorageEngine) {
	t.Helper()
	m := metrics.New(nil)
	engine := storage.NewStorageEngine(storage.WithMetrics(m))
	return NewServer(config.Default(), engine, WithMetrics(m)), engine
}

func request(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	assert.Equal(t, http.StatusOK, request(t, router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusCreated, request(t, router, http.MethodPost, "/collections/users", `{"_id":"u1","name":"Alice"}`).Code)
	assert.Equal(t, http.StatusOK, request(t, router, http.MethodGet, "/collections/users/documents/u1", "").Code)

	w := request(t, router, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no route")

	w = request(t, router, http.MethodPut, "/collections/users/documents/u1", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	request(t, router, http.MethodPost, "/collections/users", `{"name":"Alice"}`)
	request(t, router, http.MethodPost, "/collections/users/find", `{"filter":{"name":"Alice"}}`)

	w := request(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `idxdb_http_requests_total{method="POST",route="/collections/{coll}",status="201"} 1`)
	assert.Contains(t, body, `idxdb_writes_total{collection="users",operation="insert"} 1`)
	assert.Contains(t, body, `idxdb_queries_total{operation="find",stage="COLLSCAN"} 1`)
}

func TestServer_SaveAndInitDB(t *testing.T) {
	file := filepath.Join(t.TempDir(), "db.idxb")
	s, _ := newTestServer(t)
	request(t, s.Router(), http.MethodPost, "/collections/users", `{"_id":"u1"}`)
	require.NoError(t, s.SaveDB(file))

	restored, engine := newTestServer(t)
	require.NoError(t, restored.InitDB(context.Background(), file))
	n, err := engine.Count("users")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, restored.InitDB(context.Background(), filepath.Join(t.TempDir(), "missing.idxb")))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	url := "http://" + lis.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
