package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/restodb/pkg/api"
	"github.com/adfharrison1/restodb/pkg/audit"
	"github.com/adfharrison1/restodb/pkg/converge"
	"github.com/adfharrison1/restodb/pkg/registry"
	"github.com/adfharrison1/restodb/pkg/storage"
)

func newTestServer(t *testing.T, logs *bytes.Buffer) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	reg, err := registry.Default()
	require.NoError(t, err)
	handler := api.NewHandler(storage.NewStorageEngine(), reg,
		converge.NewEngine(reg, converge.WithLogger(logger)),
		audit.New(audit.WithLogger(logger)),
		api.WithLogger(logger),
	)
	return NewServer(handler, nil, logger)
}

func TestServer_RequestLogging(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(t, &logs)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, "http.request", line["msg"])
	assert.Equal(t, "/health", line["path"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
}

func TestServer_UnknownRoute(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(t, &logs)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/nope"},
		{http.MethodDelete, "/collections"},
		{http.MethodGet, "/collections/ordenes"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if tt.method == http.MethodDelete {
				// gorilla answers a known path with the wrong method itself
				assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
				return
			}
			assert.Equal(t, http.StatusNotFound, w.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusNotFound, resp.Code)
			assert.Contains(t, resp.Message, tt.path)
		})
	}
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(t, &logs)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
