package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"homework_bot/internal/http/handlers"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(context.Context) error { return nil }

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthyEndpoints(t *testing.T) {
	r := NewRouter(handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": handlers.PingFunc(ok),
		"redis":    handlers.PingFunc(ok),
	}, "test"))

	w := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, w.Body.String())

	w = get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, r, "/readyz")
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.HealthResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
	assert.Equal(t, "healthy", resp.Checks["redis"])
}

func TestUnhealthyDependency(t *testing.T) {
	r := NewRouter(handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": handlers.PingFunc(ok),
		"redis": handlers.PingFunc(func(context.Context) error {
			return errors.New("connection refused")
		}),
	}, "test"))

	w := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","unavailable":["redis"]}`, w.Body.String())

	w = get(t, r, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp handlers.HealthResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
	assert.Equal(t, "unhealthy: connection refused", resp.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(handlers.NewHealthHandler(nil, "test"))
	get(t, r, "/healthz")

	w := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{route="/healthz",status="200"}`)
}
