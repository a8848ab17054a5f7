package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	healthTimeout    = 3 * time.Second
	readinessTimeout = 5 * time.Second
)

// Pinger is a dependency the bot needs to serve users
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	deps      map[string]Pinger
	startTime time.Time
	version   string
}

func NewHealthHandler(deps map[string]Pinger, version string) *HealthHandler {
	return &HealthHandler{
		deps:      deps,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse is the readiness report
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// checkAll pings every dependency concurrently. failed lists the names that
// did not answer.
func (h *HealthHandler) checkAll(ctx context.Context) (checks map[string]string, failed []string) {
	checks = make(map[string]string, len(h.deps))
	var mu sync.Mutex

	var g errgroup.Group
	for name, p := range h.deps {
		g.Go(func() error {
			err := p.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "unhealthy: " + err.Error()
				failed = append(failed, name)
			} else {
				checks[name] = "healthy"
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks, failed
}

// Liveness only reports that the process serves HTTP
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports every dependency along with uptime and memory
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks, failed := h.checkAll(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = fmt.Sprintf("%.2f", float64(m.Alloc)/1024/1024)

	resp := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	code := http.StatusOK
	if len(failed) > 0 {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// Health is the short form of Readiness
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if _, failed := h.checkAll(ctx); len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "unhealthy",
			"unavailable": failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}
