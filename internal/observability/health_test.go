package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	router := gin.New()
	router.GET("/ready", ReadinessHandler(map[string]HealthCheckFunc{
		"database": func(ctx context.Context) (bool, error) { return true, nil },
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ready" {
		t.Errorf("Expected status 'ready', got '%s'", status.Status)
	}
	if status.Dependencies["database"].Status != "healthy" {
		t.Errorf("Expected database healthy, got %+v", status.Dependencies["database"])
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	router := gin.New()
	router.GET("/ready", ReadinessHandler(map[string]HealthCheckFunc{
		"database": func(ctx context.Context) (bool, error) { return true, nil },
		"llm":      func(ctx context.Context) (bool, error) { return false, errors.New("circuit open") },
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "not_ready" {
		t.Errorf("Expected status 'not_ready', got '%s'", status.Status)
	}
	if status.Dependencies["llm"].Message != "circuit open" {
		t.Errorf("Expected llm message 'circuit open', got '%s'", status.Dependencies["llm"].Message)
	}
}

func TestRequestLogger_SetsCorrelationHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		if _, ok := c.Get("correlation_id"); !ok {
			t.Error("Expected correlation_id in context")
		}
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Errorf("Expected correlation header 'abc-123', got '%s'", got)
	}
}
