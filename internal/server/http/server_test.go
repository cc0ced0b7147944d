package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
)

func TestHealthAndCORS(t *testing.T) {
	cfg := config.Config{HTTP: config.HTTP{AllowedOrigins: []string{"https://menu.example.dz"}}}
	e := NewEcho(cfg, nil, zap.NewNop())
	handler := WithCORS(cfg.HTTP, e)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://menu.example.dz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://menu.example.dz", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
