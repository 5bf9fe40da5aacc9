package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupCORSRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/ok", func(c *gin.Context) { c.String(200, "ok") })
	r.DELETE("/v1/queue", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestCORS_LoopbackOrigins(t *testing.T) {
	r := setupCORSRouter()

	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:7938", "http://[::1]:8080"} {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code, origin)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestCORS_RejectsRemoteOrigin(t *testing.T) {
	r := setupCORSRouter()

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// the cli sends no origin at all
	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	r := setupCORSRouter()

	req := httptest.NewRequest(http.MethodOptions, "/v1/queue", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Last-Event-ID")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "last-event-id")
}

func TestLoopbackOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"https://localhost:8443", true},
		{"http://127.0.0.1:7938", true},
		{"http://127.10.0.1", true},
		{"http://[::1]:3000", true},
		{"http://192.168.1.10", false},
		{"http://localhost.example.com", false},
		{"null", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, loopbackOrigin(tt.origin), tt.origin)
	}
}
