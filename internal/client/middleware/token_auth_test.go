package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func authRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TokenAuth(TokenAuthConfig{Token: token}))
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth": c.GetBool(ContextKeyAuthenticated)})
	})
	return r
}

func TestTokenAuth_Disabled(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"auth":false`)
}

func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/ok", "", http.StatusUnauthorized},
		{"wrong header token", "/ok", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/ok", "Basic secret", http.StatusUnauthorized},
		{"bare token", "/ok", "secret", http.StatusUnauthorized},
		{"header", "/ok", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "/ok", "bearer secret", http.StatusOK},
		{"query", "/ok?token=secret", "", http.StatusOK},
		{"wrong query", "/ok?token=nope", "", http.StatusUnauthorized},
		{"bad header beats good query", "/ok?token=secret", "Bearer nope", http.StatusUnauthorized},
	}

	r := authRouter("secret")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"auth":true`)
			} else {
				assert.Contains(t, w.Body.String(), `"code":"ERR_UNAUTHORIZED"`)
			}
		})
	}
}
