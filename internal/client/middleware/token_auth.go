package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyAuthenticated is set on the gin context once a request passed TokenAuth.
const ContextKeyAuthenticated = "authenticated"

type TokenAuthConfig struct {
	// Token is the shared secret. Empty disables authentication.
	Token string
}

// TokenAuth accepts "Authorization: Bearer <token>" or, for clients such as
// EventSource that cannot set headers, a ?token= query parameter.
func TokenAuth(config TokenAuthConfig) gin.HandlerFunc {
	if config.Token == "" {
		slog.Warn("control plane auth disabled")
		return func(c *gin.Context) { c.Next() }
	}

	want := []byte(config.Token)
	return func(c *gin.Context) {
		got := requestToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			slog.Debug("control plane auth rejected", "ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "ERR_UNAUTHORIZED",
				"error": "unauthorized",
			})
			return
		}
		c.Set(ContextKeyAuthenticated, true)
		c.Next()
	}
}

func requestToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}
