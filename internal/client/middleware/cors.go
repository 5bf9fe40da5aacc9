package middleware

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS lets pages served from the same machine call the control plane.
// Browser requests from any other origin are rejected.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: loopbackOrigin,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
		AllowHeaders: []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Authorization",
			// EventSource resumes with it after a reconnect
			"Last-Event-ID",
		},
		// set by the rate limiter
		ExposeHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		MaxAge: 12 * time.Hour,
	})
}

func loopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if u.Hostname() == "localhost" {
		return true
	}
	ip := net.ParseIP(u.Hostname())
	return ip != nil && ip.IsLoopback()
}
