package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cankoe/misuse-recorder/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const requestKindKey = "request_kind"

// RequestLogger logs every request through zerolog and records its latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		kind := c.GetString(requestKindKey)
		if kind == "" {
			kind = "other"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, kind, strconv.Itoa(status)).Observe(latency.Seconds())

		log.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).Int("status", status).Str("kind", kind).
			Dur("latency", latency).Msg("Request served")
	}
}

// CORS allows any origin, echoing it so credentialed requests are accepted.
// Preflight requests are answered here and never captured.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS, TRACE")
			if headers := c.GetHeader("Access-Control-Request-Headers"); headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			}
			c.Header("Access-Control-Max-Age", "600")
			c.Set(requestKindKey, "preflight")
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
