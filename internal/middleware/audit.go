package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/pkg/logger"
)

// AuditLog records write operations (POST/PUT/DELETE) with the caller and outcome. Request bodies
// carry submitted source code, so only their size is logged.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		event := logger.Info()
		if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("module", module).
			Str("action", action).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int64("body_bytes", c.Request.ContentLength).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg(formatAuditMessage(method, c.Request.URL.Path, status))
	}
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/reviews" + "POST" -> module="reviews", action="create"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")

	parts := strings.SplitN(path, "/", 2)
	module = parts[0]
	if module == "" {
		module = "unknown"
	}

	switch method {
	case "POST":
		action = "create"
	case "PUT":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}

	return module, action
}

func formatAuditMessage(method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" -> ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}
