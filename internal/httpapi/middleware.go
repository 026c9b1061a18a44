package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	logx "netoptimizer/pkg/logx"
)

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		took := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveHTTP(route, c.Request.Method, status, took)
		}

		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.String("query", c.Request.URL.RawQuery),
			logx.Int("status", status),
			logx.Duration("latency", took),
			logx.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.String("errors", c.Errors.String()))
		}
		switch {
		case status >= 500:
			s.log.Error("http request", fields...)
		case status >= 400:
			s.log.Warn("http request", fields...)
		case route == RouteHealth || route == RouteMetrics:
			s.log.Trace("http request", fields...)
		default:
			s.log.Info("http request", fields...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, r any) {
		s.log.Error("panic in handler",
			logx.String("path", c.Request.URL.Path),
			logx.String("panic", fmt.Sprint(r)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error."})
	})
}
