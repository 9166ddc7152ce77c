package middleware

import (
	"time"

	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-Id"
	loggerKey       = "logger"
)

// RequestLogger tags each request with a request id, stores a scoped logger
// in the gin context and writes one access line per request.
func RequestLogger(base logger.ZapLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		l := base.With(
			zap.String("req_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
		)
		c.Set(loggerKey, l)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Int64("dur_ms", time.Since(start).Milliseconds()),
			zap.String("remote", c.ClientIP()),
			zap.Int("resp_bytes", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			l.Error("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}

// From returns the request-scoped logger, or fallback when none was set.
func From(c *gin.Context, fallback logger.ZapLogger) logger.ZapLogger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logger.ZapLogger); ok && l != nil {
			return l
		}
	}
	return fallback
}
