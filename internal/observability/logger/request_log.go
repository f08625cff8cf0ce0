package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/backoffice/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// RequestLogOptions tunes RequestLog.
type RequestLogOptions struct {
	// Verbose attaches a stack to entries for failed requests.
	Verbose bool
	// Classify maps a handler error to an error kind and code for the log
	// entry. It must not return user supplied text.
	Classify func(err error) (kind string, code string)
}

// RequestLog assigns every request a correlation id and writes one
// "http_request" entry once the handler chain returns.
func RequestLog(opts RequestLogOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		id := requestID(c)
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), id))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if orderID := c.GetString("order_id"); orderID != "" {
			fields = append(fields, zap.String("order_id", orderID))
		}

		var kind, code string
		if last := c.Errors.Last(); last != nil {
			if opts.Classify != nil {
				kind, code = opts.Classify(last.Err)
			}
			fields = append(fields, zap.String("error_type", kind), zap.String("error_code", code))
			if opts.Verbose {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(requestLevel(route, status, code), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetString("request_id")); id != "" {
		return id
	}
	return uuid.NewString()
}

// requestLevel keeps probes and expected checkout stock conflicts at debug
// and server failures at error.
func requestLevel(route string, status int, code string) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case route == "/api/orders" && status == http.StatusConflict && code == "insufficient_stock":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
