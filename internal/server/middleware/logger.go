package middleware

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs request details using Zap. Probe endpoints are skipped.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
		Context: func(c *gin.Context) []zapcore.Field {
			fields := []zapcore.Field{}
			if id, ok := api.RequestIDFrom(c.Request.Context()); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			return fields
		},
	})
}

// Recovery answers panics with the generic 500 body and logs the stack.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(logger, true, func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(500, api.ErrorResponse{Error: "Internal server error"})
	})
}
