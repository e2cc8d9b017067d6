package middleware

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler converts the last handler error into the {error, details} envelope.
// Unknown errors become a generic 500; their detail only reaches the log.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, body := Translate(err)

		if status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		var rlErr *api.RateLimitExceededError
		if errors.As(err, &rlErr) && rlErr.Window > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rlErr.Window.Seconds()))))
		}

		c.AbortWithStatusJSON(status, body)
	}
}

// Translate maps a typed error to its status and public body.
func Translate(err error) (int, api.ErrorResponse) {
	var (
		vErr        *api.ValidationError
		unsupported *api.UnsupportedProviderError
		rlErr       *api.RateLimitExceededError
		upErr       *api.UpstreamError
		ioErr       *mailbox.IOError
	)

	switch {
	case errors.As(err, &vErr):
		return vErr.Status(), api.ErrorResponse{Error: vErr.Message, Details: formatDetails(vErr.Details)}
	case errors.As(err, &unsupported):
		return unsupported.Status(), api.ErrorResponse{Error: unsupported.Error()}
	case errors.As(err, &rlErr):
		return rlErr.Status(), api.ErrorResponse{Error: rlErr.Error(), Details: rlErr.Detail()}
	case errors.As(err, &upErr):
		return upErr.Status(), api.ErrorResponse{Error: "AI request failed", Details: upErr.Error()}
	case errors.Is(err, mailbox.ErrNoRequest):
		return http.StatusNotFound, api.ErrorResponse{Error: "No request file found"}
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError, api.ErrorResponse{Error: "File-based request failed", Details: ioErr.Error()}
	default:
		return http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"}
	}
}

func formatDetails(details map[string]string) string {
	parts := make([]string, 0, len(details))
	for _, field := range slices.Sorted(maps.Keys(details)) {
		parts = append(parts, fmt.Sprintf("%s: %s", field, details[field]))
	}
	return strings.Join(parts, "; ")
}
