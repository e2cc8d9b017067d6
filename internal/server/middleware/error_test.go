package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/mailbox"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantDetail string
	}{
		{
			name:       "validation",
			err:        &api.ValidationError{Field: "prompt", Message: "Prompt is required"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Prompt is required",
		},
		{
			name: "validation with details",
			err: &api.ValidationError{Field: "body", Message: "Invalid request", Details: map[string]string{
				"service": "required",
				"prompt":  "must be of type string",
			}},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
			wantDetail: "prompt: must be of type string; service: required",
		},
		{
			name:       "unsupported provider",
			err:        &api.UnsupportedProviderError{Provider: "mistral"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Unsupported AI service: mistral",
		},
		{
			name:       "rate limited",
			err:        &api.RateLimitExceededError{Provider: api.Claude, Limit: 2, Window: time.Minute},
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Rate limit exceeded",
			wantDetail: "claude allows 2 requests per 1m0s",
		},
		{
			name:       "upstream",
			err:        &api.UpstreamError{Provider: api.OpenAI, StatusCode: 500, ProviderMessage: "boom"},
			wantStatus: http.StatusBadGateway,
			wantError:  "AI request failed",
			wantDetail: "AI service error (openai, status 500): boom",
		},
		{
			name:       "upstream timeout",
			err:        &api.UpstreamError{Provider: api.Ollama, ProviderMessage: "timed out", Timeout: true},
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "AI request failed",
			wantDetail: "AI service error (ollama): timed out",
		},
		{
			name:       "wrapped upstream",
			err:        fmt.Errorf("dispatch: %w", &api.UpstreamError{Provider: api.OpenAI, ProviderMessage: "x"}),
			wantStatus: http.StatusBadGateway,
			wantError:  "AI request failed",
			wantDetail: "AI service error (openai): x",
		},
		{
			name:       "no request file",
			err:        mailbox.ErrNoRequest,
			wantStatus: http.StatusNotFound,
			wantError:  "No request file found",
		},
		{
			name:       "mailbox io",
			err:        &mailbox.IOError{Op: "write", Path: "/tmp/x", Err: errors.New("disk full")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "File-based request failed",
			wantDetail: (&mailbox.IOError{Op: "write", Path: "/tmp/x", Err: errors.New("disk full")}).Error(),
		},
		{
			name:       "unknown",
			err:        errors.New("secret internal detail"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Translate(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantDetail, body.Details)
		})
	}
}

func newEngine(logger *zap.Logger, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(ErrorHandler(logger))
	r.GET("/", handler)
	return r
}

func TestErrorHandler_RateLimitSetsRetryAfter(t *testing.T) {
	r := newEngine(zap.NewNop(), func(c *gin.Context) {
		_ = c.Error(&api.RateLimitExceededError{Provider: api.Claude, Limit: 1, Window: 1500 * time.Millisecond})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded","details":"claude allows 1 requests per 1.5s"}`, w.Body.String())
}

func TestErrorHandler_LogsServerErrorsOnly(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	client := newEngine(logger, func(c *gin.Context) {
		_ = c.Error(&api.ValidationError{Message: "Prompt is required"})
	})
	client.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Zero(t, logs.Len())

	server := newEngine(logger, func(c *gin.Context) {
		_ = c.Error(errors.New("kaboom"))
	})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Request failed", logs.All()[0].Message)
}

func TestErrorHandler_LeavesWrittenResponses(t *testing.T) {
	r := newEngine(zap.NewNop(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	var seen string
	r := newEngine(zap.NewNop(), func(c *gin.Context) {
		seen, _ = api.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})
}

func TestIngressLimiter_PerClient(t *testing.T) {
	limiter := NewIngressLimiter(0.001, 1, zap.NewNop())
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	denied := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "1", denied.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestIngressLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewIngressLimiter(1, 1, zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.tracked())

	// only 10.0.0.2 stays active
	now = now.Add(clientIdleTTL)
	assert.True(t, limiter.allow("10.0.0.2"))
	now = now.Add(sweepEvery)
	assert.True(t, limiter.allow("10.0.0.2"))

	assert.Equal(t, 1, limiter.tracked())
}
