package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/model-bridge/internal/httpclient"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/internal/metrics"
	"github.com/nulzo/model-bridge/internal/platform/otel"
	"github.com/nulzo/model-bridge/internal/ratelimit"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultTimeout = 60 * time.Second

// Dispatcher is the single entry point both intake channels call.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *api.GenerationRequest) (*api.GenerationResult, error)
}

type Service struct {
	registry       *llm.Registry
	limiter        ratelimit.Limiter
	client         httpclient.HTTPClient
	logger         *zap.Logger
	metrics        metrics.Recorder
	tracer         trace.Tracer
	now            func() time.Time
	defaultTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithHTTPClient(c httpclient.HTTPClient) Option {
	return func(s *Service) { s.client = c }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithDefaultTimeout sets the upstream timeout used when neither the request nor the provider sets one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

func NewService(registry *llm.Registry, limiter ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		limiter:  limiter,
		// per-call deadlines come from the context
		client:         &http.Client{},
		logger:         logger,
		metrics:        metrics.Nop{},
		tracer:         otel.Tracer(),
		now:            time.Now,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch validates, admits, calls the provider once and normalizes the answer.
// Unknown providers are rejected before the limiter or the network is touched.
func (s *Service) Dispatch(ctx context.Context, req *api.GenerationRequest) (*api.GenerationResult, error) {
	start := s.now()
	provider := string(req.Service)

	ctx, span := s.tracer.Start(ctx, "broker.Dispatch", trace.WithAttributes(
		attribute.String("bridge.provider", provider),
	))
	defer span.End()

	result, outcome, err := s.dispatch(ctx, req, start)

	s.metrics.ObserveDispatch(provider, outcome, s.now().Sub(start))
	span.SetAttributes(attribute.String("bridge.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return result, err
}

func (s *Service) dispatch(ctx context.Context, req *api.GenerationRequest, now time.Time) (*api.GenerationResult, string, error) {
	if err := req.Validate(); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}

	entry, err := s.registry.Lookup(req.Service)
	if err != nil {
		return nil, metrics.OutcomeInvalid, err
	}

	if err := req.CheckTemperature(entry.MaxTemperature); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}

	ok, err := s.limiter.Admit(ctx, entry.ID, now)
	if err != nil {
		return nil, metrics.OutcomeInternal, fmt.Errorf("admission check failed: %w", err)
	}
	if !ok {
		limit, _ := s.limiter.Limit(entry.ID)
		s.logger.Warn("Rate limit exceeded",
			zap.String("provider", string(entry.ID)),
			zap.Int("limit", limit.Requests),
			zap.Duration("window", limit.Window),
		)
		return nil, metrics.OutcomeRateLimited, &api.RateLimitExceededError{
			Provider: entry.ID,
			Limit:    limit.Requests,
			Window:   limit.Window,
		}
	}

	model := entry.ResolveModel(req.Model)
	payload, err := entry.Build(req.Prompt, model, req.Settings)
	if err != nil {
		return nil, metrics.OutcomeInternal, fmt.Errorf("build %s payload: %w", entry.ID, err)
	}

	timeout := s.timeoutFor(entry, req.Settings)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Processing AI request",
		zap.String("provider", string(entry.ID)),
		zap.String("model", model),
		zap.Duration("timeout", timeout),
	)

	raw, err := httpclient.SendRequest(callCtx, s.client, http.MethodPost, entry.URL(model), entry.Headers, payload)
	if err != nil {
		upErr := s.upstreamError(entry, timeout, err)
		s.logger.Error("AI service error",
			zap.String("provider", string(entry.ID)),
			zap.Int("status", upErr.StatusCode),
			zap.Error(err),
		)
		if upErr.Timeout {
			return nil, metrics.OutcomeTimeout, upErr
		}
		return nil, metrics.OutcomeUpstream, upErr
	}

	text, err := entry.Extract(raw)
	if err != nil {
		s.logger.Error("Unparseable provider response",
			zap.String("provider", string(entry.ID)),
			zap.Error(err),
		)
		return nil, metrics.OutcomeUpstream, &api.UpstreamError{
			Provider:        entry.ID,
			ProviderMessage: "invalid response: " + err.Error(),
			Err:             err,
		}
	}

	requestID, ok := api.RequestIDFrom(ctx)
	if !ok {
		requestID = uuid.NewString()
	}

	return &api.GenerationResult{
		Text:      text,
		Provider:  entry.ID,
		Model:     model,
		RequestID: requestID,
		Timestamp: s.now().UTC(),
	}, metrics.OutcomeSuccess, nil
}

func (s *Service) timeoutFor(entry *llm.Entry, settings *api.Settings) time.Duration {
	if ms := settings.TimeoutMS(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if entry.Timeout > 0 {
		return entry.Timeout
	}
	return s.defaultTimeout
}

func (s *Service) upstreamError(entry *llm.Entry, timeout time.Duration, err error) *api.UpstreamError {
	var httpErr *httpclient.UpstreamError
	switch {
	case errors.As(err, &httpErr):
		return &api.UpstreamError{
			Provider:        entry.ID,
			StatusCode:      httpErr.StatusCode,
			ProviderMessage: entry.Message(httpErr.Body),
			Err:             err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &api.UpstreamError{
			Provider:        entry.ID,
			ProviderMessage: fmt.Sprintf("no response within %s", timeout),
			Timeout:         true,
			Err:             err,
		}
	case errors.Is(err, context.Canceled):
		return &api.UpstreamError{
			Provider:        entry.ID,
			ProviderMessage: "request canceled",
			Err:             err,
		}
	default:
		return &api.UpstreamError{
			Provider:        entry.ID,
			ProviderMessage: err.Error(),
			Err:             err,
		}
	}
}
