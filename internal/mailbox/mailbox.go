// Package mailbox implements the filesystem intake channel.
//
// The mailbox is a single slot: a producer drops ai_request.json into the directory and
// reads ai_response.json back. Each cycle reads the request, dispatches it, writes the
// response atomically and only then removes the request, so a crash mid-cycle leaves the
// request in place for recovery. Dispatch failures are reported in the response, never retried.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nulzo/model-bridge/internal/broker"
	"github.com/nulzo/model-bridge/internal/metrics"
	"github.com/nulzo/model-bridge/internal/platform/otel"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	RequestFile  = "ai_request.json"
	ResponseFile = "ai_response.json"
)

// ErrNoRequest is returned when a trigger finds the slot empty.
var ErrNoRequest = errors.New("no request file found")

// IOError is a filesystem failure of the mailbox itself.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("mailbox %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type State int32

const (
	Idle State = iota
	Detected
	Dispatching
	Responding
)

func (s State) String() string {
	switch s {
	case Detected:
		return "detected"
	case Dispatching:
		return "dispatching"
	case Responding:
		return "responding"
	default:
		return "idle"
	}
}

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerPoll     Trigger = "poll"
	TriggerEvent    Trigger = "event"
	TriggerRecovery Trigger = "recovery"
)

// Outcome is the result of a completed cycle. Err carries the dispatch error, if any;
// the response file has been written either way.
type Outcome struct {
	Response api.ResponseDescriptor
	Err      error
}

type Mailbox struct {
	dir          string
	requestPath  string
	responsePath string

	dispatcher broker.Dispatcher
	logger     *zap.Logger
	metrics    metrics.Recorder
	tracer     trace.Tracer
	now        func() time.Time

	slot  singleflight.Group
	state atomic.Int32
}

type Option func(*Mailbox)

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Mailbox) { m.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) { m.now = now }
}

// New creates the mailbox directory if needed.
func New(dir string, dispatcher broker.Dispatcher, logger *zap.Logger, opts ...Option) (*Mailbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	m := &Mailbox{
		dir:          dir,
		requestPath:  filepath.Join(dir, RequestFile),
		responsePath: filepath.Join(dir, ResponseFile),
		dispatcher:   dispatcher,
		logger:       logger.With(zap.String("component", "mailbox")),
		metrics:      metrics.Nop{},
		tracer:       otel.Tracer(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Mailbox) Dir() string          { return m.dir }
func (m *Mailbox) RequestPath() string  { return m.requestPath }
func (m *Mailbox) ResponsePath() string { return m.responsePath }

func (m *Mailbox) State() State { return State(m.state.Load()) }

func (m *Mailbox) setState(s State) { m.state.Store(int32(s)) }

// Process runs one cycle. Concurrent triggers join the cycle in flight instead of starting
// another. The cycle runs to completion even if ctx is canceled, so the slot is always released.
func (m *Mailbox) Process(ctx context.Context, trigger Trigger) (*Outcome, error) {
	v, err, shared := m.slot.Do(m.requestPath, func() (any, error) {
		return m.cycle(context.WithoutCancel(ctx), trigger)
	})
	if shared {
		m.logger.Debug("Joined in-flight mailbox cycle", zap.String("trigger", string(trigger)))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

// Recover processes a request left behind by a previous run. An empty slot is not an error.
func (m *Mailbox) Recover(ctx context.Context) error {
	_, err := m.Process(ctx, TriggerRecovery)
	if errors.Is(err, ErrNoRequest) {
		return nil
	}
	return err
}

// RecoverWhenReady waits for ready to close, then recovers. A request dropped before the
// watcher is in place then has no missed Create event. A nil ready recovers immediately.
func (m *Mailbox) RecoverWhenReady(ctx context.Context, ready <-chan struct{}) error {
	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return nil
		}
	}
	return m.Recover(ctx)
}

func (m *Mailbox) cycle(ctx context.Context, trigger Trigger) (*Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "mailbox.cycle", trace.WithAttributes(
		attribute.String("bridge.trigger", string(trigger)),
	))
	defer span.End()

	m.setState(Detected)
	defer m.setState(Idle)

	data, err := os.ReadFile(m.requestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRequest
	}
	if err != nil {
		ioErr := &IOError{Op: "read", Path: m.requestPath, Err: err}
		m.logger.Error("Failed to read request file", zap.Error(ioErr))
		m.metrics.ObserveMailboxCycle(string(trigger), false)
		span.RecordError(ioErr)

		m.setState(Responding)
		if err := m.writeResponse(m.failure(ioErr)); err != nil {
			m.logger.Error("Failed to write response file, request kept for recovery", zap.Error(err))
			return nil, ioErr
		}
		// an unreadable request is answered once, then consumed
		if err := os.Remove(m.requestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("Failed to remove unreadable request", zap.Error(err))
		}
		return nil, ioErr
	}

	m.logger.Info("New request file detected, processing...", zap.String("trigger", string(trigger)))

	var (
		result      *api.GenerationResult
		dispatchErr error
		req         api.GenerationRequest
	)
	if err := json.Unmarshal(data, &req); err != nil {
		dispatchErr = &api.ValidationError{Field: "body", Message: "Invalid request file: " + err.Error()}
	} else {
		m.setState(Dispatching)
		result, dispatchErr = m.dispatcher.Dispatch(ctx, &req)
	}

	m.setState(Responding)
	desc := api.ResponseDescriptor{Success: true, Timestamp: m.now().UTC()}
	if dispatchErr != nil {
		desc = m.failure(dispatchErr)
	} else {
		desc.Response = result.Text
	}

	if err := m.writeResponse(desc); err != nil {
		m.logger.Error("Failed to write response file, request kept for recovery", zap.Error(err))
		m.metrics.ObserveMailboxCycle(string(trigger), false)
		span.RecordError(err)
		return nil, err
	}

	if err := os.Remove(m.requestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("Failed to remove request file", zap.Error(err))
	}

	m.metrics.ObserveMailboxCycle(string(trigger), dispatchErr == nil)
	if dispatchErr != nil {
		m.logger.Error("File-based request processing failed", zap.Error(dispatchErr))
		span.RecordError(dispatchErr)
	} else {
		m.logger.Info("File-based request processed successfully",
			zap.String("provider", string(result.Provider)),
			zap.String("request_id", result.RequestID),
		)
	}

	return &Outcome{Response: desc, Err: dispatchErr}, nil
}

func (m *Mailbox) failure(err error) api.ResponseDescriptor {
	return api.ResponseDescriptor{Success: false, Error: err.Error(), Timestamp: m.now().UTC()}
}

func (m *Mailbox) writeResponse(desc api.ResponseDescriptor) error {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: m.responsePath, Err: err}
	}
	if err := writeFileAtomic(m.responsePath, data); err != nil {
		return &IOError{Op: "write", Path: m.responsePath, Err: err}
	}
	return nil
}
