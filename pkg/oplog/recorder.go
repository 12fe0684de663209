package oplog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/metrics"
)

const tracerName = "github.com/fincore/gateway/pkg/oplog"

// Recorder writes operation log entries to a Store and mirrors them to zap,
// Prometheus and the active trace.
type Recorder struct {
	store  Store
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the zap logger used to mirror entries.
func WithLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder creates a recorder writing to store. A nil store means an
// in-memory store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Recorder{
		store:  store,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the backing store.
func (r *Recorder) Store() Store {
	return r.store
}

// Start begins timing an operation. The returned Operation must be finished
// with exactly one of Succeed, Warn or Fail; later calls are ignored.
func (r *Recorder) Start(ctx context.Context, connector, operation string) *Operation {
	ctx, span := r.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("gateway.connector", connector),
		attribute.String("gateway.operation", operation),
	))
	return &Operation{
		recorder:  r,
		ctx:       ctx,
		span:      span,
		connector: connector,
		operation: operation,
		start:     r.now(),
	}
}

// Operation is an in-flight operation awaiting its single log entry.
type Operation struct {
	recorder  *Recorder
	ctx       context.Context
	span      trace.Span
	connector string
	operation string
	start     time.Time
	request   any
	response  any
	done      bool
}

// Context returns the context carrying the operation span.
func (o *Operation) Context() context.Context {
	return o.ctx
}

// Request attaches a request snapshot.
func (o *Operation) Request(v any) *Operation {
	o.request = v
	return o
}

// Response attaches a response snapshot.
func (o *Operation) Response(v any) *Operation {
	o.response = v
	return o
}

// Succeed writes a success entry.
func (o *Operation) Succeed(details string) Entry {
	return o.finish(StatusSuccess, details, nil)
}

// Warn writes a warning entry.
func (o *Operation) Warn(details string) Entry {
	return o.finish(StatusWarning, details, nil)
}

// Fail writes an error entry. details defaults to the error message.
func (o *Operation) Fail(err error, details string) Entry {
	if details == "" && err != nil {
		details = errors.Message(err)
	}
	return o.finish(StatusError, details, err)
}

func (o *Operation) finish(status Status, details string, err error) Entry {
	if o.done {
		return Entry{}
	}
	o.done = true
	r := o.recorder

	now := r.now()
	e := Entry{
		ID:            uuid.NewString(),
		Connector:     o.connector,
		Operation:     o.operation,
		Status:        status,
		Details:       details,
		RequestData:   o.request,
		ResponseData:  o.response,
		ExecutionTime: now.Sub(o.start),
		CreatedAt:     r.stamp(o.connector, now),
	}
	if e.ExecutionTime < 0 {
		e.ExecutionTime = 0
	}
	if err != nil {
		e.ErrorMessage = errors.Message(err)
	}

	if storeErr := r.store.Append(o.ctx, e); storeErr != nil {
		r.log().Error("failed to persist operation log entry",
			zap.String("connector", e.Connector),
			zap.String("operation", e.Operation),
			zap.Error(storeErr))
	}

	r.mirror(e)
	metrics.RecordOperation(e.Connector, e.Operation, string(e.Status), e.ExecutionTime)

	o.span.SetAttributes(attribute.String("gateway.status", string(status)))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, e.ErrorMessage)
	}
	o.span.End()

	return e
}

// stamp keeps per-connector timestamps non-decreasing.
func (r *Recorder) stamp(connector string, now time.Time) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.last[connector]; ok && now.Before(last) {
		now = last
	}
	r.last[connector] = now
	return now
}

func (r *Recorder) log() *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logger.Get()
}

func (r *Recorder) mirror(e Entry) {
	fields := []zap.Field{
		zap.String("connector", e.Connector),
		zap.String("operation", e.Operation),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.ExecutionTime),
	}
	if e.Details != "" {
		fields = append(fields, zap.String("details", e.Details))
	}
	if e.ErrorMessage != "" {
		fields = append(fields, zap.String("error", e.ErrorMessage))
	}

	switch e.Status {
	case StatusError:
		r.log().Error(e.Operation, fields...)
	case StatusWarning:
		r.log().Warn(e.Operation, fields...)
	default:
		r.log().Info(e.Operation, fields...)
	}
}
