package custom

import (
	"context"
	"reflect"
	"sync"

	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/errors"
)

// Result is a core.Result that also carries the value returned by a plugin
// method or event handler.
type Result struct {
	core.Result
	Value any `json:"result,omitempty"`
}

// Event names an event whose payload has type T.
type Event[T any] struct {
	name string
}

// NewEvent declares an event.
func NewEvent[T any](name string) Event[T] { return Event[T]{name: name} }

// Name returns the event name.
func (e Event[T]) Name() string { return e.name }

// Handler handles one event payload.
type Handler[T any] func(ctx context.Context, payload T) (any, error)

type eventKey struct {
	name    string
	payload reflect.Type
}

type recordFunc func(ctx context.Context, operation string, request any, fn func(ctx context.Context) (string, map[string]any, error)) core.Result

// Events holds handlers keyed by event name and payload type. Registering
// the same event twice replaces the handler.
type Events struct {
	mu       sync.RWMutex
	handlers map[eventKey]any
	record   recordFunc
}

func newEvents(record recordFunc) *Events {
	return &Events{handlers: make(map[eventKey]any), record: record}
}

func keyOf[T any](ev Event[T]) eventKey {
	return eventKey{name: ev.name, payload: reflect.TypeOf((*T)(nil)).Elem()}
}

// On registers h for ev.
func On[T any](events *Events, ev Event[T], h Handler[T]) core.Result {
	return events.record(context.Background(), OpRegisterHandler, map[string]any{"event": ev.name},
		func(context.Context) (string, map[string]any, error) {
			if h == nil {
				return "", nil, errors.New(errors.ErrorTypeValidation, "handler for event "+ev.name+" is nil")
			}
			events.mu.Lock()
			events.handlers[keyOf(ev)] = h
			events.mu.Unlock()
			return "Registered handler for event: " + ev.name, nil, nil
		})
}

// Trigger runs the handler registered for ev with payload.
func Trigger[T any](ctx context.Context, events *Events, ev Event[T], payload T) Result {
	res := events.record(ctx, OpTriggerEvent, map[string]any{"event": ev.name},
		func(ctx context.Context) (string, map[string]any, error) {
			events.mu.RLock()
			h, ok := events.handlers[keyOf(ev)].(Handler[T])
			events.mu.RUnlock()
			if !ok {
				return "", nil, errors.New(errors.ErrorTypeNotFound, "No handler registered for event: "+ev.name)
			}

			out, err := h(ctx, payload)
			if err != nil {
				return "", nil, errors.Ensure(err, errors.ErrorTypeInternal, "Event trigger failed")
			}
			return "Event " + ev.name + " triggered successfully", map[string]any{"result": out}, nil
		})
	return Result{Result: res, Value: res.Details["result"]}
}
