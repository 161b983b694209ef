package command

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// Request is a command or query value routed by the dispatcher.
type Request interface{}

// HandlerFunc handles exactly one concrete request type.
type HandlerFunc func(ctx context.Context, req Request) (interface{}, error)

// Dispatcher routes a request value to the single handler registered for its
// concrete type. Registration problems are programming errors and fail
// loudly; they are never surfaced as user-facing conditions.
type Dispatcher struct {
	handlers map[reflect.Type]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[reflect.Type]HandlerFunc)}
}

// Register binds a handler to the concrete type of req. Registering the same
// request type twice is an error.
func (d *Dispatcher) Register(req Request, fn HandlerFunc) error {
	t := reflect.TypeOf(req)
	if t == nil {
		return fmt.Errorf("cannot register handler for nil request")
	}
	if _, exists := d.handlers[t]; exists {
		return fmt.Errorf("handler already registered for %s", t)
	}
	d.handlers[t] = fn
	return nil
}

// MustRegister is Register that panics on error; for use during startup
// wiring where a failure is unrecoverable.
func (d *Dispatcher) MustRegister(req Request, fn HandlerFunc) {
	if err := d.Register(req, fn); err != nil {
		panic(err)
	}
}

// Send routes the request to its handler. A missing handler is a programming
// error, not an expected failure.
func (d *Dispatcher) Send(ctx context.Context, req Request) (interface{}, error) {
	t := reflect.TypeOf(req)
	fn, ok := d.handlers[t]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %s", t)
	}
	return fn(ctx, req)
}

// RegisteredTypes lists the request type names with a handler, sorted. Used
// by startup checks and tests.
func (d *Dispatcher) RegisteredTypes() []string {
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t.String())
	}
	sort.Strings(types)
	return types
}

// Send dispatches req and asserts the result to T.
func Send[T any](ctx context.Context, d *Dispatcher, req Request) (T, error) {
	var zero T
	res, err := d.Send(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("handler for %T returned %T, want %T", req, res, zero)
	}
	return typed, nil
}
