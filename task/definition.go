package task

import "context"

// Definition is a typed task definition with a handler function.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the unique identifier for this task type.
	Name string

	// Handler processes the payload and reports what the envelope
	// should do next.
	Handler func(ctx context.Context, payload T) Outcome

	// Opts configures the attempt budget, queue, and timeout.
	Opts Options
}

// NewDefinition creates a typed task definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) Outcome, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
