// Package middleware provides composable middleware for coordinator
// operations. Middleware wraps operation calls synchronously and can
// modify execution (recover from panics, log, add tracing, etc.).
package middleware

import (
	"context"
)

// Op describes the coordinator operation being executed. Fields are
// populated where they apply: a workflow creation has no task, an agent
// registration has neither workflow nor task.
type Op struct {
	// Name identifies the operation, e.g. "workflow.create" or
	// "task.transition".
	Name string

	WorkflowID string
	TaskID     string
	Agent      string
}

// Handler is the terminal function that executes the operation.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the operation being executed, and
// the next handler to call. Middleware MUST call next to continue the
// chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, op *Op, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}
