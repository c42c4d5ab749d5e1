package coordinator

import (
	"log/slog"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/ext"
	mw "github.com/xraph/handoff/middleware"
	"github.com/xraph/handoff/store"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore sets the persistence backend. Required.
func WithStore(s store.Store) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithConfig overrides the coordinator configuration.
func WithConfig(cfg handoff.Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithExtension registers an extension with the coordinator.
func WithExtension(e ext.Extension) Option {
	return func(c *Coordinator) { c.pendingExts = append(c.pendingExts, e) }
}

// WithMiddleware appends middleware to the coordinator's chain, inside
// the default recover/tracing/metrics/logging stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(c *Coordinator) { c.extraMw = append(c.extraMw, m) }
}
