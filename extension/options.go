package extension

import (
	"log/slog"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/ext"
	mw "github.com/xraph/handoff/middleware"
	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/store"
)

// ExtOption configures the Handoff Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend via a coordinator option.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.coordOpts = append(e.coordOpts, coordinator.WithStore(s))
	}
}

// WithCoordinatorConfig sets the core coordinator configuration.
func WithCoordinatorConfig(cfg handoff.Config) ExtOption {
	return func(e *Extension) {
		e.config.Handoff = cfg
		e.coordOpts = append(e.coordOpts, coordinator.WithConfig(cfg))
	}
}

// WithExtension registers a handoff extension (lifecycle hooks).
func WithExtension(x ext.Extension) ExtOption {
	return func(e *Extension) {
		e.exts = append(e.exts, x)
	}
}

// WithMiddleware adds operation middleware to the coordinator.
func WithMiddleware(m mw.Middleware) ExtOption {
	return func(e *Extension) {
		e.mws = append(e.mws, m)
	}
}

// WithBasePath sets the URL prefix for all handoff routes.
func WithBasePath(path string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = path
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithPush enables the push protocol server with the given push options.
func WithPush(opts ...push.Option) ExtOption {
	return func(e *Extension) {
		e.enablePush = true
		e.pushOpts = append(e.pushOpts, opts...)
	}
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) ExtOption {
	return func(e *Extension) {
		e.config.RequireConfig = require
	}
}

// WithLogger sets the structured logger for the coordinator.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI
// container. The extension constructs a sqlite-backed store from the
// resolved database. Pass an empty string to use the default (unnamed)
// grove.DB.
func WithGroveDatabase(name string) ExtOption {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
