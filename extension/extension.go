// Package extension provides the Forge extension adapter for Handoff.
//
// It implements the forge.Extension interface to integrate Handoff
// into a Forge application with automatic dependency discovery,
// route registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.handoff" or "handoff" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/handoff/api"
	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/ext"
	mw "github.com/xraph/handoff/middleware"
	"github.com/xraph/handoff/observability"
	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/store"
	sqlitestore "github.com/xraph/handoff/store/sqlite"
	"github.com/xraph/handoff/stream"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "handoff"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Durable multi-agent workflow coordination with dependency gating and handoff events"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Handoff as a Forge extension. It implements the
// forge.Extension interface so Handoff can be mounted into any Forge app.
type Extension struct {
	*forge.BaseExtension

	config     Config
	coord      *coordinator.Coordinator
	broker     *stream.Broker
	apiHandler *api.API
	pushServer *push.Server
	logger     *slog.Logger
	coordOpts  []coordinator.Option
	exts       []ext.Extension
	mws        []mw.Middleware
	pushOpts   []push.Option
	useGrove   bool
	enablePush bool
}

// New creates a Handoff Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Coordinator returns the underlying coordinator.
// This is nil until Register is called.
func (e *Extension) Coordinator() *coordinator.Coordinator { return e.coord }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// PushServer returns the push protocol server, or nil if push is not enabled.
func (e *Extension) PushServer() *push.Server { return e.pushServer }

// Broker returns the stream broker, or nil if push is not enabled.
func (e *Extension) Broker() *stream.Broker { return e.broker }

// Register implements [forge.Extension]. It initializes the coordinator
// and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the coordinator in the DI container so other extensions can use it.
	if err := vessel.Provide(fapp.Container(), func() (*coordinator.Coordinator, error) {
		return e.coord, nil
	}); err != nil {
		return fmt.Errorf("handoff: register coordinator in container: %w", err)
	}

	return nil
}

// init builds the coordinator and its route handlers.
func (e *Extension) init(fapp forge.App) error {
	// Resolve grove database store if configured.
	if e.useGrove {
		groveDB, err := e.resolveGroveDB(fapp)
		if err != nil {
			return fmt.Errorf("handoff: %w", err)
		}
		s, err := e.buildStoreFromGroveDB(groveDB)
		if err != nil {
			return err
		}
		e.coordOpts = append(e.coordOpts, coordinator.WithStore(s))
	}

	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Stream broker feeds the push server; only built when push is enabled.
	if e.enablePush || e.config.EnablePush {
		e.broker = stream.NewBroker(logger)
	}

	// Build coordinator options.
	opts := make([]coordinator.Option, 0, len(e.coordOpts)+len(e.exts)+len(e.mws)+3)
	opts = append(opts, e.coordOpts...)
	opts = append(opts, coordinator.WithLogger(logger))
	opts = append(opts, coordinator.WithExtension(
		observability.NewMetricsExtensionWithFactory(fapp.Metrics()),
	))
	if e.broker != nil {
		opts = append(opts, coordinator.WithExtension(e.broker))
	}
	for _, x := range e.exts {
		opts = append(opts, coordinator.WithExtension(x))
	}
	for _, m := range e.mws {
		opts = append(opts, coordinator.WithMiddleware(m))
	}

	coord, err := coordinator.New(opts...)
	if err != nil {
		return fmt.Errorf("handoff: create coordinator: %w", err)
	}
	e.coord = coord

	// Create the API handler.
	e.apiHandler = api.New(e.coord, fapp.Router())

	// Register HTTP routes unless disabled.
	if !e.config.DisableRoutes {
		e.apiHandler.RegisterRoutes(fapp.Router())
	}

	// Create the push server if the broker is available.
	if e.broker != nil {
		pushOptList := make([]push.Option, 0, len(e.pushOpts)+2)
		pushOptList = append(pushOptList, push.WithLogger(logger))
		if e.config.PushBasePath != "" {
			pushOptList = append(pushOptList, push.WithPath(e.config.PushBasePath))
		}
		pushOptList = append(pushOptList, e.pushOpts...)

		handler := push.NewHandler(e.coord, e.broker, logger)
		e.pushServer = push.NewServer(e.coord, e.broker, handler, pushOptList...)

		if !e.config.DisableRoutes {
			e.pushServer.RegisterRoutes(fapp.Router())
		}
	}

	return nil
}

// Start initializes the coordinator and runs auto-migration if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.coord == nil {
		return errors.New("handoff: extension not initialized")
	}

	// Run migrations unless disabled.
	if !e.config.DisableMigrate {
		if s := e.coord.Store(); s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("handoff: migration failed: %w", err)
			}
		}
	}

	if err := e.coord.Initialize(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop gracefully shuts down the coordinator.
func (e *Extension) Stop(ctx context.Context) error {
	if e.coord == nil {
		e.MarkStopped()
		return nil
	}
	err := e.coord.Shutdown(ctx)
	e.MarkStopped()
	return err
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.coord == nil {
		return errors.New("handoff: extension not initialized")
	}

	s := e.coord.Store()
	if s == nil {
		return errors.New("handoff: no store configured")
	}

	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
// Convenience for standalone use outside Forge.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all handoff API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) {
	if e.apiHandler != nil {
		e.apiHandler.RegisterRoutes(router)
	}
	if e.pushServer != nil {
		e.pushServer.RegisterRoutes(router)
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("handoff: configuration is required but not found in config files; " +
				"ensure 'extensions.handoff' or 'handoff' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	// Enable grove resolution if YAML config specifies grove settings.
	if e.config.GroveDatabase != "" {
		e.useGrove = true
	}

	e.Logger().Debug("handoff: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("enable_push", e.config.EnablePush),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.handoff" first (namespaced pattern).
	if cm.IsSet("extensions.handoff") {
		if err := cm.Bind("extensions.handoff", &cfg); err == nil {
			e.Logger().Debug("handoff: loaded config from file",
				forge.F("key", "extensions.handoff"),
			)
			return cfg, true
		}
		e.Logger().Warn("handoff: failed to bind extensions.handoff config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "handoff" key.
	if cm.IsSet("handoff") {
		if err := cm.Bind("handoff", &cfg); err == nil {
			e.Logger().Debug("handoff: loaded config from file",
				forge.F("key", "handoff"),
			)
			return cfg, true
		}
		e.Logger().Warn("handoff: failed to bind handoff config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Handoff == (Config{}).Handoff {
		cfg.Handoff = defaults.Handoff
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnablePush {
		yamlConfig.EnablePush = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}
	if yamlConfig.PushBasePath == "" && programmaticConfig.PushBasePath != "" {
		yamlConfig.PushBasePath = programmaticConfig.PushBasePath
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}

// resolveGroveDB resolves a *grove.DB from the DI container.
// If GroveDatabase is set, it looks up the named DB; otherwise it uses the default.
func (e *Extension) resolveGroveDB(fapp forge.App) (*grove.DB, error) {
	if e.config.GroveDatabase != "" {
		db, err := vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
		if err != nil {
			return nil, fmt.Errorf("grove database %q not found in container: %w", e.config.GroveDatabase, err)
		}
		return db, nil
	}
	db, err := vessel.Inject[*grove.DB](fapp.Container())
	if err != nil {
		return nil, fmt.Errorf("default grove database not found in container: %w", err)
	}
	return db, nil
}

// buildStoreFromGroveDB constructs a store backend from a grove database.
// Only the sqlite driver is supported; the postgres, bun, and redis
// backends connect directly and are wired via WithStore instead.
func (e *Extension) buildStoreFromGroveDB(db *grove.DB) (store.Store, error) {
	driverName := db.Driver().Name()
	switch driverName {
	case "sqlite":
		return sqlitestore.New(db), nil
	default:
		return nil, fmt.Errorf("handoff: unsupported grove driver %q; use WithStore for this backend", driverName)
	}
}
