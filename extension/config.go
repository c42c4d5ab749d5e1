package extension

import "github.com/xraph/handoff"

// Config holds configuration for the Handoff Forge extension.
type Config struct {
	// BasePath is the URL prefix for all handoff API routes.
	BasePath string `default:"/api/handoff" json:"base_path"`

	// PushBasePath is the URL prefix for the push protocol routes.
	// Empty means the push server default ("/push").
	PushBasePath string `json:"push_base_path"`

	// DisableRoutes disables the registration of HTTP routes.
	// Useful when embedding Handoff for in-process coordination only.
	DisableRoutes bool `default:"false" json:"disable_routes"`

	// DisableMigrate disables auto-migration on start.
	DisableMigrate bool `default:"false" json:"disable_migrate"`

	// EnablePush enables the push protocol server and stream broker.
	EnablePush bool `default:"false" json:"enable_push"`

	// RequireConfig requires config to be present in YAML files.
	RequireConfig bool `default:"false" json:"require_config"`

	// GroveDatabase is the name of the grove.DB to resolve from the DI
	// container. Empty uses the default (unnamed) grove.DB.
	GroveDatabase string `json:"grove_database"`

	// Handoff holds the core coordinator configuration.
	Handoff handoff.Config `json:"handoff"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		BasePath: "/api/handoff",
		Handoff:  handoff.DefaultConfig(),
	}
}
