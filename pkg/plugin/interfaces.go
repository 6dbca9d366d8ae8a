// Package plugin provides the plugin interface and registry for the bridge.
// Device plugins register themselves from init() and are instantiated by
// cmd with a shared Context.
package plugin

// Plugin is the interface every device plugin implements
type Plugin interface {
	// Name returns the unique identifier for this plugin
	Name() string

	// Start begins polling; it must not fail because the device is
	// unreachable, only because the plugin is misconfigured
	Start() error

	// Stop halts background work and waits for it to exit
	Stop()
}

// Factory creates a new plugin instance from a context
type Factory func(ctx *Context) (Plugin, error)
