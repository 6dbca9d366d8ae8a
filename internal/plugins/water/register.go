package water

import (
	"fmt"

	"briskwater/internal/brisk"
	"briskwater/pkg/plugin"
)

// PluginName is the registry name of the water plugin
const PluginName = "brisk_water"

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        PluginName,
		Description: "Brisk Water device - temperature, usage and flow sensors plus valve switch",
		Priority:    plugin.PriorityDefault,
		Factory:     createPlugin,
	})
}

// createPlugin creates a new water plugin instance from the plugin context
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	if ctx.Device == nil {
		return nil, fmt.Errorf("water plugin requires a device config")
	}
	if err := ctx.Device.Validate(); err != nil {
		return nil, err
	}

	opts := []brisk.Option{
		brisk.WithBaseURL(ctx.Device.BaseURL),
		brisk.WithLogger(ctx.Logger.Named("brisk")),
	}
	if ctx.HTTPClient != nil {
		opts = append(opts, brisk.WithHTTPClient(ctx.HTTPClient))
	}
	client := brisk.NewClient(ctx.Device.Identity(), opts...)

	manager := NewManager(client, ctx.Publisher, ctx.Clock, ctx.Logger, Options{
		PollInterval:   ctx.Device.PollInterval,
		RequestTimeout: ctx.Device.RequestTimeout,
		EntityPrefix:   ctx.Device.EntityPrefix,
		ReadOnly:       ctx.ReadOnly,
	})
	return &pluginAdapter{Manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement plugin.Plugin. The embedded
// Manager also exposes Status and SetValve to the API server.
type pluginAdapter struct {
	*Manager
}

func (p *pluginAdapter) Name() string {
	return PluginName
}
