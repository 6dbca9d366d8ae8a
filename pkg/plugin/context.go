package plugin

import (
	"net/http"

	"briskwater/internal/clock"
	"briskwater/internal/config"
	"briskwater/internal/ha"

	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization
type Context struct {
	// Device is the validated device configuration
	Device *config.DeviceConfig

	// Publisher mirrors entity values into Home Assistant; nil disables it
	Publisher ha.Publisher

	// HTTPClient is used for vendor requests; nil means a default client
	HTTPClient *http.Client

	// Clock drives poll intervals; nil means the real clock
	Clock clock.Clock

	// Logger is a structured logger. Plugins should use logger.Named().
	Logger *zap.Logger

	// ReadOnly disables valve commands and Home Assistant writes
	ReadOnly bool
}

// NewContext creates a new plugin context
func NewContext(device *config.DeviceConfig, publisher ha.Publisher, logger *zap.Logger, readOnly bool) *Context {
	return &Context{
		Device:    device,
		Publisher: publisher,
		Logger:    logger,
		ReadOnly:  readOnly,
	}
}
