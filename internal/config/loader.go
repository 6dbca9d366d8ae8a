package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"briskwater/internal/brisk"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileName is the device config file looked up in the config directory
const FileName = "brisk_config.yaml"

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultEntityPrefix   = "brisk_water"
)

// ErrInvalidDeviceID is returned when no usable device id is configured
var ErrInvalidDeviceID = errors.New("invalid device id: must not be empty")

// DeviceConfig represents the brisk_config.yaml structure
type DeviceConfig struct {
	// DeviceID is the device MAC address as shown in the vendor app.
	// It is sent to the vendor verbatim.
	DeviceID       string        `yaml:"device_id"`
	DeviceModel    string        `yaml:"device_model"`
	BaseURL        string        `yaml:"base_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	EntityPrefix   string        `yaml:"entity_prefix"`
}

// Identity returns the vendor identity for this device
func (c *DeviceConfig) Identity() brisk.Identity {
	return brisk.NewIdentity(c.DeviceID, c.DeviceModel)
}

// Validate rejects an empty device id and fills defaults for everything else
func (c *DeviceConfig) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return ErrInvalidDeviceID
	}
	if c.DeviceModel == "" {
		c.DeviceModel = brisk.DefaultDeviceModel
	}
	if c.BaseURL == "" {
		c.BaseURL = brisk.DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.EntityPrefix == "" {
		c.EntityPrefix = DefaultEntityPrefix
	}
	return nil
}

// Loader reads the device configuration from the config directory and the environment
type Loader struct {
	configDir string
	logger    *zap.Logger
	device    *DeviceConfig
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// LoadAll loads the config file (if present), applies environment
// overrides, and validates the result
func (l *Loader) LoadAll() error {
	l.logger.Info("Loading configuration", zap.String("dir", l.configDir))

	cfg, err := l.LoadDeviceConfig()
	if err != nil {
		return fmt.Errorf("failed to load device config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	l.device = cfg
	l.logger.Info("Device config loaded",
		zap.String("device_id", cfg.DeviceID),
		zap.String("device_model", cfg.DeviceModel),
		zap.Duration("poll_interval", cfg.PollInterval))
	return nil
}

// LoadDeviceConfig reads brisk_config.yaml. A missing file is not an
// error; the environment may carry everything.
func (l *Loader) LoadDeviceConfig() (*DeviceConfig, error) {
	path := filepath.Join(l.configDir, FileName)
	l.logger.Debug("Loading device config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("No device config file found, using environment only", zap.String("path", path))
		return &DeviceConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device config: %w", err)
	}

	var cfg DeviceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse device config: %w", err)
	}

	return &cfg, nil
}

// GetDeviceConfig returns the loaded device configuration
func (l *Loader) GetDeviceConfig() *DeviceConfig {
	return l.device
}

// LoadDotEnv loads a .env file into the process environment if one exists
func LoadDotEnv(logger *zap.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}
}

func applyEnv(cfg *DeviceConfig) error {
	if v := os.Getenv("BRISK_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv("BRISK_DEVICE_MODEL"); v != "" {
		cfg.DeviceModel = v
	}
	if v := os.Getenv("BRISK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("BRISK_ENTITY_PREFIX"); v != "" {
		cfg.EntityPrefix = v
	}
	if v := os.Getenv("BRISK_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BRISK_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := os.Getenv("BRISK_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BRISK_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}
