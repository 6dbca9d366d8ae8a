package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"briskwater/internal/api"
	"briskwater/internal/config"
	"briskwater/internal/ha"
	"briskwater/pkg/plugin"

	// Registers the brisk_water plugin
	_ "briskwater/internal/plugins/water"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	config.LoadDotEnv(logger)

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "./configs"
	}
	readOnly := os.Getenv("READ_ONLY") == "true"

	apiPort := 8081
	if v := os.Getenv("API_PORT"); v != "" {
		apiPort, err = strconv.Atoi(v)
		if err != nil {
			logger.Fatal("Invalid API_PORT", zap.String("value", v), zap.Error(err))
		}
	}

	loader := config.NewLoader(configDir, logger)
	if err := loader.LoadAll(); err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	device := loader.GetDeviceConfig()

	logger.Info("Starting Brisk Water bridge",
		zap.String("device_id", device.DeviceID),
		zap.String("base_url", device.BaseURL),
		zap.Bool("read_only", readOnly))

	pluginCtx := plugin.NewContext(device, nil, logger, readOnly)

	// Home Assistant mirroring is optional
	haURL := os.Getenv("HA_URL")
	haToken := os.Getenv("HA_TOKEN")
	if haURL != "" && haToken != "" {
		haClient := ha.NewClient(haURL, haToken, logger)
		if err := haClient.Connect(); err != nil {
			logger.Warn("Failed to connect to Home Assistant, will retry on next poll", zap.Error(err))
		}
		defer haClient.Disconnect()
		pluginCtx.Publisher = haClient
	} else {
		logger.Info("HA_URL/HA_TOKEN not set, Home Assistant mirroring disabled")
	}

	plugins, err := plugin.CreateAll(pluginCtx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}

	var apiDevice api.Device
	for _, p := range plugins {
		if err := p.Start(); err != nil {
			logger.Fatal("Failed to start plugin", zap.String("plugin", p.Name()), zap.Error(err))
		}
		defer p.Stop()

		if d, ok := p.(api.Device); ok && apiDevice == nil {
			apiDevice = d
		}
	}

	if apiDevice == nil {
		logger.Fatal("No device plugin registered")
	}

	server := api.NewServer(apiDevice, logger, apiPort)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}
	defer server.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")
}
