package water

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"briskwater/internal/brisk"
	"briskwater/internal/clock"
	"briskwater/internal/ha"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReadOnly is returned for valve commands while running read-only
var ErrReadOnly = errors.New("read-only mode: valve commands are disabled")

// Status is the latest projected view of the device. Readings are cleared
// whenever a poll fails so a stale or fabricated value is never reported.
type Status struct {
	Available   bool
	Temperature brisk.Reading // kelvin
	FlowRate    brisk.Reading // L/h
	Usage       brisk.Reading // gallons
	Valve       brisk.Switch
	LastUpdated time.Time
	LastError   string
}

// Options tunes the poll loop
type Options struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	EntityPrefix   string
	ReadOnly       bool
}

// Manager polls one device and exposes its sensors and valve switch
type Manager struct {
	client    brisk.DeviceClient
	publisher ha.Publisher
	clock     clock.Clock
	logger    *zap.Logger
	opts      Options

	mu     sync.RWMutex
	status Status
	// valveSeq counts confirmed valve commands. A poll whose fetch began
	// before the latest confirmation keeps the confirmed valve state.
	valveSeq uint64

	// publishCh coalesces publish requests for publishLoop, the only
	// goroutine that talks to Home Assistant.
	publishCh chan struct{}

	stopChan    chan struct{}
	stoppedChan chan struct{}
	publishDone chan struct{}
}

// NewManager creates a new water manager. publisher may be nil, in which
// case nothing is mirrored into Home Assistant.
func NewManager(client brisk.DeviceClient, publisher ha.Publisher, clk clock.Clock, logger *zap.Logger, opts Options) *Manager {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Manager{
		client:      client,
		publisher:   publisher,
		clock:       clk,
		logger:      logger.Named("water"),
		opts:        opts,
		publishCh:   make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
		publishDone: make(chan struct{}),
	}
}

// Start runs an initial poll and then polls every PollInterval. A failed
// initial poll leaves the device unavailable but does not fail Start.
func (m *Manager) Start() error {
	m.logger.Info("Starting Water Manager",
		zap.String("device", m.client.Identity().DeviceID),
		zap.Duration("poll_interval", m.opts.PollInterval))

	if m.opts.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", m.opts.PollInterval)
	}

	// Created before the goroutine so a mock clock sees it immediately
	ticker := m.clock.NewTicker(m.opts.PollInterval)

	go m.publishLoop()

	if err := m.Poll(context.Background()); err != nil {
		m.logger.Warn("Initial poll failed", zap.Error(err))
	}

	go m.pollLoop(ticker)

	m.logger.Info("Water Manager started successfully")
	return nil
}

// Stop stops the poll and publish loops and waits for both to exit
func (m *Manager) Stop() {
	m.logger.Info("Stopping Water Manager")
	close(m.stopChan)
	<-m.stoppedChan
	<-m.publishDone
	m.logger.Info("Water Manager stopped")
}

func (m *Manager) pollLoop(ticker clock.Ticker) {
	defer close(m.stoppedChan)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			if err := m.Poll(context.Background()); err != nil {
				m.logger.Error("Poll failed", zap.Error(err))
			}

		case <-m.stopChan:
			return
		}
	}
}

// Poll fetches one snapshot and updates the status. Each poll is bounded
// by RequestTimeout; the failure of one poll does not affect the next.
func (m *Manager) Poll(ctx context.Context) error {
	if m.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.RequestTimeout)
		defer cancel()
	}

	m.mu.RLock()
	seq := m.valveSeq
	m.mu.RUnlock()

	snapshot, err := m.client.FetchState(ctx)
	if err != nil {
		m.mu.Lock()
		m.status = Status{
			Available:   false,
			LastUpdated: m.clock.Now(),
			LastError:   err.Error(),
		}
		m.mu.Unlock()

		m.requestPublish()
		return fmt.Errorf("failed to fetch device state: %w", err)
	}

	next := Status{
		Available:   true,
		Temperature: brisk.Temperature(snapshot),
		FlowRate:    brisk.FlowRate(snapshot),
		Usage:       brisk.Usage(snapshot),
		Valve:       brisk.ValveOpen(snapshot),
		LastUpdated: m.clock.Now(),
	}
	if !next.Valve.Known {
		m.logger.Warn("Valve state (data01) not found in device state")
	}

	m.mu.Lock()
	if m.valveSeq != seq {
		m.logger.Debug("Valve command confirmed during fetch, keeping confirmed state",
			zap.Any("fetched_valve_open", next.Valve.Ptr()))
		next.Valve = m.status.Valve
	}
	m.status = next
	m.mu.Unlock()

	m.logger.Debug("Device state updated",
		zap.Any("temperature_k", next.Temperature.Ptr()),
		zap.Any("flow_rate_lph", next.FlowRate.Ptr()),
		zap.Any("usage_gal", next.Usage.Ptr()),
		zap.Any("valve_open", next.Valve.Ptr()))

	m.requestPublish()
	return nil
}

// Status returns a copy of the latest status
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetValve opens or closes the valve. The cached valve state changes only
// after the vendor confirms the command; on failure it is left untouched.
func (m *Manager) SetValve(ctx context.Context, on bool) (Status, error) {
	commandID := uuid.NewString()
	logger := m.logger.With(zap.String("command_id", commandID), zap.Bool("on", on))

	if m.opts.ReadOnly {
		logger.Info("READ-ONLY mode: Would set valve")
		return m.Status(), ErrReadOnly
	}

	logger.Info("Sending valve command")
	if err := m.client.SetValve(ctx, on); err != nil {
		logger.Error("Valve command failed", zap.Error(err))
		return m.Status(), fmt.Errorf("failed to set valve: %w", err)
	}

	m.mu.Lock()
	m.valveSeq++
	m.status.Valve = brisk.Switch{On: on, Known: true}
	status := m.status
	m.mu.Unlock()

	logger.Info("Valve command confirmed")
	m.requestPublish()
	return status, nil
}

// requestPublish schedules a publish without waiting for Home Assistant.
// Requests made while one is pending collapse into it; publish always
// reads the latest status.
func (m *Manager) requestPublish() {
	if m.publisher == nil {
		return
	}
	select {
	case m.publishCh <- struct{}{}:
	default:
	}
}

func (m *Manager) publishLoop() {
	defer close(m.publishDone)

	for {
		select {
		case <-m.publishCh:
			m.publish()

		case <-m.stopChan:
			return
		}
	}
}

// publish mirrors the current status into Home Assistant helpers. Unknown
// readings are skipped rather than written as zero. Only publishLoop calls
// it, so reconnects are never attempted concurrently.
func (m *Manager) publish() {
	if m.publisher == nil {
		return
	}

	status := m.Status()
	prefix := m.opts.EntityPrefix

	if m.opts.ReadOnly {
		m.logger.Debug("READ-ONLY mode: Would publish status",
			zap.Bool("available", status.Available))
		return
	}

	if !m.publisher.IsConnected() {
		if err := m.publisher.Connect(); err != nil && !errors.Is(err, ha.ErrAlreadyConnected) {
			m.logger.Warn("Failed to connect to Home Assistant", zap.Error(err))
			return
		}
	}

	if err := m.publisher.SetInputBoolean(prefix+"_available", status.Available); err != nil {
		m.logger.Warn("Failed to publish availability", zap.Error(err))
	}

	numbers := []struct {
		suffix  string
		reading brisk.Reading
	}{
		{"_temperature", status.Temperature},
		{"_flow_rate", status.FlowRate},
		{"_usage", status.Usage},
	}
	for _, n := range numbers {
		if !n.reading.Known {
			continue
		}
		if err := m.publisher.SetInputNumber(prefix+n.suffix, n.reading.Value); err != nil {
			m.logger.Warn("Failed to publish reading",
				zap.String("entity", prefix+n.suffix),
				zap.Error(err))
		}
	}

	if status.Valve.Known {
		if err := m.publisher.SetInputBoolean(prefix+"_valve", status.Valve.On); err != nil {
			m.logger.Warn("Failed to publish valve state", zap.Error(err))
		}
	}
}
