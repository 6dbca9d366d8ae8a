package ha

import (
	"fmt"
	"sync"
	"time"
)

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// MockClient implements Publisher for testing
type MockClient struct {
	connected    bool
	connMu       sync.RWMutex
	connectErr   error
	connects     int
	serviceCalls []ServiceCall
	callsMu      sync.Mutex
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		serviceCalls: make([]ServiceCall, 0),
	}
}

// SetConnectError makes subsequent Connect calls fail with err
func (m *MockClient) SetConnectError(err error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.connectErr = err
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connectErr != nil {
		return m.connectErr
	}
	if m.connected {
		return ErrAlreadyConnected
	}

	m.connected = true
	m.connects++
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false
	return nil
}

// ConnectCount returns how many Connect calls established a session
func (m *MockClient) ConnectCount() int {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connects
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// CallService records a service call
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	if !m.IsConnected() {
		return fmt.Errorf("not connected")
	}

	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	return nil
}

// SetInputBoolean records an input_boolean service call
func (m *MockClient) SetInputBoolean(name string, value bool) error {
	service := "turn_off"
	if value {
		service = "turn_on"
	}
	return m.CallService("input_boolean", service, map[string]interface{}{
		"entity_id": fmt.Sprintf("input_boolean.%s", name),
	})
}

// SetInputNumber records an input_number service call
func (m *MockClient) SetInputNumber(name string, value float64) error {
	return m.CallService("input_number", "set_value", map[string]interface{}{
		"entity_id": fmt.Sprintf("input_number.%s", name),
		"value":     value,
	})
}

// GetServiceCalls returns a copy of all recorded service calls
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the recorded service calls
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = make([]ServiceCall, 0)
}

// FindCall returns the most recent call for entityID, or nil
func (m *MockClient) FindCall(entityID string) *ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	for i := len(m.serviceCalls) - 1; i >= 0; i-- {
		if id, ok := m.serviceCalls[i].Data["entity_id"].(string); ok && id == entityID {
			call := m.serviceCalls[i]
			return &call
		}
	}
	return nil
}
