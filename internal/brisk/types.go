package brisk

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultDeviceModel is the model string the vendor app sends for the BR valve controller
const DefaultDeviceModel = "BSK_BR"

// Identity identifies which physical device a request targets
type Identity struct {
	DeviceID    string
	DeviceModel string
}

// NewIdentity creates an Identity, falling back to DefaultDeviceModel when model is empty
func NewIdentity(deviceID, deviceModel string) Identity {
	if deviceModel == "" {
		deviceModel = DefaultDeviceModel
	}
	return Identity{DeviceID: deviceID, DeviceModel: deviceModel}
}

// Snapshot is one decoded device-state reading. Keys are opaque vendor
// field names (data01, data04, ...); values are whatever JSON carried.
type Snapshot map[string]interface{}

// ResultCode is the vendor's resCode. The app traffic carries it as a
// string, but numeric codes are accepted too.
type ResultCode string

// UnmarshalJSON accepts a JSON string, a JSON number, or null
func (c *ResultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ResultCode(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("resCode must be a string or number: %w", err)
	}
	*c = ResultCode(n.String())
	return nil
}

// Envelope is the wrapper every vendor endpoint responds with
type Envelope struct {
	ResCode ResultCode      `json:"resCode"`
	ResMsg  string          `json:"resMsg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the vendor accepted the request
func (e *Envelope) OK() bool {
	return e.ResCode == "0"
}
