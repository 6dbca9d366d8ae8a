package brisk

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Vendor field keys. The mapping was inferred from observed app traffic and
// is not documented by the vendor.
const (
	KeyValve       = "data01"
	KeyTemperature = "data04"
	KeyFlowRate    = "data0B"
	KeyUsage       = "data10"
)

// Reading is a projected value that may be unknown. An unknown reading must
// never be reported as zero.
type Reading struct {
	Value float64
	Known bool
}

// Unknown is the reading for a missing or unparseable field
var Unknown = Reading{}

// Known wraps a value as a known reading
func Known(v float64) Reading {
	return Reading{Value: v, Known: true}
}

// Ptr returns nil for unknown readings, for JSON rendering
func (r Reading) Ptr() *float64 {
	if !r.Known {
		return nil
	}
	v := r.Value
	return &v
}

// Switch is a projected on/off value that may be unknown
type Switch struct {
	On    bool
	Known bool
}

// Ptr returns nil for unknown switch states
func (s Switch) Ptr() *bool {
	if !s.Known {
		return nil
	}
	v := s.On
	return &v
}

// Temperature returns data04 in kelvin, unchanged
func Temperature(s Snapshot) Reading {
	return s.number(KeyTemperature)
}

// FlowRate returns data0B in liters/hour
func FlowRate(s Snapshot) Reading {
	return s.number(KeyFlowRate)
}

// Usage returns data10, cumulative usage in gallons
func Usage(s Snapshot) Reading {
	return s.number(KeyUsage)
}

// ValveOpen returns data01 as a switch: 1 is open, 0 is closed. Any other
// value leaves the state unknown.
func ValveOpen(s Snapshot) Switch {
	r := s.number(KeyValve)
	if !r.Known {
		return Switch{}
	}
	switch r.Value {
	case 1:
		return Switch{On: true, Known: true}
	case 0:
		return Switch{On: false, Known: true}
	}
	return Switch{}
}

// number reads a numeric field. The vendor sends some fields as JSON
// numbers and some as numeric strings.
func (s Snapshot) number(key string) Reading {
	raw, ok := s[key]
	if !ok || raw == nil {
		return Unknown
	}

	switch v := raw.(type) {
	case float64:
		return Known(v)
	case int:
		return Known(float64(v))
	case int64:
		return Known(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Unknown
		}
		return Known(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Unknown
		}
		return Known(f)
	}

	return Unknown
}
