package brisk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjections(t *testing.T) {
	snapshot := Snapshot{
		"data01": float64(1),
		"data04": float64(293),
		"data0B": "12.5",
		"data10": json.Number("40.25"),
	}

	assert.Equal(t, Switch{On: true, Known: true}, ValveOpen(snapshot))
	assert.Equal(t, Known(293), Temperature(snapshot))
	assert.Equal(t, Known(12.5), FlowRate(snapshot))
	assert.Equal(t, Known(40.25), Usage(snapshot))
}

func TestProjections_MissingKeysAreUnknown(t *testing.T) {
	snapshot := Snapshot{}

	assert.False(t, ValveOpen(snapshot).Known)
	assert.False(t, Temperature(snapshot).Known)
	assert.False(t, FlowRate(snapshot).Known)
	assert.False(t, Usage(snapshot).Known)

	assert.Nil(t, Temperature(snapshot).Ptr())
	assert.Nil(t, ValveOpen(snapshot).Ptr())
}

func TestValveOpen(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Switch
	}{
		{name: "open", value: float64(1), want: Switch{On: true, Known: true}},
		{name: "closed", value: float64(0), want: Switch{On: false, Known: true}},
		{name: "string open", value: "1", want: Switch{On: true, Known: true}},
		{name: "unexpected number", value: float64(7), want: Switch{}},
		{name: "null", value: nil, want: Switch{}},
		{name: "garbage", value: "open", want: Switch{}},
		{name: "bool", value: true, want: Switch{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValveOpen(Snapshot{KeyValve: tt.value}))
		})
	}
}

func TestReading_ZeroIsKnown(t *testing.T) {
	r := FlowRate(Snapshot{KeyFlowRate: float64(0)})
	assert.True(t, r.Known)
	if assert.NotNil(t, r.Ptr()) {
		assert.Equal(t, float64(0), *r.Ptr())
	}
}
