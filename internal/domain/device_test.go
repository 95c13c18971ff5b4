package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeInfo(t *testing.T) {
	t.Run("evse wins on collision", func(t *testing.T) {
		info := map[string]any{"A": 1, "B": 2}
		evse := map[string]any{"B": 3, "C": 4}

		merged := MergeInfo(info, evse)

		assert.Equal(t, map[string]any{"A": 1, "B": 3, "C": 4}, merged)
		assert.Equal(t, 2, info["B"], "inputs must not be modified")
	})

	t.Run("nil evse keeps info", func(t *testing.T) {
		merged := MergeInfo(map[string]any{"A": 1}, nil)
		assert.Equal(t, map[string]any{"A": 1}, merged)
	})
}

func TestNewDeviceInfo(t *testing.T) {
	unit := Unit{Address: "10.0.0.5", Hostname: "ray-local"}

	t.Run("missing fields default to sentinel", func(t *testing.T) {
		info := NewDeviceInfo(unit, map[string]any{AttrStatus: "Charging"})

		assert.Equal(t, "10.0.0.5", info.IP)
		assert.Equal(t, "Charging", info.Status)
		assert.Equal(t, NotAvailable, info.ACVoltage)
		assert.Equal(t, NotAvailable, info.EVSEPPState)
		assert.True(t, info.Success)

		raw, err := json.Marshal(info)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, NotAvailable, decoded["ac_voltage"], "absent attribute must be rendered as the sentinel")
	})

	t.Run("hostname defaults to unit hostname", func(t *testing.T) {
		info := NewDeviceInfo(unit, map[string]any{})
		assert.Equal(t, "ray-local", info.Hostname)

		info = NewDeviceInfo(Unit{Address: "10.0.0.6"}, map[string]any{})
		assert.Equal(t, UnknownHostname, info.Hostname)
	})

	t.Run("reported null is kept", func(t *testing.T) {
		info := NewDeviceInfo(unit, map[string]any{AttrACVoltage: nil, AttrHostname: nil})
		assert.Nil(t, info.ACVoltage)
		assert.Nil(t, info.Hostname)
		assert.Equal(t, NotAvailable, info.Status)

		raw, err := json.Marshal(info)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"ac_voltage":null`)
		assert.Contains(t, string(raw), `"hostname_info":null`)
	})

	t.Run("reported hostname wins", func(t *testing.T) {
		info := NewDeviceInfo(unit, map[string]any{AttrHostname: "ray-1"})
		assert.Equal(t, "ray-1", info.Hostname)
	})

	t.Run("numbers keep their type", func(t *testing.T) {
		info := NewDeviceInfo(unit, map[string]any{AttrACVoltage: json.Number("230.5")})

		raw, err := json.Marshal(info)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"ac_voltage":230.5`)
	})
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "removed",
			event: Removed("10.0.0.6"),
			want:  `{"event":"charger_removed","ip":"10.0.0.6"}`,
		},
		{
			name:  "appeared",
			event: Appeared(Unit{Address: "10.0.0.7"}),
			want:  `{"event":"charger_appeared","ip":"10.0.0.7","hostname":"Unknown"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}

	t.Run("status update", func(t *testing.T) {
		ev := StatusUpdate(NewDeviceInfo(Unit{Address: "10.0.0.5"}, map[string]any{
			AttrHostname: "ray-1",
			AttrStatus:   "Charging",
		}))
		raw, err := json.Marshal(ev)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "charger_status_update", decoded["event"])
		assert.NotContains(t, decoded, "ip")

		data := decoded["data"].(map[string]any)
		assert.Equal(t, "ray-1", data["hostname_info"])
		assert.Equal(t, "Charging", data["status"])
		assert.Equal(t, true, data["success"])
		assert.Equal(t, "10.0.0.5", ev.Address())
	})
}
