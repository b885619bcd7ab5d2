package fan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesUndeclaredAreZero(t *testing.T) {
	c := NewCapabilities(Declare(CapPowerControl, true))

	assert.True(t, c.SupportsPowerControl())
	assert.False(t, c.SupportsFanSpeed())
	assert.Zero(t, c.NumberOfFanLevels())
	assert.True(t, c.OscillationAngleRange().IsZero())
	assert.Nil(t, c.OscillationLevels())
	assert.Empty(t, c.PowerOffTimerUnit())
	assert.False(t, c.Has(CapLedControl))
}

func TestCapabilitiesLevelsAreCopied(t *testing.T) {
	levels := []int{30, 60, 90}
	c := NewCapabilities(Declare(CapOscillationLevels, levels))

	levels[0] = 1
	got := c.OscillationLevels()
	got[1] = 2

	assert.Equal(t, []int{30, 60, 90}, c.OscillationLevels())
	assert.True(t, c.SupportsOscillationLevels())
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: 30, Max: 120}
	tests := []struct {
		in, want int
	}{
		{in: 10, want: 30},
		{in: 30, want: 30},
		{in: 75, want: 75},
		{in: 120, want: 120},
		{in: 500, want: 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Clamp(tt.in), "Clamp(%d)", tt.in)
	}
}

func TestCapabilitiesMarshalJSON(t *testing.T) {
	c := NewCapabilities(
		Declare(CapPowerControl, true),
		Declare(CapNumberOfFanLevels, 4),
		Declare(CapOscillationAngleRange, Range{Min: 30, Max: 120}),
		Declare(CapPowerOffTimerUnit, TimerUnitSeconds),
	)

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"power_control": true,
		"number_of_fan_levels": 4,
		"oscillation_angle_range": [30, 120],
		"power_off_timer_unit": "seconds"
	}`, string(raw))

	raw, err = json.Marshal(Capabilities{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}
