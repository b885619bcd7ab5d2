package fan

import (
	"encoding/json"
	"maps"
	"slices"
)

// Capability names a feature a fan model may declare.
type Capability string

// Capabilities known to the device profiles.
const (
	CapPowerControl                    Capability = "power_control"
	CapFanSpeedControl                 Capability = "fan_speed_control"
	CapFanSpeedRPMReporting            Capability = "fan_speed_rpm_reporting"
	CapFanLevelControl                 Capability = "fan_level_control"
	CapNumberOfFanLevels               Capability = "number_of_fan_levels"
	CapOscillationControl              Capability = "oscillation_control"
	CapOscillationAngleControl         Capability = "oscillation_angle_control"
	CapOscillationAngleRange           Capability = "oscillation_angle_range"
	CapOscillationLevels               Capability = "oscillation_levels"
	CapOscillationVerticalControl      Capability = "oscillation_vertical_control"
	CapOscillationVerticalAngleControl Capability = "oscillation_vertical_angle_control"
	CapOscillationVerticalAngleRange   Capability = "oscillation_vertical_angle_range"
	CapLeftRightMove                   Capability = "left_right_move"
	CapUpDownMove                      Capability = "up_down_move"
	CapNaturalMode                     Capability = "natural_mode"
	CapSleepMode                       Capability = "sleep_mode"
	CapChildLock                       Capability = "child_lock"
	CapPowerOffTimer                   Capability = "power_off_timer"
	CapPowerOffTimerUnit               Capability = "power_off_timer_unit"
	CapBuzzerControl                   Capability = "buzzer_control"
	CapBuzzerControlLevels             Capability = "buzzer_control_levels"
	CapLedControl                      Capability = "led_control"
	CapLedControlLevels                Capability = "led_control_levels"
	CapLedControlBrightness            Capability = "led_control_brightness"
	CapUseTimeReporting                Capability = "use_time_reporting"
	CapIoniserControl                  Capability = "ioniser_control"
	CapTemperatureReporting            Capability = "temperature_reporting"
	CapHumidityReporting               Capability = "humidity_reporting"
	CapBuiltInBattery                  Capability = "built_in_battery"
	CapBatteryStateReporting           Capability = "battery_state_reporting"
)

// Power-off timer units.
const (
	TimerUnitSeconds = "seconds"
	TimerUnitMinutes = "minutes"
	TimerUnitHours   = "hours"
)

// Range is an inclusive integer range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Clamp limits v to the range.
func (r Range) Clamp(v int) int {
	return min(max(v, r.Min), r.Max)
}

// MarshalJSON encodes the range as a two element array.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Min, r.Max})
}

// CapabilityOption declares one capability.
type CapabilityOption func(map[Capability]any)

// Declare sets a capability to a value: true for simple features, an int for
// counts, a Range for ranges, []int for discrete levels, a string for units.
func Declare(c Capability, value any) CapabilityOption {
	return func(m map[Capability]any) {
		if s, ok := value.([]int); ok {
			value = slices.Clone(s)
		}
		m[c] = value
	}
}

// Capabilities is an immutable set of declared capabilities.
//
// Every query returns a zero value for an undeclared name; absence means
// "not supported" and is never an error.
type Capabilities struct {
	m map[Capability]any
}

// NewCapabilities builds a capability set from declarations.
func NewCapabilities(opts ...CapabilityOption) Capabilities {
	m := make(map[Capability]any, len(opts))
	for _, opt := range opts {
		opt(m)
	}
	return Capabilities{m: m}
}

// Has reports whether c was declared.
func (c Capabilities) Has(cp Capability) bool {
	_, ok := c.m[cp]
	return ok
}

// Bool returns a boolean capability, false when undeclared.
func (c Capabilities) Bool(cp Capability) bool {
	b, _ := c.m[cp].(bool)
	return b
}

// Int returns a numeric capability, 0 when undeclared.
func (c Capabilities) Int(cp Capability) int {
	n, _ := c.m[cp].(int)
	return n
}

// Range returns a range capability, the zero Range when undeclared.
func (c Capabilities) Range(cp Capability) Range {
	r, _ := c.m[cp].(Range)
	return r
}

// Levels returns a discrete level capability, nil when undeclared.
func (c Capabilities) Levels(cp Capability) []int {
	l, _ := c.m[cp].([]int)
	return slices.Clone(l)
}

// String returns a string capability, "" when undeclared.
func (c Capabilities) String(cp Capability) string {
	s, _ := c.m[cp].(string)
	return s
}

// Map returns a copy of the declared capabilities.
func (c Capabilities) Map() map[Capability]any {
	return maps.Clone(c.m)
}

// MarshalJSON encodes the declared capabilities as an object.
func (c Capabilities) MarshalJSON() ([]byte, error) {
	if c.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.m)
}

// SupportsPowerControl reports whether the fan can be switched on and off.
func (c Capabilities) SupportsPowerControl() bool { return c.Bool(CapPowerControl) }

// SupportsFanSpeed reports whether the speed can be set in percent.
func (c Capabilities) SupportsFanSpeed() bool { return c.Bool(CapFanSpeedControl) }

// SupportsFanSpeedRPM reports whether the motor speed is reported in RPM.
func (c Capabilities) SupportsFanSpeedRPM() bool { return c.Bool(CapFanSpeedRPMReporting) }

// SupportsFanLevel reports whether the fan has discrete speed levels.
func (c Capabilities) SupportsFanLevel() bool { return c.Bool(CapFanLevelControl) }

// NumberOfFanLevels returns the number of discrete speed levels.
func (c Capabilities) NumberOfFanLevels() int { return c.Int(CapNumberOfFanLevels) }

// SupportsOscillation reports whether horizontal oscillation can be toggled.
func (c Capabilities) SupportsOscillation() bool { return c.Bool(CapOscillationControl) }

// SupportsOscillationAngle reports whether the oscillation angle is freely settable.
func (c Capabilities) SupportsOscillationAngle() bool { return c.Bool(CapOscillationAngleControl) }

// OscillationAngleRange returns the settable oscillation angle range.
func (c Capabilities) OscillationAngleRange() Range { return c.Range(CapOscillationAngleRange) }

// SupportsOscillationLevels reports whether the oscillation angle is one of
// a fixed set of levels.
func (c Capabilities) SupportsOscillationLevels() bool { return len(c.OscillationLevels()) > 0 }

// OscillationLevels returns the allowed oscillation angles.
func (c Capabilities) OscillationLevels() []int { return c.Levels(CapOscillationLevels) }

// SupportsVerticalOscillation reports whether vertical oscillation can be toggled.
func (c Capabilities) SupportsVerticalOscillation() bool { return c.Bool(CapOscillationVerticalControl) }

// SupportsVerticalOscillationAngle reports whether the vertical angle is settable.
func (c Capabilities) SupportsVerticalOscillationAngle() bool { return c.Bool(CapOscillationVerticalAngleControl) }

// VerticalOscillationAngleRange returns the settable vertical angle range.
func (c Capabilities) VerticalOscillationAngleRange() Range { return c.Range(CapOscillationVerticalAngleRange) }

// SupportsLeftRightMove reports whether the head can be nudged left and right.
func (c Capabilities) SupportsLeftRightMove() bool { return c.Bool(CapLeftRightMove) }

// SupportsUpDownMove reports whether the head can be nudged up and down.
func (c Capabilities) SupportsUpDownMove() bool { return c.Bool(CapUpDownMove) }

// SupportsNaturalMode reports whether the fan has a natural (breeze) mode.
func (c Capabilities) SupportsNaturalMode() bool { return c.Bool(CapNaturalMode) }

// SupportsSleepMode reports whether the fan has a sleep mode.
func (c Capabilities) SupportsSleepMode() bool { return c.Bool(CapSleepMode) }

// SupportsChildLock reports whether the buttons can be locked.
func (c Capabilities) SupportsChildLock() bool { return c.Bool(CapChildLock) }

// SupportsPowerOffTimer reports whether a power-off timer can be set.
func (c Capabilities) SupportsPowerOffTimer() bool { return c.Bool(CapPowerOffTimer) }

// PowerOffTimerUnit returns the unit the device counts the timer in.
func (c Capabilities) PowerOffTimerUnit() string { return c.String(CapPowerOffTimerUnit) }

// SupportsBuzzer reports whether the buzzer can be toggled.
func (c Capabilities) SupportsBuzzer() bool { return c.Bool(CapBuzzerControl) }

// SupportsBuzzerLevels reports whether the buzzer has more than two levels.
func (c Capabilities) SupportsBuzzerLevels() bool { return c.Bool(CapBuzzerControlLevels) }

// SupportsLed reports whether the indicator light can be toggled.
func (c Capabilities) SupportsLed() bool { return c.Bool(CapLedControl) }

// SupportsLedLevels reports whether the indicator light has discrete levels.
func (c Capabilities) SupportsLedLevels() bool { return c.Bool(CapLedControlLevels) }

// SupportsLedBrightness reports whether the indicator brightness is set in percent.
func (c Capabilities) SupportsLedBrightness() bool { return c.Bool(CapLedControlBrightness) }

// SupportsUseTime reports whether accumulated run time is reported.
func (c Capabilities) SupportsUseTime() bool { return c.Bool(CapUseTimeReporting) }

// SupportsIoniser reports whether the fan has an ioniser.
func (c Capabilities) SupportsIoniser() bool { return c.Bool(CapIoniserControl) }

// SupportsTemperature reports whether ambient temperature is reported.
func (c Capabilities) SupportsTemperature() bool { return c.Bool(CapTemperatureReporting) }

// SupportsRelativeHumidity reports whether ambient humidity is reported.
func (c Capabilities) SupportsRelativeHumidity() bool { return c.Bool(CapHumidityReporting) }

// HasBuiltInBattery reports whether the fan has a battery.
func (c Capabilities) HasBuiltInBattery() bool { return c.Bool(CapBuiltInBattery) }

// SupportsBatteryStateReporting reports whether battery charge is reported.
func (c Capabilities) SupportsBatteryStateReporting() bool { return c.Bool(CapBatteryStateReporting) }
