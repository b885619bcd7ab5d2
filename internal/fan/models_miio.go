package fan

import "context"

// Direct-method (miIO) model profiles.

// emulatedFanLevel maps rotation speed to four levels for miIO models, which
// have no native level property.
func emulatedFanLevel(d *Device, snap Snapshot) int {
	speed := d.rotationSpeed(snap)
	switch {
	case speed > 80:
		return 4
	case speed > 50:
		return 3
	case speed > 20:
		return 2
	default:
		return 1
	}
}

// emulatedLevelSpeeds are the speeds written for levels 1-4.
var emulatedLevelSpeeds = map[int]int{1: 1, 2: 35, 3: 74, 4: 100}

func writeEmulatedFanLevel(ctx context.Context, d *Device, level int) error {
	speed, ok := emulatedLevelSpeeds[level]
	if !ok {
		speed = 1
	}
	return d.SetRotationSpeed(ctx, speed)
}

// smartmiMiioProfile covers zhimi.fan.v2/v3/sa1/za1/za3/za4.
//
// Speed is stored in one of two properties depending on mode: natural_level
// in natural mode, speed_level otherwise. The other one reads 0.
func smartmiMiioProfile() *Profile {
	return &Profile{
		Family:   "smartmi-miio",
		Protocol: ProtocolMiio,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanSpeedControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 4),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationAngleControl, true),
			Declare(CapOscillationAngleRange, Range{Min: 0, Max: 120}),
			Declare(CapLeftRightMove, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitSeconds),
			Declare(CapBuzzerControl, true),
			Declare(CapBuzzerControlLevels, true),
			Declare(CapLedControl, true),
			Declare(CapLedControlLevels, true),
			Declare(CapUseTimeReporting, true),
			Declare(CapBuiltInBattery, true),
		),
		Properties: props(
			"angle", "speed", "poweroff_time", "power", "ac_power", "angle_enable",
			"speed_level", "natural_level", "child_lock", "buzzer", "led_b", "use_time",
		),

		Power:     onOff("power", "set_power", "power", "ac_power"),
		ChildLock: onOff("child_lock", "set_child_lock"),
		Swing:     onOff("angle_enable", "set_angle_enable"),
		Angle:     &Level{Binding: Binding{Property: "angle", Method: "set_angle"}},
		SpeedRPM:  level("speed"),
		RotationSpeed: &Level{
			Binding: Binding{Property: "speed_level", Refresh: []string{"speed_level", "natural_level"}},
		},
		NaturalMode: &Switch{
			Binding: Binding{Property: "natural_level"},
			IsOn:    func(v any) bool { return asInt(v) > 0 },
		},
		Buzzer: &Switch{
			Binding: Binding{Property: "buzzer", Method: "set_buzzer"},
			On:      2,
			Off:     0,
			IsOn:    func(v any) bool { return asInt(v) > 0 },
		},
		BuzzerLevel: &Level{
			Binding: Binding{Property: "buzzer", Method: "set_buzzer"},
			Limit:   &Range{Min: 0, Max: 2},
		},
		// led_b is a dimming level: 0 bright, 1 dim, 2 off.
		Led: &Switch{
			Binding: Binding{Property: "led_b", Method: "set_led_b"},
			On:      0,
			Off:     2,
			IsOn: func(v any) bool {
				n := asInt(v)
				return isNumber(v) && (n == 0 || n == 1)
			},
		},
		LedLevel: &Level{
			Binding: Binding{Property: "led_b", Method: "set_led_b"},
			Limit:   &Range{Min: 0, Max: 2},
		},
		ShutdownTimer: secondsTimer(Binding{Property: "poweroff_time", Method: "set_poweroff_time"}),
		UseTime:       level("use_time"),
		LeftRight:     &Mover{Binding: Binding{Method: "set_move"}, First: "left", Second: "right"},

		ReadRotationSpeed: func(snap Snapshot) int {
			if n := asInt(snap["natural_level"]); n > 0 {
				return n
			}
			return asInt(snap["speed_level"])
		},
		WriteRotationSpeed: func(ctx context.Context, d *Device, speed int) error {
			natural := d.IsNaturalModeEnabled()
			return smartmiSetSpeed(ctx, d, natural, speed)
		},
		WriteNaturalMode: func(ctx context.Context, d *Device, enabled bool) error {
			return smartmiSetSpeed(ctx, d, enabled, d.RotationSpeed())
		},
		ReadFanLevel:  emulatedFanLevel,
		WriteFanLevel: writeEmulatedFanLevel,
	}
}

// smartmiSetSpeed writes speed through the property that matches the mode.
// The resulting natural_level and speed_level are predicted before the call
// so a mode change followed quickly by a speed change reads consistent state.
func smartmiSetSpeed(ctx context.Context, d *Device, natural bool, speed int) error {
	method := "set_speed_level"
	predicted := map[string]any{"natural_level": 0, "speed_level": speed}
	if natural {
		method = "set_natural_level"
		predicted = map[string]any{"natural_level": speed, "speed_level": 0}
	}
	d.direct.Predict(predicted)
	return d.direct.SendCommand(ctx, method, speed, "speed_level", "natural_level")
}

// dmakerP5Profile covers dmaker.fan.p5.
func dmakerP5Profile() *Profile {
	return &Profile{
		Family:   "dmaker-p5",
		Protocol: ProtocolMiio,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanSpeedControl, true),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationAngleControl, true),
			Declare(CapOscillationAngleRange, Range{Min: 0, Max: 120}),
			Declare(CapLeftRightMove, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitMinutes),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
		),
		Properties: props(
			"power", "mode", "speed", "roll_enable", "roll_angle",
			"time_off", "light", "beep_sound", "child_lock",
		),

		Power:         &Switch{Binding: Binding{Property: "power", Method: "s_power"}},
		RotationSpeed: &Level{Binding: Binding{Property: "speed", Method: "s_speed"}},
		ChildLock:     &Switch{Binding: Binding{Property: "child_lock", Method: "s_lock"}},
		Swing:         &Switch{Binding: Binding{Property: "roll_enable", Method: "s_roll"}},
		Angle:         &Level{Binding: Binding{Property: "roll_angle", Method: "s_angle"}},
		NaturalMode: &Switch{
			Binding: Binding{Property: "mode", Method: "s_mode"},
			On:      "nature",
			Off:     "normal",
		},
		Buzzer:        &Switch{Binding: Binding{Property: "beep_sound", Method: "s_sound"}},
		Led:           &Switch{Binding: Binding{Property: "light", Method: "s_light"}},
		ShutdownTimer: minutesTimer(Binding{Property: "time_off", Method: "s_t_off"}),
		LeftRight:     &Mover{Binding: Binding{Method: "m_roll"}, First: "left", Second: "right"},

		ReadFanLevel:  emulatedFanLevel,
		WriteFanLevel: writeEmulatedFanLevel,
	}
}
