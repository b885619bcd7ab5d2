package fan

// Generic-property (MIoT) model profiles. Addresses follow the published
// miot-spec instances for each model.

// dmakerACProfile covers dmaker.fan.1c.
func dmakerACProfile() *Profile {
	return &Profile{
		Family:   "dmaker-ac",
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 3),
			Declare(CapOscillationControl, true),
			Declare(CapSleepMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitMinutes),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("child_lock", 3, 1),
			miot("swing_mode", 2, 3),
			miot("power_off_time", 2, 10),
			miot("buzzer", 2, 11),
			miot("light", 2, 12),
			miot("mode", 2, 7),
		},

		Power:         boolSwitch("power"),
		FanLevel:      level("fan_level"),
		ChildLock:     boolSwitch("child_lock"),
		Swing:         boolSwitch("swing_mode"),
		SleepMode:     modeSwitch("mode", 1, 0),
		Buzzer:        boolSwitch("buzzer"),
		Led:           boolSwitch("light"),
		ShutdownTimer: minutesTimer(Binding{Property: "power_off_time"}),
	}
}

// dmakerDCAddresses holds the per-model addresses of the P9/P10 family,
// which share a feature set but not a property layout.
type dmakerDCAddresses struct {
	fanSpeed, swing, swingAngle, powerOffTime, buzzer, light, mode, move int
}

var (
	dmakerP9Addresses  = dmakerDCAddresses{fanSpeed: 11, swing: 5, swingAngle: 6, powerOffTime: 8, buzzer: 7, light: 9, mode: 4, move: 10}
	dmakerP10Addresses = dmakerDCAddresses{fanSpeed: 10, swing: 4, swingAngle: 5, powerOffTime: 6, buzzer: 8, light: 7, mode: 3, move: 9}
)

// dmakerDCProfile covers dmaker.fan.p9 and dmaker.fan.p10. All addresses
// other than child_lock live in service 2.
func dmakerDCProfile(family string, a dmakerDCAddresses) *Profile {
	return &Profile{
		Family:   family,
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanSpeedControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 4),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationLevels, []int{30, 60, 60, 120, 140}),
			Declare(CapLeftRightMove, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitMinutes),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("child_lock", 3, 1),
			miot("fan_speed", 2, a.fanSpeed),
			miot("swing_mode", 2, a.swing),
			miot("swing_mode_angle", 2, a.swingAngle),
			miot("power_off_time", 2, a.powerOffTime),
			miot("buzzer", 2, a.buzzer),
			miot("light", 2, a.light),
			miot("mode", 2, a.mode),
		},
		Commands: []PropertyDef{
			miot("set_move", 2, a.move),
		},

		Power:         boolSwitch("power"),
		RotationSpeed: level("fan_speed"),
		FanLevel:      level("fan_level"),
		ChildLock:     boolSwitch("child_lock"),
		Swing:         boolSwitch("swing_mode"),
		Angle:         level("swing_mode_angle"),
		NaturalMode:   modeSwitch("mode", 1, 0),
		Buzzer:        boolSwitch("buzzer"),
		Led:           boolSwitch("light"),
		ShutdownTimer: minutesTimer(Binding{Property: "power_off_time"}),
		LeftRight:     &Mover{Binding: Binding{Property: "set_move"}, First: 1, Second: 2},
	}
}

// smartmiDCProfile covers zhimi.fan.za5.
func smartmiDCProfile() *Profile {
	return &Profile{
		Family:   "smartmi-dc",
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanSpeedControl, true),
			Declare(CapFanSpeedRPMReporting, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 4),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationAngleControl, true),
			Declare(CapOscillationAngleRange, Range{Min: 30, Max: 120}),
			Declare(CapLeftRightMove, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitSeconds),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
			Declare(CapLedControlBrightness, true),
			Declare(CapIoniserControl, true),
			Declare(CapTemperatureReporting, true),
			Declare(CapHumidityReporting, true),
			Declare(CapBuiltInBattery, true),
			Declare(CapBatteryStateReporting, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("child_lock", 3, 1),
			miot("fan_speed", 6, 8),
			miot("swing_mode", 2, 3),
			miot("swing_mode_angle", 2, 5),
			miot("power_off_time", 2, 10),
			miot("buzzer", 5, 1),
			miot("light", 4, 3),
			miot("mode", 2, 7),
			miot("anion", 2, 11),
			miot("relative_humidity", 7, 1),
			miot("temperature", 7, 7),
			miot("battery_power", 6, 2),
			miot("fan_speed_rpm", 6, 4),
			miot("ac_power", 6, 5),
		},
		Commands: []PropertyDef{
			miot("set_move", 6, 3),
			miot("set_lp_enter_second", 6, 7),
		},

		Power:         boolSwitch("power"),
		RotationSpeed: level("fan_speed"),
		SpeedRPM:      level("fan_speed_rpm"),
		FanLevel:      level("fan_level"),
		ChildLock:     boolSwitch("child_lock"),
		Swing:         boolSwitch("swing_mode"),
		Angle:         level("swing_mode_angle"),
		NaturalMode:   modeSwitch("mode", 0, 1),
		Buzzer:        boolSwitch("buzzer"),
		// light is a 0-100 brightness; the LED counts as on above 0.
		Led: &Switch{
			Binding: Binding{Property: "light"},
			On:      100,
			Off:     0,
			IsOn:    func(v any) bool { return asInt(v) > 0 },
		},
		LedBrightness: clampedLevel("light", 0, 100),
		ShutdownTimer: secondsTimer(Binding{Property: "power_off_time"}),
		Ioniser:       boolSwitch("anion"),
		Temperature:   &Gauge{Property: "temperature"},
		Humidity:      &Gauge{Property: "relative_humidity"},
		Battery:       level("battery_power"),
		LeftRight:     &Mover{Binding: Binding{Property: "set_move"}, First: "left", Second: "right"},
	}
}

// smartmiFA1Profile covers zhimi.fan.fa1 and zhimi.fan.fb1. The power-off
// timer is in hours.
func smartmiFA1Profile(family string) *Profile {
	return &Profile{
		Family:   family,
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanSpeedControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 5),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationAngleControl, true),
			Declare(CapOscillationAngleRange, Range{Min: 0, Max: 120}),
			Declare(CapOscillationVerticalControl, true),
			Declare(CapOscillationVerticalAngleControl, true),
			Declare(CapOscillationVerticalAngleRange, Range{Min: 0, Max: 90}),
			Declare(CapLeftRightMove, true),
			Declare(CapUpDownMove, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitHours),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("child_lock", 6, 1),
			miot("fan_speed", 5, 10),
			miot("swing_mode", 2, 3),
			miot("swing_mode_angle", 2, 5),
			miot("swing_mode_vertical", 2, 4),
			miot("swing_mode_vertical_angle", 2, 6),
			miot("power_off_time", 5, 2),
			miot("buzzer", 2, 11),
			miot("light", 2, 10),
			miot("mode", 2, 7),
		},
		Commands: []PropertyDef{
			miot("set_move", 5, 6),
			miot("set_move_vertical", 5, 7),
		},

		Power:         boolSwitch("power"),
		RotationSpeed: level("fan_speed"),
		FanLevel:      level("fan_level"),
		ChildLock:     boolSwitch("child_lock"),
		Swing:         boolSwitch("swing_mode"),
		Angle:         level("swing_mode_angle"),
		VerticalSwing: boolSwitch("swing_mode_vertical"),
		VerticalAngle: level("swing_mode_vertical_angle"),
		NaturalMode:   modeSwitch("mode", 0, 1),
		Buzzer:        boolSwitch("buzzer"),
		Led:           boolSwitch("light"),
		ShutdownTimer: hoursTimer(Binding{Property: "power_off_time"}),
		LeftRight:     &Mover{Binding: Binding{Property: "set_move"}, First: "left", Second: "right"},
		UpDown:        &Mover{Binding: Binding{Property: "set_move_vertical"}, First: "up", Second: "down"},
	}
}

// airCA23AD9Profile covers air.fan.ca23ad9. The device has 32 speed steps,
// exposed as 4 levels of 8 steps.
func airCA23AD9Profile() *Profile {
	return &Profile{
		Family:   "air-ca23ad9",
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 4),
			Declare(CapOscillationControl, true),
			Declare(CapOscillationVerticalControl, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("swing_mode", 2, 3),
			miot("swing_mode_vertical", 2, 4),
			miot("mode", 2, 5),
		},

		Power: boolSwitch("power"),
		FanLevel: &Level{
			Binding: Binding{Property: "fan_level"},
			Decode:  func(v any) int { return asInt(v) / 8 },
			Encode:  func(n int) any { return n * 8 },
		},
		Swing:         boolSwitch("swing_mode"),
		VerticalSwing: boolSwitch("swing_mode_vertical"),
		// Reads natural at mode 2 but writes 1 for natural, as the firmware
		// reports and accepts.
		NaturalMode: &Switch{
			Binding: Binding{Property: "mode"},
			On:      1,
			Off:     2,
			IsOn:    func(v any) bool { return sameValue(v, 2) },
		},
	}
}

// genericMiotProfile is the fallback for unknown models: the property set
// shared by most MIoT fans.
func genericMiotProfile() *Profile {
	return &Profile{
		Family:   "generic-miot",
		Protocol: ProtocolMiot,
		Capabilities: NewCapabilities(
			Declare(CapPowerControl, true),
			Declare(CapFanLevelControl, true),
			Declare(CapNumberOfFanLevels, 4),
			Declare(CapOscillationControl, true),
			Declare(CapNaturalMode, true),
			Declare(CapChildLock, true),
			Declare(CapPowerOffTimer, true),
			Declare(CapPowerOffTimerUnit, TimerUnitSeconds),
			Declare(CapBuzzerControl, true),
			Declare(CapLedControl, true),
		),
		Properties: []PropertyDef{
			miot("power", 2, 1),
			miot("fan_level", 2, 2),
			miot("child_lock", 3, 1),
			miot("swing_mode", 2, 3),
			miot("swing_mode_angle", 2, 5),
			miot("mode", 2, 7),
			miot("power_off_time", 2, 10),
			miot("light", 4, 3),
			miot("buzzer", 5, 1),
		},

		Power:         boolSwitch("power"),
		FanLevel:      level("fan_level"),
		ChildLock:     boolSwitch("child_lock"),
		Swing:         boolSwitch("swing_mode"),
		Angle:         level("swing_mode_angle"),
		NaturalMode:   modeSwitch("mode", 0, 1),
		Buzzer:        boolSwitch("buzzer"),
		Led:           boolSwitch("light"),
		ShutdownTimer: secondsTimer(Binding{Property: "power_off_time"}),
	}
}
