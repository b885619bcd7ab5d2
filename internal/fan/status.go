package fan

// Field is one status value with its support flag, so "unsupported" is never
// confused with "off".
type Field[T any] struct {
	Supported bool `json:"supported"`
	Value     T    `json:"value"`
	Predicted bool `json:"predicted,omitempty"`
}

// Status is a consistent view of every feature, built from one snapshot.
type Status struct {
	Connected     bool           `json:"connected"`
	Power         Field[bool]    `json:"power"`
	RotationSpeed Field[int]     `json:"rotation_speed"`
	SpeedRPM      Field[int]     `json:"speed_rpm"`
	FanLevel      Field[int]     `json:"fan_level"`
	ChildLock     Field[bool]    `json:"child_lock"`
	Swing         Field[bool]    `json:"swing"`
	Angle         Field[int]     `json:"angle"`
	VerticalSwing Field[bool]    `json:"vertical_swing"`
	VerticalAngle Field[int]     `json:"vertical_angle"`
	NaturalMode   Field[bool]    `json:"natural_mode"`
	SleepMode     Field[bool]    `json:"sleep_mode"`
	Buzzer        Field[bool]    `json:"buzzer"`
	BuzzerLevel   Field[int]     `json:"buzzer_level"`
	Led           Field[bool]    `json:"led"`
	LedLevel      Field[int]     `json:"led_level"`
	LedBrightness Field[int]     `json:"led_brightness"`
	ShutdownTimer Field[int]     `json:"shutdown_timer_minutes"`
	UseTime       Field[int]     `json:"use_time"`
	Ioniser       Field[bool]    `json:"ioniser"`
	Temperature   Field[float64] `json:"temperature"`
	Humidity      Field[float64] `json:"relative_humidity"`
	Battery       Field[int]     `json:"battery_level"`
}

// Status reads every feature from the current snapshot. It performs no I/O.
func (d *Device) Status() Status {
	snap := d.Properties()
	c := d.profile.Capabilities
	p := d.profile

	return Status{
		Connected:     d.Connected(),
		Power:         Field[bool]{c.SupportsPowerControl(), d.isPowerOn(snap), d.predicted(p.Power.prop())},
		RotationSpeed: Field[int]{c.SupportsFanSpeed(), d.rotationSpeed(snap), d.predicted(p.RotationSpeed.prop())},
		SpeedRPM:      Field[int]{c.SupportsFanSpeedRPM(), readLevel(p.SpeedRPM, snap), false},
		FanLevel:      Field[int]{c.SupportsFanLevel(), d.fanLevel(snap), d.predicted(p.FanLevel.prop())},
		ChildLock:     Field[bool]{c.SupportsChildLock(), readSwitch(p.ChildLock, snap), d.predicted(p.ChildLock.prop())},
		Swing:         Field[bool]{c.SupportsOscillation(), readSwitch(p.Swing, snap), d.predicted(p.Swing.prop())},
		Angle:         Field[int]{c.SupportsOscillationAngle() || c.SupportsOscillationLevels(), readLevel(p.Angle, snap), d.predicted(p.Angle.prop())},
		VerticalSwing: Field[bool]{c.SupportsVerticalOscillation(), readSwitch(p.VerticalSwing, snap), d.predicted(p.VerticalSwing.prop())},
		VerticalAngle: Field[int]{c.SupportsVerticalOscillationAngle(), readLevel(p.VerticalAngle, snap), d.predicted(p.VerticalAngle.prop())},
		NaturalMode:   Field[bool]{c.SupportsNaturalMode(), readSwitch(p.NaturalMode, snap), d.predicted(p.NaturalMode.prop())},
		SleepMode:     Field[bool]{c.SupportsSleepMode(), readSwitch(p.SleepMode, snap), d.predicted(p.SleepMode.prop())},
		Buzzer:        Field[bool]{c.SupportsBuzzer(), readSwitch(p.Buzzer, snap), d.predicted(p.Buzzer.prop())},
		BuzzerLevel:   Field[int]{c.SupportsBuzzerLevels(), d.buzzerLevel(snap), d.predicted(p.BuzzerLevel.prop())},
		Led:           Field[bool]{c.SupportsLed(), readSwitch(p.Led, snap), d.predicted(p.Led.prop())},
		LedLevel:      Field[int]{c.SupportsLedLevels(), d.ledLevel(snap), d.predicted(p.LedLevel.prop())},
		LedBrightness: Field[int]{c.SupportsLedBrightness(), readLevel(p.LedBrightness, snap), d.predicted(p.LedBrightness.prop())},
		ShutdownTimer: Field[int]{c.SupportsPowerOffTimer(), readLevel(p.ShutdownTimer, snap), d.predicted(p.ShutdownTimer.prop())},
		UseTime:       Field[int]{c.SupportsUseTime(), readLevel(p.UseTime, snap), false},
		Ioniser:       Field[bool]{c.SupportsIoniser(), readSwitch(p.Ioniser, snap), d.predicted(p.Ioniser.prop())},
		Temperature:   Field[float64]{c.SupportsTemperature(), readGauge(p.Temperature, snap), false},
		Humidity:      Field[float64]{c.SupportsRelativeHumidity(), readGauge(p.Humidity, snap), false},
		Battery:       Field[int]{c.SupportsBatteryStateReporting(), readLevel(p.Battery, snap), false},
	}
}

// predicted reports whether a property holds a prediction.
func (d *Device) predicted(name string) bool {
	if name == "" {
		return false
	}
	r, ok := d.adapter.Reading(name)
	return ok && r.Source == Predicted
}

func readSwitch(s *Switch, snap Snapshot) bool {
	if s == nil {
		return false
	}
	return s.read(snap)
}

func readLevel(l *Level, snap Snapshot) int {
	if l == nil {
		return 0
	}
	return l.read(snap)
}

func readGauge(g *Gauge, snap Snapshot) float64 {
	if g == nil {
		return 0
	}
	return g.read(snap)
}

func (d *Device) isPowerOn(snap Snapshot) bool {
	return readSwitch(d.profile.Power, snap)
}

func (d *Device) rotationSpeed(snap Snapshot) int {
	if d.profile.ReadRotationSpeed != nil {
		return d.profile.ReadRotationSpeed(snap)
	}
	return readLevel(d.profile.RotationSpeed, snap)
}

func (d *Device) fanLevel(snap Snapshot) int {
	if d.profile.ReadFanLevel != nil {
		return d.profile.ReadFanLevel(d, snap)
	}
	return readLevel(d.profile.FanLevel, snap)
}

func (d *Device) buzzerLevel(snap Snapshot) int {
	if d.profile.BuzzerLevel != nil {
		return d.profile.BuzzerLevel.read(snap)
	}
	if readSwitch(d.profile.Buzzer, snap) {
		return 1
	}
	return 0
}

func (d *Device) ledLevel(snap Snapshot) int {
	if d.profile.LedLevel != nil {
		return d.profile.LedLevel.read(snap)
	}
	if readSwitch(d.profile.Led, snap) {
		return 1
	}
	return 0
}

// IsPowerOn reports whether the fan is on.
func (d *Device) IsPowerOn() bool { return d.isPowerOn(d.Properties()) }

// RotationSpeed returns the speed in percent.
func (d *Device) RotationSpeed() int { return d.rotationSpeed(d.Properties()) }

// Speed returns the motor speed in RPM.
func (d *Device) Speed() int { return readLevel(d.profile.SpeedRPM, d.Properties()) }

// FanLevel returns the discrete fan level.
func (d *Device) FanLevel() int { return d.fanLevel(d.Properties()) }

// IsChildLockActive reports whether the physical buttons are locked.
func (d *Device) IsChildLockActive() bool { return readSwitch(d.profile.ChildLock, d.Properties()) }

// IsSwingModeEnabled reports whether horizontal oscillation is on.
func (d *Device) IsSwingModeEnabled() bool { return readSwitch(d.profile.Swing, d.Properties()) }

// Angle returns the horizontal oscillation angle in degrees.
func (d *Device) Angle() int { return readLevel(d.profile.Angle, d.Properties()) }

// IsVerticalSwingModeEnabled reports whether vertical oscillation is on.
func (d *Device) IsVerticalSwingModeEnabled() bool {
	return readSwitch(d.profile.VerticalSwing, d.Properties())
}

// VerticalAngle returns the vertical oscillation angle in degrees.
func (d *Device) VerticalAngle() int { return readLevel(d.profile.VerticalAngle, d.Properties()) }

// IsNaturalModeEnabled reports whether the fan runs in natural (breeze) mode.
func (d *Device) IsNaturalModeEnabled() bool { return readSwitch(d.profile.NaturalMode, d.Properties()) }

// IsSleepModeEnabled reports whether sleep mode is on.
func (d *Device) IsSleepModeEnabled() bool { return readSwitch(d.profile.SleepMode, d.Properties()) }

// IsBuzzerEnabled reports whether the buzzer sounds on commands.
func (d *Device) IsBuzzerEnabled() bool { return readSwitch(d.profile.Buzzer, d.Properties()) }

// BuzzerLevel returns the buzzer level, or 0/1 on models with an on/off buzzer.
func (d *Device) BuzzerLevel() int { return d.buzzerLevel(d.Properties()) }

// IsLedEnabled reports whether the indicator light is on.
func (d *Device) IsLedEnabled() bool { return readSwitch(d.profile.Led, d.Properties()) }

// LedLevel returns the indicator light level, or 0/1 on models with an
// on/off light.
func (d *Device) LedLevel() int { return d.ledLevel(d.Properties()) }

// LedBrightness returns the indicator brightness in percent.
func (d *Device) LedBrightness() int { return readLevel(d.profile.LedBrightness, d.Properties()) }

// UseTime returns the accumulated run time as reported by the device.
func (d *Device) UseTime() int { return readLevel(d.profile.UseTime, d.Properties()) }

// IsIoniserEnabled reports whether the ioniser is on.
func (d *Device) IsIoniserEnabled() bool { return readSwitch(d.profile.Ioniser, d.Properties()) }

// Temperature returns the ambient temperature in degrees Celsius.
func (d *Device) Temperature() float64 { return readGauge(d.profile.Temperature, d.Properties()) }

// RelativeHumidity returns the ambient relative humidity in percent.
func (d *Device) RelativeHumidity() float64 { return readGauge(d.profile.Humidity, d.Properties()) }

// BatteryLevel returns the battery charge in percent.
func (d *Device) BatteryLevel() int { return readLevel(d.profile.Battery, d.Properties()) }

// IsShutdownTimerEnabled reports whether a power-off timer is running.
func (d *Device) IsShutdownTimerEnabled() bool { return d.ShutdownTimer() > 0 }

// ShutdownTimer returns the remaining power-off time in minutes.
func (d *Device) ShutdownTimer() int {
	return readLevel(d.profile.ShutdownTimer, d.Properties())
}
