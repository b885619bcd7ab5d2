package fan

import (
	"context"
	"fmt"
)

// defaultAngleRange applies when a model declares angle control without a range.
var defaultAngleRange = Range{Min: 0, Max: 120}

// speedRange bounds rotation speed in percent.
var speedRange = Range{Min: 0, Max: 100}

// Commands return ErrUnsupported when the model lacks the feature and
// ErrNotConnected when no transport is attached. Transport failures are
// logged and swallowed by the adapters; the next poll shows the real state.

// SetPowerOn turns the fan on or off.
func (d *Device) SetPowerOn(ctx context.Context, on bool) error {
	return d.writeSwitch(ctx, "power", d.profile.Power, on)
}

// SetRotationSpeed sets the speed in percent, clamped to 0..100.
func (d *Device) SetRotationSpeed(ctx context.Context, speed int) error {
	speed = speedRange.Clamp(speed)
	if d.profile.WriteRotationSpeed != nil {
		return d.profile.WriteRotationSpeed(ctx, d, speed)
	}
	return d.writeLevel(ctx, "rotation speed", d.profile.RotationSpeed, speed)
}

// SetFanLevel sets the discrete fan level, clamped to [1, levels].
func (d *Device) SetFanLevel(ctx context.Context, level int) error {
	if n := d.profile.Capabilities.NumberOfFanLevels(); n > 0 {
		level = Range{Min: 1, Max: n}.Clamp(level)
	}
	if d.profile.WriteFanLevel != nil {
		return d.profile.WriteFanLevel(ctx, d, level)
	}
	return d.writeLevel(ctx, "fan level", d.profile.FanLevel, level)
}

// SetChildLock enables or disables the child lock.
func (d *Device) SetChildLock(ctx context.Context, active bool) error {
	return d.writeSwitch(ctx, "child lock", d.profile.ChildLock, active)
}

// SetSwingModeEnabled enables or disables horizontal oscillation.
func (d *Device) SetSwingModeEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "swing mode", d.profile.Swing, enabled)
}

// SetAngle sets the horizontal oscillation angle, clamped to the declared
// range (0..120 when none is declared).
func (d *Device) SetAngle(ctx context.Context, angle int) error {
	r := d.profile.Capabilities.OscillationAngleRange()
	if r.IsZero() {
		r = defaultAngleRange
	}
	return d.writeLevel(ctx, "angle", d.profile.Angle, r.Clamp(angle))
}

// SetVerticalSwingModeEnabled enables or disables vertical oscillation.
func (d *Device) SetVerticalSwingModeEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "vertical swing mode", d.profile.VerticalSwing, enabled)
}

// SetVerticalAngle sets the vertical oscillation angle, clamped to the
// declared vertical range (0..120 when none is declared).
func (d *Device) SetVerticalAngle(ctx context.Context, angle int) error {
	r := d.profile.Capabilities.VerticalOscillationAngleRange()
	if r.IsZero() {
		r = defaultAngleRange
	}
	return d.writeLevel(ctx, "vertical angle", d.profile.VerticalAngle, r.Clamp(angle))
}

// SetNaturalModeEnabled switches between natural (breeze) and direct mode.
func (d *Device) SetNaturalModeEnabled(ctx context.Context, enabled bool) error {
	if d.profile.WriteNaturalMode != nil {
		return d.profile.WriteNaturalMode(ctx, d, enabled)
	}
	return d.writeSwitch(ctx, "natural mode", d.profile.NaturalMode, enabled)
}

// SetSleepModeEnabled enables or disables sleep mode.
func (d *Device) SetSleepModeEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "sleep mode", d.profile.SleepMode, enabled)
}

// MoveLeft nudges the fan head one step left.
func (d *Device) MoveLeft(ctx context.Context) error {
	return d.move(ctx, "move left", d.profile.LeftRight, true)
}

// MoveRight nudges the fan head one step right.
func (d *Device) MoveRight(ctx context.Context) error {
	return d.move(ctx, "move right", d.profile.LeftRight, false)
}

// MoveUp nudges the fan head one step up.
func (d *Device) MoveUp(ctx context.Context) error {
	return d.move(ctx, "move up", d.profile.UpDown, true)
}

// MoveDown nudges the fan head one step down.
func (d *Device) MoveDown(ctx context.Context) error {
	return d.move(ctx, "move down", d.profile.UpDown, false)
}

// SetBuzzerEnabled enables or disables the buzzer.
func (d *Device) SetBuzzerEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "buzzer", d.profile.Buzzer, enabled)
}

// SetBuzzerLevel sets the buzzer level. Models without levels treat any
// positive level as "on".
func (d *Device) SetBuzzerLevel(ctx context.Context, level int) error {
	if d.profile.BuzzerLevel == nil {
		return d.SetBuzzerEnabled(ctx, level > 0)
	}
	return d.writeLevel(ctx, "buzzer level", d.profile.BuzzerLevel, level)
}

// SetLedEnabled turns the indicator light on or off.
func (d *Device) SetLedEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "led", d.profile.Led, enabled)
}

// SetLedLevel sets the indicator light level.
func (d *Device) SetLedLevel(ctx context.Context, level int) error {
	return d.writeLevel(ctx, "led level", d.profile.LedLevel, level)
}

// SetLedBrightness sets the indicator brightness in percent.
func (d *Device) SetLedBrightness(ctx context.Context, brightness int) error {
	return d.writeLevel(ctx, "led brightness", d.profile.LedBrightness, brightness)
}

// SetShutdownTimer sets the power-off timer in minutes. Zero cancels it.
func (d *Device) SetShutdownTimer(ctx context.Context, minutes int) error {
	return d.writeLevel(ctx, "shutdown timer", d.profile.ShutdownTimer, max(minutes, 0))
}

// SetIoniserEnabled enables or disables the ioniser.
func (d *Device) SetIoniserEnabled(ctx context.Context, enabled bool) error {
	return d.writeSwitch(ctx, "ioniser", d.profile.Ioniser, enabled)
}

func (d *Device) writeSwitch(ctx context.Context, feature string, s *Switch, on bool) error {
	if s == nil {
		return d.unsupported(feature)
	}
	return d.write(ctx, s.Binding, s.encode(on))
}

func (d *Device) writeLevel(ctx context.Context, feature string, l *Level, n int) error {
	if l == nil {
		return d.unsupported(feature)
	}
	return d.write(ctx, l.Binding, l.encode(n))
}

// write sends value through the adapter the model uses.
func (d *Device) write(ctx context.Context, b Binding, value any) error {
	if d.direct != nil {
		return d.direct.SendCommand(ctx, b.Method, value, b.refreshNames()...)
	}
	return d.generic.SetProperty(ctx, b.Property, value)
}

func (d *Device) move(ctx context.Context, feature string, m *Mover, first bool) error {
	if m == nil {
		return d.unsupported(feature)
	}
	value := m.Second
	if first {
		value = m.First
	}
	if d.direct != nil {
		return d.direct.SendCommand(ctx, m.Method, value)
	}
	return d.generic.SendCommand(ctx, m.Property, value)
}

func (d *Device) unsupported(feature string) error {
	d.logger.Warn("not supported: the requested command is not supported by this device", "feature", feature)
	return fmt.Errorf("%w: %s", ErrUnsupported, feature)
}
