package telemetry

import "github.com/nerrad567/gray-logic-fan/internal/fan"

// statusFields flattens the supported parts of a status into field values.
// Values are bool, int or float64.
func statusFields(s fan.Status) map[string]any {
	out := make(map[string]any)
	addBool := func(name string, f fan.Field[bool]) {
		if f.Supported {
			out[name] = f.Value
		}
	}
	addInt := func(name string, f fan.Field[int]) {
		if f.Supported {
			out[name] = f.Value
		}
	}
	addFloat := func(name string, f fan.Field[float64]) {
		if f.Supported {
			out[name] = f.Value
		}
	}

	addBool("power", s.Power)
	addInt("rotation_speed", s.RotationSpeed)
	addInt("speed_rpm", s.SpeedRPM)
	addInt("fan_level", s.FanLevel)
	addBool("child_lock", s.ChildLock)
	addBool("swing", s.Swing)
	addInt("angle", s.Angle)
	addBool("vertical_swing", s.VerticalSwing)
	addInt("vertical_angle", s.VerticalAngle)
	addBool("natural_mode", s.NaturalMode)
	addBool("sleep_mode", s.SleepMode)
	addBool("buzzer", s.Buzzer)
	addBool("led", s.Led)
	addInt("led_brightness", s.LedBrightness)
	addInt("shutdown_timer_minutes", s.ShutdownTimer)
	addInt("use_time", s.UseTime)
	addBool("ioniser", s.Ioniser)
	addFloat("temperature", s.Temperature)
	addFloat("relative_humidity", s.Humidity)
	addInt("battery_level", s.Battery)

	return out
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}
