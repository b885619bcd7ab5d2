package command

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/config"
)

// Command names.
const (
	TurnOn           = "turn_on"
	TurnOff          = "turn_off"
	SetPower         = "set_power"
	SetSpeed         = "set_speed"
	SetFanLevel      = "set_fan_level"
	SetChildLock     = "set_child_lock"
	SetSwing         = "set_swing"
	SetAngle         = "set_angle"
	SetVerticalSwing = "set_vertical_swing"
	SetVerticalAngle = "set_vertical_angle"
	SetNaturalMode   = "set_natural_mode"
	SetSleepMode     = "set_sleep_mode"
	Move             = "move"
	SetBuzzer        = "set_buzzer"
	SetBuzzerLevel   = "set_buzzer_level"
	SetLed           = "set_led"
	SetLedLevel      = "set_led_level"
	SetLedBrightness = "set_led_brightness"
	SetShutdownTimer = "set_shutdown_timer"
	SetIoniser       = "set_ioniser"
)

// Feature names, matching the keys of the fan.features config section.
const (
	FeatureBuzzer        = "buzzer"
	FeatureLED           = "led"
	FeatureNaturalMode   = "natural_mode"
	FeatureSleepMode     = "sleep_mode"
	FeatureMove          = "move"
	FeatureFanLevel      = "fan_level"
	FeatureShutdownTimer = "shutdown_timer"
	FeatureIoniser       = "ioniser"
)

// Move directions.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
	DirectionUp    = "up"
	DirectionDown  = "down"
)

// Params are decoded JSON command parameters.
type Params map[string]any

type entry struct {
	// feature is the config toggle gating the command; empty means always on.
	feature   string
	supported func(fan.Capabilities) bool
	run       func(ctx context.Context, d *fan.Device, p Params) error
}

// table is built once; iteration order is the order commands are listed in
// capability announcements.
var table = buildTable()

func buildTable() *orderedmap.OrderedMap[string, entry] {
	t := orderedmap.New[string, entry]()

	power := func(c fan.Capabilities) bool { return c.SupportsPowerControl() }
	t.Set(TurnOn, entry{supported: power, run: func(ctx context.Context, d *fan.Device, _ Params) error {
		return d.SetPowerOn(ctx, true)
	}})
	t.Set(TurnOff, entry{supported: power, run: func(ctx context.Context, d *fan.Device, _ Params) error {
		return d.SetPowerOn(ctx, false)
	}})
	t.Set(SetPower, entry{supported: power, run: boolCommand("on", (*fan.Device).SetPowerOn)})

	t.Set(SetSpeed, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsFanSpeed() },
		run:       intCommand("speed", (*fan.Device).SetRotationSpeed),
	})
	t.Set(SetFanLevel, entry{
		feature:   FeatureFanLevel,
		supported: func(c fan.Capabilities) bool { return c.SupportsFanLevel() },
		run:       intCommand("level", (*fan.Device).SetFanLevel),
	})
	t.Set(SetChildLock, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsChildLock() },
		run:       boolCommand("active", (*fan.Device).SetChildLock),
	})
	t.Set(SetSwing, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsOscillation() },
		run:       boolCommand("enabled", (*fan.Device).SetSwingModeEnabled),
	})
	t.Set(SetAngle, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsOscillationAngle() },
		run:       intCommand("angle", (*fan.Device).SetAngle),
	})
	t.Set(SetVerticalSwing, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsVerticalOscillation() },
		run:       boolCommand("enabled", (*fan.Device).SetVerticalSwingModeEnabled),
	})
	t.Set(SetVerticalAngle, entry{
		supported: func(c fan.Capabilities) bool { return c.SupportsVerticalOscillationAngle() },
		run:       intCommand("angle", (*fan.Device).SetVerticalAngle),
	})
	t.Set(SetNaturalMode, entry{
		feature:   FeatureNaturalMode,
		supported: func(c fan.Capabilities) bool { return c.SupportsNaturalMode() },
		run:       boolCommand("enabled", (*fan.Device).SetNaturalModeEnabled),
	})
	t.Set(SetSleepMode, entry{
		feature:   FeatureSleepMode,
		supported: func(c fan.Capabilities) bool { return c.SupportsSleepMode() },
		run:       boolCommand("enabled", (*fan.Device).SetSleepModeEnabled),
	})
	t.Set(Move, entry{
		feature:   FeatureMove,
		supported: func(c fan.Capabilities) bool { return c.SupportsLeftRightMove() || c.SupportsUpDownMove() },
		run:       runMove,
	})
	t.Set(SetBuzzer, entry{
		feature:   FeatureBuzzer,
		supported: func(c fan.Capabilities) bool { return c.SupportsBuzzer() },
		run:       boolCommand("enabled", (*fan.Device).SetBuzzerEnabled),
	})
	t.Set(SetBuzzerLevel, entry{
		feature:   FeatureBuzzer,
		supported: func(c fan.Capabilities) bool { return c.SupportsBuzzer() },
		run:       intCommand("level", (*fan.Device).SetBuzzerLevel),
	})
	t.Set(SetLed, entry{
		feature:   FeatureLED,
		supported: func(c fan.Capabilities) bool { return c.SupportsLed() },
		run:       boolCommand("enabled", (*fan.Device).SetLedEnabled),
	})
	t.Set(SetLedLevel, entry{
		feature:   FeatureLED,
		supported: func(c fan.Capabilities) bool { return c.SupportsLedLevels() },
		run:       intCommand("level", (*fan.Device).SetLedLevel),
	})
	t.Set(SetLedBrightness, entry{
		feature:   FeatureLED,
		supported: func(c fan.Capabilities) bool { return c.SupportsLedBrightness() },
		run:       intCommand("brightness", (*fan.Device).SetLedBrightness),
	})
	t.Set(SetShutdownTimer, entry{
		feature:   FeatureShutdownTimer,
		supported: func(c fan.Capabilities) bool { return c.SupportsPowerOffTimer() },
		run:       intCommand("minutes", (*fan.Device).SetShutdownTimer),
	})
	t.Set(SetIoniser, entry{
		feature:   FeatureIoniser,
		supported: func(c fan.Capabilities) bool { return c.SupportsIoniser() },
		run:       boolCommand("enabled", (*fan.Device).SetIoniserEnabled),
	})

	return t
}

// Dispatcher executes named commands against a device, refusing those whose
// feature is disabled.
//
// Thread Safety: A Dispatcher is immutable after construction.
type Dispatcher struct {
	disabled map[string]bool
}

// NewDispatcher creates a dispatcher honouring the given feature toggles.
func NewDispatcher(f config.FeaturesConfig) *Dispatcher {
	return &Dispatcher{disabled: map[string]bool{
		FeatureBuzzer:        !f.Buzzer,
		FeatureLED:           !f.LED,
		FeatureNaturalMode:   !f.NaturalMode,
		FeatureSleepMode:     !f.SleepMode,
		FeatureMove:          !f.Move,
		FeatureFanLevel:      !f.FanLevel,
		FeatureShutdownTimer: !f.ShutdownTimer,
		FeatureIoniser:       !f.Ioniser,
	}}
}

// FeatureEnabled reports whether a feature toggle is on. Unknown names are on.
func (x *Dispatcher) FeatureEnabled(feature string) bool {
	return !x.disabled[feature]
}

// Execute runs one command.
//
// Parameters:
//   - ctx: Context for the device RPC
//   - d: Target device
//   - name: Command name (see the constants above)
//   - params: Decoded JSON parameters, may be nil
//
// Returns:
//   - error: ErrUnknownCommand, ErrFeatureDisabled, fan.ErrUnsupported when
//     the model lacks the capability, ErrInvalidParameters, or a device error
func (x *Dispatcher) Execute(ctx context.Context, d *fan.Device, name string, params map[string]any) error {
	e, ok := table.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	if e.feature != "" && x.disabled[e.feature] {
		return fmt.Errorf("%w: %s", ErrFeatureDisabled, e.feature)
	}
	if !e.supported(d.Capabilities()) {
		return fmt.Errorf("%w: %s", fan.ErrUnsupported, name)
	}
	return e.run(ctx, d, Params(params))
}

// Available lists the commands the device supports and configuration allows,
// in table order.
func (x *Dispatcher) Available(caps fan.Capabilities) []string {
	names := make([]string, 0, table.Len())
	for pair := table.Oldest(); pair != nil; pair = pair.Next() {
		e := pair.Value
		if e.feature != "" && x.disabled[e.feature] {
			continue
		}
		if !e.supported(caps) {
			continue
		}
		names = append(names, pair.Key)
	}
	return names
}

// Names lists every known command in table order.
func Names() []string {
	names := make([]string, 0, table.Len())
	for pair := table.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func runMove(ctx context.Context, d *fan.Device, p Params) error {
	dir, err := p.String("direction")
	if err != nil {
		return err
	}
	switch dir {
	case DirectionLeft:
		return d.MoveLeft(ctx)
	case DirectionRight:
		return d.MoveRight(ctx)
	case DirectionUp:
		return d.MoveUp(ctx)
	case DirectionDown:
		return d.MoveDown(ctx)
	default:
		return fmt.Errorf("%w: direction must be left, right, up or down, got %q", ErrInvalidParameters, dir)
	}
}

func boolCommand(key string, set func(*fan.Device, context.Context, bool) error) func(context.Context, *fan.Device, Params) error {
	return func(ctx context.Context, d *fan.Device, p Params) error {
		v, err := p.Bool(key)
		if err != nil {
			return err
		}
		return set(d, ctx, v)
	}
}

func intCommand(key string, set func(*fan.Device, context.Context, int) error) func(context.Context, *fan.Device, Params) error {
	return func(ctx context.Context, d *fan.Device, p Params) error {
		v, err := p.Int(key)
		if err != nil {
			return err
		}
		return set(d, ctx, v)
	}
}

// Bool returns a required boolean parameter.
func (p Params) Bool(key string) (bool, error) {
	raw, ok := p[key]
	if !ok {
		return false, fmt.Errorf("%w: %q is required", ErrInvalidParameters, key)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidParameters, key)
	}
	return v, nil
}

// Int returns a required integer parameter. Any JSON number is accepted, as
// is a string holding a decimal integer.
func (p Params) Int(key string) (int, error) {
	raw, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q is required", ErrInvalidParameters, key)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		return int(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return int(f), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameters, key)
}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	raw, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%w: %q is required", ErrInvalidParameters, key)
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidParameters, key)
	}
	return v, nil
}
