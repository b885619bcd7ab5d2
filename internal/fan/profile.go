package fan

import (
	"context"
	"slices"
)

// PropertyDef declares one property or command of a model. SIID and PIID
// are zero on direct-method models.
type PropertyDef struct {
	Name string
	SIID int
	PIID int
}

// Binding ties a feature to the property it is read from and how it is
// written.
//
// On direct-method models a write calls Method and refreshes Refresh (or
// Property when Refresh is empty). On generic-property models a write sets
// Property.
type Binding struct {
	Property string
	Method   string
	Refresh  []string
}

func (b Binding) refreshNames() []string {
	if len(b.Refresh) > 0 {
		return b.Refresh
	}
	if b.Property != "" {
		return []string{b.Property}
	}
	return nil
}

// Switch is an on/off feature.
type Switch struct {
	Binding

	// On and Off are the values written. Defaults: true and false.
	On, Off any

	// IsOn decodes the property. Default: value equals On.
	IsOn func(v any) bool
}

func (s *Switch) prop() string {
	if s == nil {
		return ""
	}
	return s.Property
}

func (s *Switch) read(snap Snapshot) bool {
	v, ok := snap[s.Property]
	if !ok {
		return false
	}
	if s.IsOn != nil {
		return s.IsOn(v)
	}
	return sameValue(v, s.onValue())
}

func (s *Switch) onValue() any {
	if s.On == nil {
		return true
	}
	return s.On
}

func (s *Switch) encode(on bool) any {
	if on {
		return s.onValue()
	}
	if s.Off == nil {
		return false
	}
	return s.Off
}

// Level is an integer feature such as speed, angle or a timer.
type Level struct {
	Binding

	// Decode converts the property to the exposed value. Default: integer.
	Decode func(v any) int

	// Encode converts the exposed value to the written value. Default: identity.
	Encode func(n int) any

	// Limit clamps written values when set.
	Limit *Range
}

func (l *Level) prop() string {
	if l == nil {
		return ""
	}
	return l.Property
}

func (l *Level) read(snap Snapshot) int {
	v, ok := snap[l.Property]
	if !ok {
		return 0
	}
	if l.Decode != nil {
		return l.Decode(v)
	}
	return asInt(v)
}

func (l *Level) encode(n int) any {
	if l.Limit != nil {
		n = l.Limit.Clamp(n)
	}
	if l.Encode != nil {
		return l.Encode(n)
	}
	return n
}

// Gauge is a read-only measurement.
type Gauge struct {
	Property string
}

func (g *Gauge) read(snap Snapshot) float64 {
	return asFloat(snap[g.Property])
}

// Mover is a write-only nudge in one of two directions. On generic-property
// models Property names a declared command.
type Mover struct {
	Binding
	First, Second any
}

// Profile is the declarative description of one fan model family.
type Profile struct {
	Family       string
	Protocol     Protocol
	Capabilities Capabilities

	// Properties are declared on the adapter; Commands only on
	// generic-property models.
	Properties []PropertyDef
	Commands   []PropertyDef

	Power         *Switch
	ChildLock     *Switch
	Swing         *Switch
	VerticalSwing *Switch
	NaturalMode   *Switch
	SleepMode     *Switch
	Buzzer        *Switch
	Led           *Switch
	Ioniser       *Switch

	RotationSpeed *Level
	SpeedRPM      *Level
	FanLevel      *Level
	Angle         *Level
	VerticalAngle *Level
	BuzzerLevel   *Level
	LedLevel      *Level
	LedBrightness *Level
	ShutdownTimer *Level // decoded and encoded in minutes
	UseTime       *Level
	Battery       *Level

	Temperature *Gauge
	Humidity    *Gauge

	LeftRight *Mover
	UpDown    *Mover

	// Strategies for features that span several properties.
	ReadRotationSpeed  func(snap Snapshot) int
	WriteRotationSpeed func(ctx context.Context, d *Device, speed int) error
	WriteNaturalMode   func(ctx context.Context, d *Device, enabled bool) error
	ReadFanLevel       func(d *Device, snap Snapshot) int
	WriteFanLevel      func(ctx context.Context, d *Device, level int) error
}

// propertyNames returns the declared property names.
func (p *Profile) propertyNames() []string {
	names := make([]string, 0, len(p.Properties))
	for _, def := range p.Properties {
		if !slices.Contains(names, def.Name) {
			names = append(names, def.Name)
		}
	}
	return names
}

// props builds a direct-method property list from names.
func props(names ...string) []PropertyDef {
	defs := make([]PropertyDef, len(names))
	for i, n := range names {
		defs[i] = PropertyDef{Name: n}
	}
	return defs
}

// miot builds one generic-property declaration.
func miot(name string, siid, piid int) PropertyDef {
	return PropertyDef{Name: name, SIID: siid, PIID: piid}
}

// onOff is the "on"/"off" string switch used by older miIO firmware.
func onOff(property, method string, refresh ...string) *Switch {
	return &Switch{
		Binding: Binding{Property: property, Method: method, Refresh: refresh},
		On:      "on",
		Off:     "off",
	}
}

// boolSwitch is a generic-property boolean.
func boolSwitch(property string) *Switch {
	return &Switch{Binding: Binding{Property: property}}
}

// modeSwitch is on when property equals on, writing on/off.
func modeSwitch(property string, on, off any) *Switch {
	return &Switch{Binding: Binding{Property: property}, On: on, Off: off}
}

// level is a plain integer property.
func level(property string) *Level {
	return &Level{Binding: Binding{Property: property}}
}

// clampedLevel is an integer property limited to [lo, hi] on write.
func clampedLevel(property string, lo, hi int) *Level {
	return &Level{Binding: Binding{Property: property}, Limit: &Range{Min: lo, Max: hi}}
}

// secondsTimer exposes a seconds property in minutes, rounded up.
func secondsTimer(b Binding) *Level {
	return &Level{
		Binding: b,
		Decode:  func(v any) int { return ceilDiv(asInt(v), 60) },
		Encode:  func(minutes int) any { return minutes * 60 },
	}
}

// minutesTimer is a timer already in minutes.
func minutesTimer(b Binding) *Level {
	return &Level{Binding: b}
}

// hoursTimer exposes an hours property in minutes. Writes round up to the
// next whole hour.
func hoursTimer(b Binding) *Level {
	return &Level{
		Binding: b,
		Decode:  func(v any) int { return asInt(v) * 60 },
		Encode:  func(minutes int) any { return ceilDiv(minutes, 60) },
	}
}
