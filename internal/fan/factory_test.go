package fan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-fan/internal/miio/miiotest"
)

func TestNewDeviceProfiles(t *testing.T) {
	tests := []struct {
		model    string
		family   string
		protocol Protocol
	}{
		{"zhimi.fan.v2", "smartmi-miio", ProtocolMiio},
		{"zhimi.fan.za4", "smartmi-miio", ProtocolMiio},
		{"dmaker.fan.p5", "dmaker-p5", ProtocolMiio},
		{"dmaker.fan.1c", "dmaker-ac", ProtocolMiot},
		{"dmaker.fan.p9", "dmaker-p9", ProtocolMiot},
		{"dmaker.fan.p10", "dmaker-p10", ProtocolMiot},
		{"zhimi.fan.za5", "smartmi-dc", ProtocolMiot},
		{"zhimi.fan.fa1", "smartmi-fa1", ProtocolMiot},
		{"zhimi.fan.fb1", "smartmi-fb1", ProtocolMiot},
		{"air.fan.ca23ad9", "air-ca23ad9", ProtocolMiot},
		{"acme.fan.x1", "generic-miot", ProtocolMiot},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d, err := NewDevice(nil, tt.model, "", "Fan")
			require.NoError(t, err)

			assert.Equal(t, tt.family, d.Family())
			assert.Equal(t, tt.protocol, d.Protocol())
			assert.Equal(t, tt.family, ProfileFamily(tt.model))
			assert.False(t, d.Connected())
		})
	}
}

func TestNewDeviceRequiresModelWithoutTransport(t *testing.T) {
	_, err := NewDevice(nil, "", "", "Fan")
	assert.ErrorIs(t, err, ErrModelRequired)
}

func TestNewDeviceTransportModelWins(t *testing.T) {
	f := miiotest.NewFakeTransport("dmaker.fan.1c", "miio:77")

	d, err := NewDevice(f, "zhimi.fan.za4", "", "Fan")
	require.NoError(t, err)

	assert.Equal(t, "dmaker-ac", d.Family())
	assert.Equal(t, "dmaker.fan.1c", d.Model())
	assert.Equal(t, "77", d.DeviceID())
	assert.True(t, d.IsDmakerFan())
	assert.False(t, d.IsSmartmiFan())
	assert.False(t, d.Connected(), "NewDevice must not bind the transport")
	assert.Empty(t, f.Calls())
}

func TestDmakerACCapabilities(t *testing.T) {
	d, err := NewDevice(nil, "dmaker.fan.1c", "1", "Fan")
	require.NoError(t, err)

	c := d.Capabilities()
	assert.True(t, c.SupportsFanLevel())
	assert.Equal(t, 3, c.NumberOfFanLevels())
	assert.True(t, c.SupportsOscillation())
	assert.True(t, c.SupportsSleepMode())
	assert.False(t, c.SupportsFanSpeed())
	assert.Equal(t, TimerUnitMinutes, c.PowerOffTimerUnit())
}

func TestGenericFallbackCapabilities(t *testing.T) {
	d, err := NewDevice(nil, "acme.fan.x1", "1", "Fan")
	require.NoError(t, err)

	c := d.Capabilities()
	assert.True(t, c.SupportsPowerControl())
	assert.True(t, c.SupportsFanLevel())
	assert.False(t, c.SupportsFanSpeed())
	assert.True(t, c.SupportsNaturalMode())
	assert.False(t, KnownModel("acme.fan.x1"))
}

func TestProfilesDeclareBoundProperties(t *testing.T) {
	for model, build := range profiles {
		p := build()
		declared := map[string]bool{}
		for _, def := range p.Properties {
			declared[def.Name] = true
		}
		for _, def := range p.Commands {
			declared[def.Name] = true
		}

		check := func(feature, name string) {
			if name == "" {
				return
			}
			assert.True(t, declared[name], "%s: %s reads undeclared property %q", model, feature, name)
		}
		check("power", p.Power.prop())
		check("child lock", p.ChildLock.prop())
		check("swing", p.Swing.prop())
		check("natural mode", p.NaturalMode.prop())
		check("buzzer", p.Buzzer.prop())
		check("led", p.Led.prop())
		check("rotation speed", p.RotationSpeed.prop())
		check("fan level", p.FanLevel.prop())
		check("angle", p.Angle.prop())
		check("shutdown timer", p.ShutdownTimer.prop())
		if p.Protocol == ProtocolMiot && p.LeftRight != nil {
			check("left/right", p.LeftRight.Property)
		}
	}
}
