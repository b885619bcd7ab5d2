package mifan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/infrastructure/mqtt"
)

func TestHealthDetermineStatus(t *testing.T) {
	connected := statsFunc(func() controller.Stats { return controller.Stats{Connected: true} })
	disconnected := statsFunc(func() controller.Stats { return controller.Stats{} })

	tests := []struct {
		name       string
		mqttUp     bool
		stats      StatsSource
		wantStatus HealthStatus
		wantReason string
	}{
		{"healthy", true, connected, HealthHealthy, ""},
		{"mqtt down", false, connected, HealthDegraded, "MQTT disconnected"},
		{"fan down", true, disconnected, HealthDegraded, "fan disconnected"},
		{"no stats", true, nil, HealthDegraded, "fan disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeMQTT()
			m.setConnected(tt.mqttUp)
			h := NewHealthReporter(HealthReporterConfig{Publisher: m, Stats: tt.stats})

			status, reason := h.determineStatus()
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestHealthPublishNow(t *testing.T) {
	m := newFakeMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		DeviceID:  testFanID,
		Version:   "1.2.3",
		Address:   "192.168.1.50",
		Publisher: m,
		Stats: statsFunc(func() controller.Stats {
			return controller.Stats{Connected: true, Polls: 12, PollFailures: 1, Connects: 2}
		}),
	})

	require.NoError(t, h.PublishNow())

	msgs := m.on(mqtt.Topics{}.BridgeHealth(mqtt.ProtocolFan))
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	msg := decode[HealthMessage](t, msgs[0].payload)
	assert.Equal(t, "fan", msg.Bridge)
	assert.Equal(t, testFanID, msg.DeviceID)
	assert.Equal(t, HealthHealthy, msg.Status)
	assert.Equal(t, "1.2.3", msg.Version)
	require.NotNil(t, msg.Connection)
	assert.Equal(t, "connected", msg.Connection.Status)
	assert.Equal(t, "192.168.1.50", msg.Connection.Address)
	require.NotNil(t, msg.Statistics)
	assert.Equal(t, uint64(12), msg.Statistics.Polls)
	assert.Equal(t, uint64(1), msg.Statistics.PollFailures)
}

func TestHealthReportLoop(t *testing.T) {
	m := newFakeMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		Publisher: m,
		Interval:  10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	m.waitFor(t, h.Topic(), 3)
	h.Stop()
	h.Stop()

	msgs := m.on(h.Topic())
	last := decode[HealthMessage](t, msgs[len(msgs)-1].payload)
	assert.Equal(t, HealthStopping, last.Status)
}

func TestHealthWithoutPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	assert.NoError(t, h.PublishStarting())
	assert.NoError(t, h.PublishNow())
}
