package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-fan/internal/controller"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/miio/miiotest"
)

type stateWrite struct {
	fanID  string
	model  string
	fields map[string]any
	at     time.Time
}

type connectionWrite struct {
	fanID     string
	connected bool
}

// fakeWriter records InfluxDB writes.
type fakeWriter struct {
	mu          sync.Mutex
	states      []stateWrite
	connections []connectionWrite
}

func (f *fakeWriter) WriteFanState(fanID, model string, fields map[string]any, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateWrite{fanID, model, fields, at})
}

func (f *fakeWriter) WriteConnectionEvent(fanID string, connected bool, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, connectionWrite{fanID, connected})
}

type statsFunc func() controller.Stats

func (f statsFunc) Stats() controller.Stats { return f() }

func za5(t *testing.T) (*fan.Device, *miiotest.FakeTransport) {
	t.Helper()
	f := miiotest.NewFakeTransport("zhimi.fan.za5", "42")
	d, err := fan.NewDevice(f, "", "", "Bedroom Fan")
	require.NoError(t, err)
	require.NoError(t, d.Attach(context.Background(), f))
	return d, f
}

func p5(t *testing.T) (*fan.Device, *miiotest.FakeTransport) {
	t.Helper()
	f := miiotest.NewFakeTransport("dmaker.fan.p5", "1")
	f.SetProperty("power", true)
	f.SetProperty("speed", 60)
	d, err := fan.NewDevice(f, "", "", "Bedroom Fan")
	require.NoError(t, err)
	require.NoError(t, d.Attach(context.Background(), f))
	_, err = d.Refresh(context.Background())
	require.NoError(t, err)
	return d, f
}

func TestStatusFieldsOnlySupported(t *testing.T) {
	d, _ := p5(t)
	fields := statusFields(d.Status())

	assert.Equal(t, true, fields["power"])
	assert.Equal(t, 60, fields["rotation_speed"])
	assert.Contains(t, fields, "angle")
	assert.NotContains(t, fields, "temperature")
	assert.NotContains(t, fields, "ioniser")

	zd, _ := za5(t)
	zfields := statusFields(zd.Status())
	assert.Contains(t, zfields, "temperature")
	assert.Contains(t, zfields, "ioniser")
}

func TestAsFloat(t *testing.T) {
	assert.Equal(t, 1.0, asFloat(true))
	assert.Equal(t, 0.0, asFloat(false))
	assert.Equal(t, 7.0, asFloat(7))
	assert.Equal(t, 21.5, asFloat(21.5))
	assert.Equal(t, 0.0, asFloat("on"))
}

func TestInfluxWriterWritesStatus(t *testing.T) {
	w := &fakeWriter{}
	iw := NewInfluxWriter("fan-bedroom", w)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iw.now = func() time.Time { return fixed }

	iw.PropertiesUpdated(fan.Snapshot{"power": true})
	assert.Empty(t, w.states, "no device yet")

	d, _ := p5(t)
	iw.DeviceReady(d)
	iw.Connected(d)
	iw.PropertiesUpdated(d.Properties())
	iw.Disconnected()

	require.Len(t, w.states, 1)
	assert.Equal(t, "fan-bedroom", w.states[0].fanID)
	assert.Equal(t, "dmaker.fan.p5", w.states[0].model)
	assert.Equal(t, fixed, w.states[0].at)
	assert.Equal(t, true, w.states[0].fields["power"])

	assert.Equal(t, []connectionWrite{{"fan-bedroom", true}, {"fan-bedroom", false}}, w.connections)
}

// gather returns the metric families of the registry by name.
func gather(t *testing.T, m *Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func gaugeFor(t *testing.T, mf *dto.MetricFamily, label, value string) float64 {
	t.Helper()
	require.NotNil(t, mf)
	for _, metric := range mf.GetMetric() {
		if labelValue(metric, label) == value {
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("no %s metric with %s=%q", mf.GetName(), label, value)
	return 0
}

func TestMetricsControllerCounters(t *testing.T) {
	stats := controller.Stats{ConnectAttempts: 5, Connects: 2, Polls: 40, PollFailures: 1, Disconnects: 1, Connected: true}
	m := NewMetrics("fan-bedroom", statsFunc(func() controller.Stats { return stats }))

	families := gather(t, m)
	counter := func(name string) float64 {
		mf := families[name]
		require.NotNil(t, mf, name)
		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(t, "fan-bedroom", labelValue(mf.GetMetric()[0], "fan_id"))
		return mf.GetMetric()[0].GetCounter().GetValue()
	}

	assert.Equal(t, 5.0, counter("graylogic_fan_connect_attempts_total"))
	assert.Equal(t, 2.0, counter("graylogic_fan_connects_total"))
	assert.Equal(t, 40.0, counter("graylogic_fan_polls_total"))
	assert.Equal(t, 1.0, counter("graylogic_fan_poll_failures_total"))
	assert.Equal(t, 1.0, counter("graylogic_fan_disconnects_total"))

	connected := families["graylogic_fan_connected"]
	require.NotNil(t, connected)
	assert.Equal(t, 1.0, connected.GetMetric()[0].GetGauge().GetValue())
}

func TestMetricsWithoutStats(t *testing.T) {
	m := NewMetrics("fan-bedroom", nil)
	assert.NotContains(t, gather(t, m), "graylogic_fan_polls_total")
}

func TestMetricsStatusGauges(t *testing.T) {
	m := NewMetrics("fan-bedroom", nil)
	d, _ := p5(t)

	m.DeviceReady(d)
	m.Connected(d)
	m.PropertiesUpdated(d.Properties())
	m.Disconnected()

	families := gather(t, m)
	state := families["graylogic_fan_state"]
	assert.Equal(t, 1.0, gaugeFor(t, state, "field", "power"))
	assert.Equal(t, 60.0, gaugeFor(t, state, "field", "rotation_speed"))

	info := families["graylogic_fan_info"]
	assert.Equal(t, 1.0, gaugeFor(t, info, "model", "dmaker.fan.p5"))
	assert.Equal(t, "miio", labelValue(info.GetMetric()[0], "protocol"))

	events := families["graylogic_fan_connection_events_total"]
	require.NotNil(t, events)
	assert.Len(t, events.GetMetric(), 2)

	assert.Positive(t, families["graylogic_fan_last_update_timestamp_seconds"].GetMetric()[0].GetGauge().GetValue())
}

func TestMetricsDeviceReadyResetsInfo(t *testing.T) {
	m := NewMetrics("fan-bedroom", nil)
	first, _ := p5(t)
	second, _ := za5(t)

	m.DeviceReady(first)
	m.DeviceReady(second)

	info := gather(t, m)["graylogic_fan_info"]
	require.Len(t, info.GetMetric(), 1)
	assert.Equal(t, "zhimi.fan.za5", labelValue(info.GetMetric()[0], "model"))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("fan-bedroom", statsFunc(func() controller.Stats { return controller.Stats{Polls: 3} }))
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `graylogic_fan_polls_total{fan_id="fan-bedroom"} 3`)
}
