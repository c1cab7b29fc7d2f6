// ABOUTME: Tests for the observable stream metrics
// ABOUTME: Uses a manual reader and a fake stream to inspect collected data
package observe

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeStream struct {
	id     uuid.UUID
	stats  stream.Stats
	timing stream.Timing
}

func (f *fakeStream) ID() uuid.UUID         { return f.id }
func (f *fakeStream) Stats() stream.Stats   { return f.stats }
func (f *fakeStream) Timing() stream.Timing { return f.timing }

func newTestMetrics(t *testing.T, s Observed) (*StreamMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	sm, err := RegisterStream(mp, s)
	require.NoError(t, err)
	return sm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestCounters(t *testing.T) {
	fs := &fakeStream{
		id: uuid.New(),
		stats: stream.Stats{
			Callbacks:  10,
			Underflows: 2,
			Overflows:  1,
			Frames:     5120,
		},
	}
	_, reader := newTestMetrics(t, fs)
	rm := collect(t, reader)

	want := map[string]int64{
		"sounddevice.stream.callbacks":  10,
		"sounddevice.stream.underflows": 2,
		"sounddevice.stream.overflows":  1,
		"sounddevice.stream.frames":     5120,
	}
	for name, v := range want {
		t.Run(name, func(t *testing.T) {
			m := findMetric(rm, name)
			require.NotNil(t, m)
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected Sum[int64], got %T", m.Data)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, v, sum.DataPoints[0].Value)
			assert.True(t, sum.IsMonotonic)

			id, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("stream"))
			require.True(t, ok)
			assert.Equal(t, fs.id.String(), id.AsString())
		})
	}
}

func TestCountersFollowStats(t *testing.T) {
	fs := &fakeStream{id: uuid.New()}
	_, reader := newTestMetrics(t, fs)

	fs.stats.Callbacks = 3
	rm := collect(t, reader)
	sum := findMetric(rm, "sounddevice.stream.callbacks").Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	fs.stats.Callbacks = 7
	rm = collect(t, reader)
	sum = findMetric(rm, "sounddevice.stream.callbacks").Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(7), sum.DataPoints[0].Value)
}

func TestBufferGauges(t *testing.T) {
	fs := &fakeStream{
		id: uuid.New(),
		stats: stream.Stats{
			OutputQueued:   3,
			OutputCapacity: 8,
		},
	}
	_, reader := newTestMetrics(t, fs)
	rm := collect(t, reader)

	m := findMetric(rm, "sounddevice.buffer.queued")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected Gauge[int64], got %T", m.Data)

	// only the output buffer exists
	require.Len(t, gauge.DataPoints, 1)
	dp := gauge.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value)
	dir, ok := dp.Attributes.Value(attribute.Key("direction"))
	require.True(t, ok)
	assert.Equal(t, "output", dir.AsString())

	capacity := findMetric(rm, "sounddevice.buffer.capacity").Data.(metricdata.Gauge[int64])
	require.Len(t, capacity.DataPoints, 1)
	assert.Equal(t, int64(8), capacity.DataPoints[0].Value)
}

func TestClockGauges(t *testing.T) {
	fs := &fakeStream{id: uuid.New()}
	_, reader := newTestMetrics(t, fs)

	// not enough observations yet
	rm := collect(t, reader)
	assert.Nil(t, findMetric(rm, "sounddevice.clock.effective_rate"))

	fs.timing = stream.Timing{EffectiveRate: 48012.5, Drift: 2.5e-4, Observations: 4}
	rm = collect(t, reader)
	m := findMetric(rm, "sounddevice.clock.effective_rate")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok, "expected Gauge[float64], got %T", m.Data)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 48012.5, gauge.DataPoints[0].Value, 1e-9)

	drift := findMetric(rm, "sounddevice.clock.drift").Data.(metricdata.Gauge[float64])
	assert.InDelta(t, 2.5e-4, drift.DataPoints[0].Value, 1e-12)
}

func TestUnregister(t *testing.T) {
	fs := &fakeStream{id: uuid.New(), stats: stream.Stats{Callbacks: 1}}
	sm, reader := newTestMetrics(t, fs)

	require.NoError(t, sm.Unregister())
	rm := collect(t, reader)
	assert.Nil(t, findMetric(rm, "sounddevice.stream.callbacks"))
}
