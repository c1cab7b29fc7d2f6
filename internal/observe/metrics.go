// ABOUTME: Observable stream metrics read from stream stats at collection time
// ABOUTME: Nothing is recorded from the audio callback itself
package observe

import (
	"context"

	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics
const meterName = "github.com/nocarryr/go-sounddevice"

// Observed is the part of a stream the metrics read
type Observed interface {
	ID() uuid.UUID
	Stats() stream.Stats
	Timing() stream.Timing
}

// StreamMetrics holds the observable instruments for one stream
type StreamMetrics struct {
	Callbacks      metric.Int64ObservableCounter
	Underflows     metric.Int64ObservableCounter
	Overflows      metric.Int64ObservableCounter
	Frames         metric.Int64ObservableCounter
	BufferQueued   metric.Int64ObservableGauge
	BufferCapacity metric.Int64ObservableGauge
	EffectiveRate  metric.Float64ObservableGauge
	Drift          metric.Float64ObservableGauge

	registration metric.Registration
}

// RegisterStream creates the instruments and a callback that observes s
func RegisterStream(mp metric.MeterProvider, s Observed) (*StreamMetrics, error) {
	m := mp.Meter(meterName)
	var err error
	sm := &StreamMetrics{}

	if sm.Callbacks, err = m.Int64ObservableCounter("sounddevice.stream.callbacks",
		metric.WithDescription("Engine callbacks processed while running."),
	); err != nil {
		return nil, err
	}
	if sm.Underflows, err = m.Int64ObservableCounter("sounddevice.stream.underflows",
		metric.WithDescription("Playback blocks replaced with silence."),
	); err != nil {
		return nil, err
	}
	if sm.Overflows, err = m.Int64ObservableCounter("sounddevice.stream.overflows",
		metric.WithDescription("Capture blocks dropped because the input buffer was full."),
	); err != nil {
		return nil, err
	}
	if sm.Frames, err = m.Int64ObservableCounter("sounddevice.stream.frames",
		metric.WithDescription("Frames processed by the callback."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if sm.BufferQueued, err = m.Int64ObservableGauge("sounddevice.buffer.queued",
		metric.WithDescription("Blocks ready in a sample buffer."),
		metric.WithUnit("{block}"),
	); err != nil {
		return nil, err
	}
	if sm.BufferCapacity, err = m.Int64ObservableGauge("sounddevice.buffer.capacity",
		metric.WithDescription("Block slots in a sample buffer."),
		metric.WithUnit("{block}"),
	); err != nil {
		return nil, err
	}
	if sm.EffectiveRate, err = m.Float64ObservableGauge("sounddevice.clock.effective_rate",
		metric.WithDescription("Sample rate measured against the host clock."),
		metric.WithUnit("Hz"),
	); err != nil {
		return nil, err
	}
	if sm.Drift, err = m.Float64ObservableGauge("sounddevice.clock.drift",
		metric.WithDescription("Relative drift of the device clock from the host clock."),
	); err != nil {
		return nil, err
	}

	streamAttr := attribute.String("stream", s.ID().String())
	inputAttrs := metric.WithAttributes(streamAttr, attribute.String("direction", "input"))
	outputAttrs := metric.WithAttributes(streamAttr, attribute.String("direction", "output"))
	attrs := metric.WithAttributes(streamAttr)

	sm.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := s.Stats()
		o.ObserveInt64(sm.Callbacks, int64(st.Callbacks), attrs)
		o.ObserveInt64(sm.Underflows, int64(st.Underflows), attrs)
		o.ObserveInt64(sm.Overflows, int64(st.Overflows), attrs)
		o.ObserveInt64(sm.Frames, st.Frames, attrs)
		if st.InputCapacity > 0 {
			o.ObserveInt64(sm.BufferQueued, int64(st.InputQueued), inputAttrs)
			o.ObserveInt64(sm.BufferCapacity, int64(st.InputCapacity), inputAttrs)
		}
		if st.OutputCapacity > 0 {
			o.ObserveInt64(sm.BufferQueued, int64(st.OutputQueued), outputAttrs)
			o.ObserveInt64(sm.BufferCapacity, int64(st.OutputCapacity), outputAttrs)
		}

		timing := s.Timing()
		if timing.Observations >= 2 {
			o.ObserveFloat64(sm.EffectiveRate, timing.EffectiveRate, attrs)
			o.ObserveFloat64(sm.Drift, timing.Drift, attrs)
		}
		return nil
	},
		sm.Callbacks, sm.Underflows, sm.Overflows, sm.Frames,
		sm.BufferQueued, sm.BufferCapacity, sm.EffectiveRate, sm.Drift,
	)
	if err != nil {
		return nil, err
	}
	return sm, nil
}

// Unregister stops observing the stream
func (sm *StreamMetrics) Unregister() error {
	return sm.registration.Unregister()
}
