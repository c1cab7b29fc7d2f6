// ABOUTME: Lock-free publication of callback timing to the application
// ABOUTME: Feeds the clock drift estimator from the application side
package stream

import (
	"math"
	"sync/atomic"

	"github.com/nocarryr/go-sounddevice/pkg/clock"
)

// observation is a single-writer seqlock holding the latest
// (sample index, host time) pair reported by the callback
type observation struct {
	seq   atomic.Uint64
	index atomic.Int64
	host  atomic.Uint64
}

func (o *observation) store(index int64, host float64) {
	o.seq.Add(1)
	o.index.Store(index)
	o.host.Store(math.Float64bits(host))
	o.seq.Add(1)
}

func (o *observation) load() (index int64, host float64, ok bool) {
	for i := 0; i < 8; i++ {
		before := o.seq.Load()
		if before == 0 {
			return 0, 0, false
		}
		if before&1 == 1 {
			continue
		}
		index = o.index.Load()
		host = math.Float64frombits(o.host.Load())
		if o.seq.Load() == before {
			return index, host, true
		}
	}
	return 0, 0, false
}

func (o *observation) reset() {
	o.seq.Store(0)
	o.index.Store(0)
	o.host.Store(0)
}

// Timing describes how the stream's sample clock relates to the engine's host clock
type Timing struct {
	StartTime     clock.SampleTime
	Offset        float64
	Drift         float64
	EffectiveRate float64
	Quality       clock.Quality
	Observations  int
}

// Timing folds the latest callback observation into the drift estimate
// and returns it. Call it from the application side, e.g. once per block.
func (s *Stream) Timing() Timing {
	s.driftMu.Lock()
	defer s.driftMu.Unlock()

	t := Timing{StartTime: s.StartTime(), Quality: clock.QualityLost}
	if s.drift == nil {
		return t
	}
	if idx, host, ok := s.timing.load(); ok && idx > s.observed {
		s.drift.Observe(idx, host)
		s.observed = idx
	}
	t.Offset = s.drift.Offset()
	t.Drift = s.drift.Drift()
	t.EffectiveRate = s.drift.EffectiveRate()
	t.Quality = s.drift.CheckQuality()
	t.Observations = s.drift.Observations()
	return t
}
