// ABOUTME: Device clock drift estimation
// ABOUTME: Tracks both offset AND drift between the sample clock and the host clock
package clock

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Quality represents estimate quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

const (
	defaultSmoothingRate = 0.1
	// residuals beyond this are treated as clock jumps (seconds)
	defaultMaxResidual = 0.050
	// residuals below this keep the estimate in QualityGood (seconds)
	goodResidual = 0.002
	lostAfter    = 5 * time.Second
)

// DriftEstimator relates a stream's sample clock to the host clock.
//
// Each observation pairs a sample index with the host time at which the
// engine reported it. The estimator keeps an offset (host time of sample
// zero) and a drift (host seconds gained per stream second), updated with a
// fixed-gain predictor so single late callbacks don't move the estimate.
type DriftEstimator struct {
	mu            sync.RWMutex
	sampleRate    float64
	offset        float64 // host seconds at rel_time zero
	drift         float64 // dimensionless: host s/stream s - 1
	lastRel       float64
	residual      float64
	sampleCount   int
	smoothingRate float64
	maxResidual   float64
	quality       Quality
	lastObserve   time.Time
	now           func() time.Time
	logger        *slog.Logger
}

// NewDriftEstimator creates an estimator for a stream at the nominal sample rate
func NewDriftEstimator(sampleRate float64, logger *slog.Logger) *DriftEstimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriftEstimator{
		sampleRate:    sampleRate,
		smoothingRate: defaultSmoothingRate,
		maxResidual:   defaultMaxResidual,
		quality:       QualityLost,
		now:           time.Now,
		logger:        logger,
	}
}

// Observe records that sampleIndex was processed at hostTime (seconds)
func (d *DriftEstimator) Observe(sampleIndex int64, hostTime float64) {
	rel := float64(sampleIndex) / d.sampleRate
	measured := hostTime - rel

	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastObserve = d.now()

	// First observation: initialize offset, no drift yet
	if d.sampleCount == 0 {
		d.offset = measured
		d.lastRel = rel
		d.sampleCount++
		d.quality = QualityGood
		d.logger.Debug("clock drift: initial offset", "offset", d.offset)
		return
	}

	dt := rel - d.lastRel
	if dt <= 0 {
		d.logger.Debug("clock drift: discarding non-monotonic observation", "sample_index", sampleIndex)
		return
	}

	// Second observation: calculate initial drift
	if d.sampleCount == 1 {
		d.drift = (measured - d.offset) / dt
		d.offset = measured
		d.lastRel = rel
		d.sampleCount++
		d.logger.Debug("clock drift: initialized", "drift", d.drift, "dt", dt)
		return
	}

	predicted := d.offset + d.drift*dt
	residual := measured - predicted

	if math.Abs(residual) > d.maxResidual {
		d.quality = QualityDegraded
		d.logger.Debug("clock drift: discarding observation", "residual", residual)
		return
	}

	d.offset = predicted + d.smoothingRate*residual
	d.drift += d.smoothingRate * residual / dt
	d.residual = residual
	d.lastRel = rel
	d.sampleCount++

	if math.Abs(residual) < goodResidual {
		d.quality = QualityGood
	} else {
		d.quality = QualityDegraded
	}
}

// Offset returns the estimated host time of the stream's first sample
func (d *DriftEstimator) Offset() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.offset - d.drift*d.lastRel
}

// Drift returns the estimated host seconds gained per stream second
func (d *DriftEstimator) Drift() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.drift
}

// EffectiveRate returns the device's sample rate measured in host time
func (d *DriftEstimator) EffectiveRate() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sampleRate / (1 + d.drift)
}

// HostTime predicts the host time at which t is processed
func (d *DriftEstimator) HostTime(t SampleTime) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rel := t.RelTime()
	return rel + d.offset + d.drift*(rel-d.lastRel)
}

// Observations returns the number of accepted observations
func (d *DriftEstimator) Observations() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sampleCount
}

// CheckQuality updates quality based on time since the last observation
func (d *DriftEstimator) CheckQuality() Quality {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sampleCount > 0 && d.now().Sub(d.lastObserve) > lostAfter {
		d.quality = QualityLost
	}
	return d.quality
}
