// ABOUTME: SampleTime value type for sample-accurate stream positions
// ABOUTME: Immutable; every derived view returns a new value
package clock

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidArgument is returned for a non-positive sample rate or block size
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateMismatch is returned when combining SampleTimes of different sample rates
	ErrRateMismatch = errors.New("sample rate mismatch")
)

// SampleTime is a position in a stream.
//
// The position is stored as a sample index; block and block index are
// derived with floor division so BlockIndex is always in [0, BlockSize).
// Equality and ordering compare relative time, so values with different
// sample rates or block sizes compare by elapsed time.
type SampleTime struct {
	sampleRate float64
	blockSize  int
	index      int64
	timeOffset float64
}

// New returns the zero position of a stream with the given rate and block size
func New(sampleRate float64, blockSize int) (SampleTime, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return SampleTime{}, fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidArgument, sampleRate)
	}
	if blockSize <= 0 {
		return SampleTime{}, fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidArgument, blockSize)
	}
	return SampleTime{sampleRate: sampleRate, blockSize: blockSize}, nil
}

// MustNew is like New but panics on invalid arguments
func MustNew(sampleRate float64, blockSize int) SampleTime {
	t, err := New(sampleRate, blockSize)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether t was never initialized through New
func (t SampleTime) IsZero() bool {
	return t.sampleRate == 0
}

func (t SampleTime) SampleRate() float64 { return t.sampleRate }
func (t SampleTime) BlockSize() int      { return t.blockSize }
func (t SampleTime) SampleIndex() int64  { return t.index }
func (t SampleTime) TimeOffset() float64 { return t.timeOffset }

// Block returns the block number containing the current sample
func (t SampleTime) Block() int64 {
	return floorDiv(t.index, int64(t.blockSize))
}

// BlockIndex returns the position within the current block
func (t SampleTime) BlockIndex() int {
	return int(t.index - floorDiv(t.index, int64(t.blockSize))*int64(t.blockSize))
}

// RelTime returns the elapsed stream time in seconds
func (t SampleTime) RelTime() float64 {
	return float64(t.index) / t.sampleRate
}

// PaTime returns RelTime biased by the time offset
func (t SampleTime) PaTime() float64 {
	return t.RelTime() + t.timeOffset
}

// WithBlock returns t moved to block b, keeping the block index
func (t SampleTime) WithBlock(b int64) SampleTime {
	t.index = b*int64(t.blockSize) + int64(t.BlockIndex())
	return t
}

// WithBlockIndex returns t with the index inside the current block set to i.
// Values outside [0, BlockSize) carry into the block number.
func (t SampleTime) WithBlockIndex(i int) SampleTime {
	t.index = t.Block()*int64(t.blockSize) + int64(i)
	return t
}

// WithSampleIndex returns t at absolute sample idx. The time offset is kept.
func (t SampleTime) WithSampleIndex(idx int64) SampleTime {
	t.index = idx
	return t
}

// WithRelTime returns t at the sample nearest to rel seconds
func (t SampleTime) WithRelTime(rel float64) SampleTime {
	t.index = int64(math.Round(rel * t.sampleRate))
	return t
}

// WithPaTime returns t at the sample nearest to pa - TimeOffset seconds
func (t SampleTime) WithPaTime(pa float64) SampleTime {
	return t.WithRelTime(pa - t.timeOffset)
}

// WithTimeOffset returns t with a new offset. Position is unchanged.
func (t SampleTime) WithTimeOffset(offset float64) SampleTime {
	t.timeOffset = offset
	return t
}

// WithSampleRate converts t to another sample rate, keeping relative time
func (t SampleTime) WithSampleRate(sampleRate float64) (SampleTime, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return t, fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidArgument, sampleRate)
	}
	rel := t.RelTime()
	t.sampleRate = sampleRate
	return t.WithRelTime(rel), nil
}

// Add returns t shifted forward by seconds
func (t SampleTime) Add(seconds float64) SampleTime {
	return t.WithRelTime(t.RelTime() + seconds)
}

// Sub returns t shifted backward by seconds
func (t SampleTime) Sub(seconds float64) SampleTime {
	return t.WithRelTime(t.RelTime() - seconds)
}

// AddDuration returns t shifted by d
func (t SampleTime) AddDuration(d time.Duration) SampleTime {
	return t.Add(d.Seconds())
}

// AdvancedBy is AddDuration
func (t SampleTime) AdvancedBy(d time.Duration) SampleTime {
	return t.AddDuration(d)
}

// AdvancedBlocks returns t moved n whole blocks
func (t SampleTime) AdvancedBlocks(n int64) SampleTime {
	t.index += n * int64(t.blockSize)
	return t
}

// AdvancedSamples returns t moved n samples
func (t SampleTime) AdvancedSamples(n int64) SampleTime {
	t.index += n
	return t
}

// EndTime returns the first block boundary at or after t whose pa_time
// reaches seconds. A duration of zero or less returns t.
func (t SampleTime) EndTime(seconds float64) SampleTime {
	end := t
	for end.PaTime() < seconds {
		end = end.AdvancedBlocks(1)
	}
	return end
}

// AddTime returns a value whose sample index is the sum of both operands.
// The time offset and block size come from t.
func (t SampleTime) AddTime(o SampleTime) (SampleTime, error) {
	if t.sampleRate != o.sampleRate {
		return t, fmt.Errorf("%w: %v != %v", ErrRateMismatch, t.sampleRate, o.sampleRate)
	}
	t.index += o.index
	return t, nil
}

// SubTime returns a value whose sample index is t's minus o's.
// The time offset and block size come from t.
func (t SampleTime) SubTime(o SampleTime) (SampleTime, error) {
	if t.sampleRate != o.sampleRate {
		return t, fmt.Errorf("%w: %v != %v", ErrRateMismatch, t.sampleRate, o.sampleRate)
	}
	t.index -= o.index
	return t, nil
}

// Compare returns -1, 0 or +1 comparing relative times
func (t SampleTime) Compare(o SampleTime) int {
	a, b := t.RelTime(), o.RelTime()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether both values are at the same relative time
func (t SampleTime) Equal(o SampleTime) bool { return t.Compare(o) == 0 }

// Before reports whether t is earlier than o
func (t SampleTime) Before(o SampleTime) bool { return t.Compare(o) < 0 }

// After reports whether t is later than o
func (t SampleTime) After(o SampleTime) bool { return t.Compare(o) > 0 }

func (t SampleTime) String() string {
	return fmt.Sprintf("%d:%d @ %.6fs (offset %.6f)", t.Block(), t.BlockIndex(), t.RelTime(), t.timeOffset)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
