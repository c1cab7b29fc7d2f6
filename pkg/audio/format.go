// ABOUTME: Sample format registry for hardware-native sample encodings
// ABOUTME: Closed enum of formats with their bit widths and float multipliers
package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFormat is returned when a format name is not in the registry
	ErrUnknownFormat = errors.New("unknown sample format")

	// ErrUnsupportedFormat is returned when a SampleFormat value is outside the catalog
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// SampleFormat identifies one of the supported binary sample encodings.
// The zero value is not a valid format.
type SampleFormat uint8

const (
	Float32 SampleFormat = iota + 1
	Int32
	Int24
	Int16
	Int8
	Uint8
)

// FormatInfo describes the conversion parameters of a SampleFormat
type FormatInfo struct {
	Name       string
	BitWidth   int
	ByteWidth  int
	Signed     bool
	Is24Bit    bool
	Multiplier float64
}

// registry is indexed by SampleFormat and never modified after init
var registry = [...]FormatInfo{
	Float32: {Name: "float32", BitWidth: 32, ByteWidth: 4, Signed: true, Multiplier: 1},
	Int32:   {Name: "int32", BitWidth: 32, ByteWidth: 4, Signed: true, Multiplier: 1 << 31},
	Int24:   {Name: "int24", BitWidth: 24, ByteWidth: 3, Signed: true, Is24Bit: true, Multiplier: 1 << 23},
	Int16:   {Name: "int16", BitWidth: 16, ByteWidth: 2, Signed: true, Multiplier: 1 << 15},
	Int8:    {Name: "int8", BitWidth: 8, ByteWidth: 1, Signed: true, Multiplier: 1 << 7},
	Uint8:   {Name: "uint8", BitWidth: 8, ByteWidth: 1, Signed: false, Multiplier: 1 << 7},
}

var catalog = []SampleFormat{Float32, Int32, Int24, Int16, Int8, Uint8}

// Formats returns every supported format in catalog order
func Formats() []SampleFormat {
	out := make([]SampleFormat, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a format by name ("float32", "int16", ...).
// Names are matched case-insensitively; a leading "pa" prefix is accepted
// so PortAudio-style names such as "paInt16" resolve too.
func Lookup(name string) (SampleFormat, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "pa")
	for _, f := range catalog {
		if registry[f].Name == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ParseFormat is Lookup for callers decoding names from text
func ParseFormat(text string) (SampleFormat, error) {
	return Lookup(text)
}

// Valid reports whether f is a member of the catalog
func (f SampleFormat) Valid() bool {
	return f >= Float32 && f <= Uint8
}

// Info returns the format's conversion parameters.
// It returns the zero FormatInfo for invalid values.
func (f SampleFormat) Info() FormatInfo {
	if !f.Valid() {
		return FormatInfo{}
	}
	return registry[f]
}

func (f SampleFormat) Name() string        { return f.Info().Name }
func (f SampleFormat) BitWidth() int       { return f.Info().BitWidth }
func (f SampleFormat) ByteWidth() int      { return f.Info().ByteWidth }
func (f SampleFormat) Signed() bool        { return f.Info().Signed }
func (f SampleFormat) Is24Bit() bool       { return f.Info().Is24Bit }
func (f SampleFormat) Multiplier() float64 { return f.Info().Multiplier }

// IsFloat reports whether f is the canonical float32 representation
func (f SampleFormat) IsFloat() bool {
	return f == Float32
}

func (f SampleFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("SampleFormat(%d)", uint8(f))
	}
	return registry[f].Name
}

// MarshalText implements encoding.TextMarshaler
func (f SampleFormat) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, uint8(f))
	}
	return []byte(registry[f].Name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *SampleFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
