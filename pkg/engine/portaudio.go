//go:build portaudio

// ABOUTME: PortAudio engine implementation
// ABOUTME: Cross-platform default-device streams using PortAudio
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/gordonklaus/portaudio"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// PortAudio engine implementation
type PortAudio struct {
	logger *slog.Logger

	mu          sync.Mutex
	paStream    *portaudio.Stream
	cfg         stream.Config
	cb          stream.Callback
	initialized bool
}

// NewPortAudio creates a new PortAudio engine
func NewPortAudio(logger *slog.Logger) stream.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudio{logger: logger}
}

func (p *PortAudio) Name() string { return "portaudio" }

// bytesOf views a typed sample slice as its raw bytes without copying
func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

func (p *PortAudio) invoke(out, in []byte, info portaudio.StreamCallbackTimeInfo) {
	frames := p.cfg.BlockSize
	if p.cfg.OutputChannels > 0 && len(out) > 0 {
		frames = len(out) / (p.cfg.OutputChannels * p.cfg.Format.ByteWidth())
	} else if p.cfg.InputChannels > 0 && len(in) > 0 {
		frames = len(in) / (p.cfg.InputChannels * p.cfg.Format.ByteWidth())
	}
	p.cb(out, in, frames, info.CurrentTime.Seconds())
}

// callbackFor returns a typed PortAudio callback for the stream's format
func (p *PortAudio) callbackFor(f audio.SampleFormat) (interface{}, error) {
	switch f {
	case audio.Float32:
		return func(in, out []float32, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(bytesOf(out), bytesOf(in), info)
		}, nil
	case audio.Int32:
		return func(in, out []int32, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(bytesOf(out), bytesOf(in), info)
		}, nil
	case audio.Int24:
		return func(in, out []portaudio.Int24, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(bytesOf(out), bytesOf(in), info)
		}, nil
	case audio.Int16:
		return func(in, out []int16, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(bytesOf(out), bytesOf(in), info)
		}, nil
	case audio.Int8:
		return func(in, out []int8, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(bytesOf(out), bytesOf(in), info)
		}, nil
	case audio.Uint8:
		return func(in, out []uint8, info portaudio.StreamCallbackTimeInfo) {
			p.invoke(out, in, info)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", audio.ErrUnsupportedFormat, uint8(f))
	}
}

// Open initializes PortAudio and opens the default device stream
func (p *PortAudio) Open(cfg stream.Config, cb stream.Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paStream != nil {
		return fmt.Errorf("portaudio stream already open")
	}
	callback, err := p.callbackFor(cfg.Format)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	p.cfg = cfg
	p.cb = cb

	paStream, err := portaudio.OpenDefaultStream(cfg.InputChannels, cfg.OutputChannels, cfg.SampleRate, cfg.BlockSize, callback)
	if err != nil {
		p.terminate()
		if stream.IsInvalidSampleRate(err) {
			return fmt.Errorf("%w: %v Hz", stream.ErrInvalidSampleRate, cfg.SampleRate)
		}
		return fmt.Errorf("failed to open stream: %w", err)
	}
	p.paStream = paStream

	p.logger.Info("Audio engine initialized",
		"engine", p.Name(),
		"sample_rate", cfg.SampleRate,
		"block_size", cfg.BlockSize,
		"format", cfg.Format.String())
	return nil
}

// Start begins stream callbacks
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paStream == nil {
		return fmt.Errorf("portaudio stream not open")
	}
	return p.paStream.Start()
}

// Stop waits for pending buffers and the callback to finish
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paStream == nil {
		return nil
	}
	return p.paStream.Stop()
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.paStream != nil {
		err = p.paStream.Close()
		p.paStream = nil
	}
	p.terminate()
	return err
}

func (p *PortAudio) terminate() {
	if !p.initialized {
		return
	}
	if err := portaudio.Terminate(); err != nil {
		p.logger.Warn("portaudio terminate error", "error", err)
	}
	p.initialized = false
}
