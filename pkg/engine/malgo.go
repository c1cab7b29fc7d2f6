// ABOUTME: Malgo-based audio engine for capture, playback and duplex streams
// ABOUTME: Uses miniaudio library via malgo; the device callback feeds the stream bridge
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// Malgo engine implementation using malgo/miniaudio library
type Malgo struct {
	logger *slog.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	cfg      stream.Config
	cb       stream.Callback
	started  time.Time
}

// NewMalgo creates a new Malgo engine
func NewMalgo(logger *slog.Logger) *Malgo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Malgo{logger: logger}
}

func (m *Malgo) Name() string { return "malgo" }

// malgoFormat maps a sample format to miniaudio's; int8 has no equivalent
func malgoFormat(f audio.SampleFormat) (malgo.FormatType, error) {
	switch f {
	case audio.Float32:
		return malgo.FormatF32, nil
	case audio.Int32:
		return malgo.FormatS32, nil
	case audio.Int24:
		return malgo.FormatS24, nil
	case audio.Int16:
		return malgo.FormatS16, nil
	case audio.Uint8:
		return malgo.FormatU8, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("%w: %s (supported by malgo: float32, int32, int24, int16, uint8)",
			audio.ErrUnsupportedFormat, f)
	}
}

func deviceType(cfg stream.Config) malgo.DeviceType {
	switch {
	case cfg.Duplex():
		return malgo.Duplex
	case cfg.InputChannels > 0:
		return malgo.Capture
	default:
		return malgo.Playback
	}
}

// Open initializes the device with the stream's format
func (m *Malgo) Open(cfg stream.Config, cb stream.Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo device already open")
	}

	format, err := malgoFormat(cfg.Format)
	if err != nil {
		return err
	}
	if cfg.SampleRate != math.Trunc(cfg.SampleRate) || cfg.SampleRate > math.MaxUint32 {
		return fmt.Errorf("%w: %v Hz", stream.ErrInvalidSampleRate, cfg.SampleRate)
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType(cfg))
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockSize)
	deviceConfig.Alsa.NoMMap = 1
	if cfg.OutputChannels > 0 {
		deviceConfig.Playback.Format = format
		deviceConfig.Playback.Channels = uint32(cfg.OutputChannels)
	}
	if cfg.InputChannels > 0 {
		deviceConfig.Capture.Format = format
		deviceConfig.Capture.Channels = uint32(cfg.InputChannels)
	}

	m.cfg = cfg
	m.cb = cb

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.releaseContext()
		return fmt.Errorf("failed to initialize %s device: %w", deviceTypeName(deviceType(cfg)), err)
	}
	m.device = device

	m.logger.Info("Audio engine initialized",
		"engine", m.Name(),
		"device", deviceTypeName(deviceType(cfg)),
		"sample_rate", cfg.SampleRate,
		"block_size", cfg.BlockSize,
		"format", formatName(format))
	return nil
}

// dataCallback is called by malgo on its real-time thread
func (m *Malgo) dataCallback(pOutput, pInput []byte, frameCount uint32) {
	host := time.Since(m.started).Seconds()
	m.cb(
		channelsOrNil(pOutput, m.cfg.OutputChannels),
		channelsOrNil(pInput, m.cfg.InputChannels),
		int(frameCount),
		host,
	)
}

// Start begins device callbacks
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("malgo device not open")
	}
	m.started = time.Now()
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Stop halts the device; miniaudio waits for the callback to return
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || !m.device.IsStarted() {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases device and context resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				m.logger.Warn("device stop error", "error", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}
	m.releaseContext()
	return nil
}

// releaseContext frees the malgo context (must hold m.mu)
func (m *Malgo) releaseContext() {
	if m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		m.logger.Warn("malgo context uninit error", "error", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}

func deviceTypeName(t malgo.DeviceType) string {
	switch t {
	case malgo.Duplex:
		return "duplex"
	case malgo.Capture:
		return "capture"
	default:
		return "playback"
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
