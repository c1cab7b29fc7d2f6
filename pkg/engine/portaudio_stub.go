//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package engine

import (
	"errors"
	"log/slog"

	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio engine implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio engine
func NewPortAudio(*slog.Logger) stream.Engine {
	return &PortAudio{}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Open(stream.Config, stream.Callback) error { return errPortAudioDisabled }
func (p *PortAudio) Start() error                              { return errPortAudioDisabled }
func (p *PortAudio) Stop() error                               { return nil }
func (p *PortAudio) Close() error                              { return nil }
