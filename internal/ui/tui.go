// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and builds status messages from a stream
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// VolumeControl holds channels for volume control communication
type VolumeControl struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// VolumeChangeMsg carries a volume or mute change made in the UI
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg is sent when the user quits the UI
type QuitMsg struct{}

// NewVolumeControl creates a new volume control handler
func NewVolumeControl() *VolumeControl {
	return &VolumeControl{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// StatusMsg updates TUI state. Zero values leave the current state alone,
// except Stats which replaces every counter when set.
type StatusMsg struct {
	State          string
	Engine         string
	Format         string
	SampleRate     float64
	BlockSize      int
	InputChannels  int
	OutputChannels int
	Title          string

	Time          *clock.SampleTime
	EffectiveRate float64
	Drift         float64
	Quality       clock.Quality
	Observations  int

	Volume int
	Muted  *bool

	Stats   *stream.Stats
	Written int64
	Dropped int64
	Level   float64

	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// StreamInfo describes a stream's fixed configuration
func StreamInfo(engine string, cfg stream.Config) StatusMsg {
	return StatusMsg{
		Engine:         engine,
		Format:         cfg.Format.String(),
		SampleRate:     cfg.SampleRate,
		BlockSize:      cfg.BlockSize,
		InputChannels:  cfg.InputChannels,
		OutputChannels: cfg.OutputChannels,
	}
}

// StreamStatus builds a status update from the stream's live counters
func StreamStatus(s *stream.Stream) StatusMsg {
	st := s.Stats()
	t := s.Timing()
	now := s.Time()
	muted := s.IsMuted()
	return StatusMsg{
		State:         st.State.String(),
		Time:          &now,
		EffectiveRate: t.EffectiveRate,
		Drift:         t.Drift,
		Quality:       t.Quality,
		Observations:  t.Observations,
		Volume:        s.GetVolume(),
		Muted:         &muted,
		Stats:         &st,
	}
}

// NewModel creates a new TUI model
func NewModel(volCtrl *VolumeControl) Model {
	return Model{
		volume:     100,
		state:      "closed",
		quality:    clock.QualityLost,
		volumeCtrl: volCtrl,
	}
}

// Run creates the TUI program; the caller starts it
func Run(volCtrl *VolumeControl) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(volCtrl), tea.WithAltScreen())
	return p, nil
}
