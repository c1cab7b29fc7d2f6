// ABOUTME: Bubbletea model for the stream monitor TUI
// ABOUTME: Defines monitor state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
)

// Model represents the TUI state
type Model struct {
	// Stream
	engine     string
	format     string
	sampleRate float64
	blockSize  int
	inputs     int
	outputs    int
	state      string

	// Clock
	streamTime    float64
	block         int64
	effectiveRate float64
	drift         float64
	quality       clock.Quality

	// Activity
	title  string
	level  float64
	volume int
	muted  bool

	// Stats
	callbacks  uint64
	underflows uint64
	overflows  uint64
	inQueued   int
	inCap      int
	outQueued  int
	outCap     int
	written    int64
	dropped    int64

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64
	memSys     uint64

	// Dimensions
	width  int
	height int

	volumeCtrl *VolumeControl
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders stream state and clock quality
func (m Model) renderHeader() string {
	state := m.state
	if state == "" {
		state = "closed"
	}

	clockIcon := "✗"
	clockText := "No estimate"
	switch m.quality {
	case clock.QualityGood:
		clockIcon = "✓"
		clockText = fmt.Sprintf("%.2f Hz (drift: %+.1fppm)", m.effectiveRate, m.drift*1e6)
	case clock.QualityDegraded:
		clockIcon = "⚠"
		clockText = fmt.Sprintf("Degraded (%.2f Hz)", m.effectiveRate)
	}

	return fmt.Sprintf(`┌─ Sound Device Monitor ───────────────────────────────┐
│ State:  %-45s │
│ Clock:  %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(fmt.Sprintf("%s (%s)", state, m.engine), 45), clockIcon, truncate(clockText, 42))
}

// renderStreamInfo renders the stream format and position
func (m Model) renderStreamInfo() string {
	if m.format == "" {
		return "│ No stream                                            │\n"
	}

	s := ""
	if m.title != "" {
		s += fmt.Sprintf("│ Source: %-44s │\n", truncate(m.title, 44))
	}
	s += fmt.Sprintf("│ Format: %-44s │\n", truncate(fmt.Sprintf("%s %gHz %d-frame blocks", m.format, m.sampleRate, m.blockSize), 44))
	s += fmt.Sprintf("│ Chans:  %-44s │\n", fmt.Sprintf("in %s, out %s", channelName(m.inputs), channelName(m.outputs)))
	s += fmt.Sprintf("│ Time:   %-44s │\n", fmt.Sprintf("%s (block %d)", formatTime(m.streamTime), m.block))

	return s
}

// renderControls renders volume, level and buffer fill
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)
	s := "│                                                      │\n"
	s += fmt.Sprintf("│ Volume: [%s] %-31s │\n", volumeBar, fmt.Sprintf("%d%%%s", m.volume, muteIcon))
	s += fmt.Sprintf("│ Level:  %-44s │\n", formatLevel(m.level))
	if m.inCap > 0 {
		s += fmt.Sprintf("│ In:     [%s] %-31s │\n", renderBar(m.inQueued, m.inCap, 10), fmt.Sprintf("%d/%d blocks", m.inQueued, m.inCap))
	}
	if m.outCap > 0 {
		s += fmt.Sprintf("│ Out:    [%s] %-31s │\n", renderBar(m.outQueued, m.outCap, 10), fmt.Sprintf("%d/%d blocks", m.outQueued, m.outCap))
	}
	return s
}

// renderStats renders callback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  %-44s │
│         %-44s │
│                                                      │
`, fmt.Sprintf("CB: %d  Under: %d  Over: %d", m.callbacks, m.underflows, m.overflows),
		fmt.Sprintf("Written: %d  Dropped: %d", m.written, m.dropped))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  d:Debug  q:Quit                  │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Goroutines: %-38d │
│   Mem: %-45s │
│   Clock drift: %-37s │
`, m.goroutines,
		fmt.Sprintf("%.1f MiB alloc, %.1f MiB sys", float64(m.memAlloc)/(1<<20), float64(m.memSys)/(1<<20)),
		fmt.Sprintf("%+.3e", m.drift))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.sendVolume()
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.sendVolume()
		}
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume forwards the volume state without blocking the UI
func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Engine != "" {
		m.engine = msg.Engine
	}
	if msg.Format != "" {
		m.format = msg.Format
		m.sampleRate = msg.SampleRate
		m.blockSize = msg.BlockSize
		m.inputs = msg.InputChannels
		m.outputs = msg.OutputChannels
	}
	if msg.Title != "" {
		m.title = msg.Title
	}
	if msg.Time != nil {
		m.streamTime = msg.Time.PaTime()
		m.block = msg.Time.Block()
	}
	if msg.Observations >= 2 {
		m.effectiveRate = msg.EffectiveRate
		m.drift = msg.Drift
		m.quality = msg.Quality
	} else if msg.Observations > 0 {
		m.quality = clock.QualityLost
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Stats != nil {
		m.callbacks = msg.Stats.Callbacks
		m.underflows = msg.Stats.Underflows
		m.overflows = msg.Stats.Overflows
		m.inQueued = msg.Stats.InputQueued
		m.inCap = msg.Stats.InputCapacity
		m.outQueued = msg.Stats.OutputQueued
		m.outCap = msg.Stats.OutputCapacity
		m.written = msg.Written
		m.dropped = msg.Dropped
		m.level = msg.Level
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 0:
		return "none"
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d ch", channels)
	}
}

func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d.%03d", total/60, total%60, int64(seconds*1000)%1000)
}

func formatLevel(rms float64) string {
	if rms <= 0 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", audio.Decibels(rms))
}
