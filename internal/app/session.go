// ABOUTME: Session orchestration for the command-line tools
// ABOUTME: Coordinates the stream, a job, the monitor TUI and the metrics endpoint
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nocarryr/go-sounddevice/internal/config"
	"github.com/nocarryr/go-sounddevice/internal/observe"
	"github.com/nocarryr/go-sounddevice/internal/ui"
	"github.com/nocarryr/go-sounddevice/internal/version"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	statusInterval  = 250 * time.Millisecond
	runtimeInterval = 2 * time.Second
	logInterval     = 2 * time.Second
)

// Options holds session settings that do not come from the config file
type Options struct {
	UseTUI bool
	// Title names what the session plays or records
	Title string
	// Engine overrides the engine named in the config
	Engine stream.Engine
	Logger *slog.Logger
}

// Progress reports job-specific counters to the monitor
type Progress struct {
	Written int64
	Dropped int64
	Level   float64
}

// Session owns one stream and everything watching it
type Session struct {
	settings *config.Config
	opts     Options
	logger   *slog.Logger
	stream   *stream.Stream
	engine   string

	progress atomic.Pointer[func() Progress]
	quit     atomic.Bool
}

// New builds the session's stream from settings
func New(settings *config.Config, opts Options) (*Session, error) {
	sc, err := settings.StreamConfig()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng := opts.Engine
	if eng == nil {
		eng, err = engine.New(settings.Engine.Name, engine.Options{
			Logger: logger,
			Null:   engine.NullConfig{SupportedRates: settings.Engine.SampleRates},
		})
		if err != nil {
			return nil, err
		}
	}

	s, err := stream.New(sc, eng,
		stream.WithLogger(logger),
		stream.WithVolume(settings.Stream.Volume))
	if err != nil {
		return nil, err
	}

	return &Session{
		settings: settings,
		opts:     opts,
		logger:   logger,
		stream:   s,
		engine:   eng.Name(),
	}, nil
}

// Stream returns the session's stream
func (s *Session) Stream() *stream.Stream {
	return s.stream
}

// Settings returns the configuration the session was built from
func (s *Session) Settings() *config.Config {
	return s.settings
}

// SetProgress registers fn to supply job counters to the monitor
func (s *Session) SetProgress(fn func() Progress) {
	s.progress.Store(&fn)
}

// Run executes job alongside the monitor and metrics server. It returns
// the job's error; a job cancelled by the user or by ctx is not an error.
func (s *Session) Run(ctx context.Context, job func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := s.settings.Metrics.Addr; addr != "" {
		stop, err := s.serveMetrics(ctx, g, gctx, addr)
		if err != nil {
			return err
		}
		defer stop()
	}

	if s.opts.UseTUI {
		s.runTUI(g, gctx, cancel)
	} else {
		g.Go(func() error {
			s.logLoop(gctx)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return job(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && (s.quit.Load() || ctx.Err() != nil) {
		s.logger.Info("Session interrupted")
		return nil
	}
	return err
}

// Close stops the stream
func (s *Session) Close() error {
	return s.stream.Stop()
}

// serveMetrics exposes the stream's metrics at /metrics until gctx is done
func (s *Session) serveMetrics(ctx context.Context, g *errgroup.Group, gctx context.Context, addr string) (func(), error) {
	mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version.Version})
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	sm, err := observe.RegisterStream(mp, s.stream)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to register stream metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		s.logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return func() {
		if err := sm.Unregister(); err != nil {
			s.logger.Warn("metrics unregister error", "error", err)
		}
		if err := shutdown(context.Background()); err != nil {
			s.logger.Warn("metrics provider shutdown error", "error", err)
		}
	}, nil
}

// runTUI starts the monitor and the loop feeding it
func (s *Session) runTUI(g *errgroup.Group, gctx context.Context, cancel context.CancelFunc) {
	volumeCtrl := ui.NewVolumeControl()
	prog, _ := ui.Run(volumeCtrl)

	g.Go(func() error {
		if _, err := prog.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.controlLoop(gctx, prog, volumeCtrl, cancel)
		return nil
	})
}

// controlLoop applies volume changes and periodically updates the TUI
func (s *Session) controlLoop(ctx context.Context, prog *tea.Program, volumeCtrl *ui.VolumeControl, cancel context.CancelFunc) {
	info := ui.StreamInfo(s.engine, s.stream.Config())
	info.Title = s.opts.Title
	info.Volume = s.stream.GetVolume()
	prog.Send(info)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeTicker := time.NewTicker(runtimeInterval)
	defer runtimeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			prog.Quit()
			return
		case vol := <-volumeCtrl.Changes:
			s.logger.Info("Volume change", "volume", vol.Volume, "muted", vol.Muted)
			s.stream.SetVolume(vol.Volume)
			s.stream.SetMuted(vol.Muted)
		case <-volumeCtrl.Quit:
			s.logger.Info("Received quit signal from TUI")
			s.quit.Store(true)
			cancel()
			return
		case <-runtimeTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			prog.Send(ui.StatusMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   m.Alloc,
				MemSys:     m.Sys,
			})
		case <-ticker.C:
			prog.Send(s.status())
		}
	}
}

// status merges stream counters with the job's progress
func (s *Session) status() ui.StatusMsg {
	msg := ui.StreamStatus(s.stream)
	if fn := s.progress.Load(); fn != nil {
		p := (*fn)()
		msg.Written = p.Written
		msg.Dropped = p.Dropped
		msg.Level = p.Level
	}
	return msg
}

// logLoop periodically logs stream health when there is no TUI
func (s *Session) logLoop(ctx context.Context) {
	ticker := time.NewTicker(logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.stream.Stats()
			if st.State == stream.StateClosed {
				continue
			}
			t := s.stream.Timing()
			s.logger.Info("Stream status",
				"state", st.State.String(),
				"time", s.stream.Time().PaTime(),
				"callbacks", st.Callbacks,
				"underflows", st.Underflows,
				"overflows", st.Overflows,
				"effective_rate", t.EffectiveRate,
				"clock", t.Quality.String())
		}
	}
}
