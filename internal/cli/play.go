// ABOUTME: play subcommand
// ABOUTME: Plays an audio file or generated tone through the output device
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/nocarryr/go-sounddevice/internal/app"
	"github.com/nocarryr/go-sounddevice/pkg/audio/resample"
	"github.com/nocarryr/go-sounddevice/pkg/player"
	"github.com/nocarryr/go-sounddevice/pkg/source"
	"github.com/spf13/cobra"
)

type playOptions struct {
	tones     []float64
	amplitude float64
	duration  time.Duration
	quality   string
	channels  int
}

func newPlayCmd(g *globals) *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play [FILE]",
		Short: "Play a file or a test tone",
		Long: `Play decodes an MP3, WAV or FLAC file, or generates a sine tone with --tone,
converts it to the stream's rate and channel count, and plays it`,
		Example: `  sounddevice play song.mp3
  sounddevice play --tone 440 --tone 880 --duration 3s`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: streamAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.play(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.Float64SliceVarP(&opts.tones, "tone", "t", nil, "tone frequency in Hz; repeat to mix tones")
	f.Float64Var(&opts.amplitude, "amplitude", 0.5, "tone amplitude (0-1)")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "stop after this long (default: whole file, 5s for tones)")
	f.StringVar(&opts.quality, "quality", "medium", "resampler quality (quick, low, medium, high, veryhigh)")
	f.IntVarP(&opts.channels, "channels", "c", 0, "output channels (default from config)")
	return cmd
}

func (g *globals) play(cmd *cobra.Command, args []string, opts playOptions) error {
	if len(args) == 0 && len(opts.tones) == 0 {
		return fmt.Errorf("nothing to play: give a file or --tone")
	}
	if len(args) > 0 && len(opts.tones) > 0 {
		return fmt.Errorf("give either a file or --tone, not both")
	}
	quality, err := resample.ParseQuality(opts.quality)
	if err != nil {
		return err
	}

	settings := g.settings
	settings.Stream.InputChannels = 0
	if opts.channels > 0 {
		settings.Stream.OutputChannels = opts.channels
	}

	var src source.Source
	if len(args) > 0 {
		src, err = source.Open(args[0])
	} else {
		if opts.duration == 0 {
			opts.duration = 5 * time.Second
		}
		src, err = source.NewTone(source.ToneConfig{
			Frequencies: opts.tones,
			Amplitude:   float32(opts.amplitude),
			SampleRate:  settings.Stream.SampleRate,
			Channels:    settings.Stream.OutputChannels,
		})
	}
	if err != nil {
		return err
	}

	sess, err := g.newSession(cmd, src.Name())
	if err != nil {
		_ = src.Close()
		return err
	}
	defer sess.Close()

	p, err := player.New(sess.Stream(), src, player.Config{
		Duration: opts.duration,
		Quality:  quality,
		Logger:   g.logger,
	})
	if err != nil {
		_ = src.Close()
		return err
	}
	defer p.Close()

	sess.SetProgress(func() app.Progress {
		st := p.Stats()
		return app.Progress{Written: st.Written, Dropped: st.Dropped, Level: p.Level()}
	})

	return sess.Run(cmd.Context(), func(ctx context.Context) error {
		s := sess.Stream()
		if err := s.Open(); err != nil {
			return err
		}
		defer s.Stop()

		if err := p.Run(ctx); err != nil {
			return err
		}
		st := p.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Played %d blocks of %s (%d underflows)\n",
			st.Written, src.Name(), st.Underflows)
		return nil
	})
}
