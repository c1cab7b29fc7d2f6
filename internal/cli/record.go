// ABOUTME: record subcommand
// ABOUTME: Captures input blocks for a duration and saves WAV plus block stamps
package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nocarryr/go-sounddevice/internal/app"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/nocarryr/go-sounddevice/pkg/recorder"
	"github.com/spf13/cobra"
)

func newRecordCmd(g *globals) *cobra.Command {
	var (
		duration time.Duration
		channels int
	)

	cmd := &cobra.Command{
		Use:         "record OUTPUT.wav",
		Short:       "Record from the input device",
		Long:        `Record captures input for the given duration and writes a WAV file with a .blocks.yaml sidecar holding each block's timestamps`,
		Args:        cobra.ExactArgs(1),
		Annotations: streamAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.record(cmd, args[0], duration, channels)
		},
	}

	f := cmd.Flags()
	f.DurationVarP(&duration, "duration", "d", 5*time.Second, "recording length")
	f.IntVarP(&channels, "channels", "c", 0, "input channels (default from config, else 2)")
	f.Int("bit-depth", 0, "WAV bit depth: 0 for 32-bit float, or 8, 16, 24, 32 for integer PCM")
	g.bind(cmd, "bit-depth", "recorder.bit_depth")
	return cmd
}

func (g *globals) record(cmd *cobra.Command, path string, duration time.Duration, channels int) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", duration)
	}
	settings := g.settings
	switch {
	case channels > 0:
		settings.Stream.InputChannels = channels
	case settings.Stream.InputChannels == 0:
		settings.Stream.InputChannels = 2
	}
	settings.Stream.OutputChannels = 0

	sess, err := g.newSession(cmd, filepath.Base(path))
	if err != nil {
		return err
	}
	defer sess.Close()

	var blocks atomic.Int64
	var level atomic.Uint64
	rec, err := recorder.New(sess.Stream(),
		recorder.WithLogger(g.logger),
		recorder.WithPollInterval(settings.Recorder.PollInterval),
		recorder.WithBlockHook(func(_ clock.SampleTime, block [][]float32) {
			blocks.Add(1)
			level.Store(math.Float64bits(audio.RMS(block[0])))
		}),
	)
	if err != nil {
		return err
	}
	sess.SetProgress(func() app.Progress {
		return app.Progress{
			Written: blocks.Load(),
			Level:   math.Float64frombits(level.Load()),
		}
	})

	return sess.Run(cmd.Context(), func(ctx context.Context) error {
		r, err := rec.Record(ctx, duration)
		if err != nil {
			// keep what was captured before an interrupt
			if errors.Is(err, context.Canceled) && r != nil && len(r.Stamps) > 0 {
				if serr := r.Save(path, settings.Recorder.BitDepth); serr != nil {
					return errors.Join(err, serr)
				}
				g.logger.Info("Partial recording saved", "path", path, "blocks", len(r.Stamps))
			}
			return err
		}

		if err := r.Save(path, settings.Recorder.BitDepth); err != nil {
			return err
		}
		if gaps := r.Gaps(); len(gaps) > 0 {
			g.logger.Warn("Recording has gaps", "blocks", gaps)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d blocks (%s) to %s\n",
			len(r.Stamps), r.Duration().Round(time.Millisecond), path)
		return nil
	})
}
