// ABOUTME: loopback subcommand
// ABOUTME: Duplex pass-through that copies captured blocks to the output
package cli

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/nocarryr/go-sounddevice/internal/app"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/spf13/cobra"
)

func newLoopbackCmd(g *globals) *cobra.Command {
	var (
		duration time.Duration
		channels int
	)

	cmd := &cobra.Command{
		Use:         "loopback",
		Short:       "Pass input through to output",
		Long:        `Loopback opens a duplex stream, copies every captured block to the output and reports underflows and overflows`,
		Args:        cobra.NoArgs,
		Annotations: streamAnnotations(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.loopback(cmd, duration, channels)
		},
	}

	f := cmd.Flags()
	f.DurationVarP(&duration, "duration", "d", 10*time.Second, "how long to run")
	f.IntVarP(&channels, "channels", "c", 2, "channels in each direction")
	return cmd
}

func (g *globals) loopback(cmd *cobra.Command, duration time.Duration, channels int) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", duration)
	}
	if channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", channels)
	}
	settings := g.settings
	settings.Stream.InputChannels = channels
	settings.Stream.OutputChannels = channels

	sess, err := g.newSession(cmd, "loopback")
	if err != nil {
		return err
	}
	defer sess.Close()

	var passed atomic.Int64
	var level atomic.Uint64
	sess.SetProgress(func() app.Progress {
		return app.Progress{
			Written: passed.Load(),
			Level:   math.Float64frombits(level.Load()),
		}
	})

	return sess.Run(cmd.Context(), func(ctx context.Context) error {
		s := sess.Stream()
		cfg := s.Config()
		start := clock.MustNew(cfg.SampleRate, cfg.BlockSize)
		end := start.EndTime(duration.Seconds())
		block := audio.NewBlock(channels, cfg.BlockSize)

		if err := s.Open(); err != nil {
			return err
		}
		defer s.Stop()

		for current := start; current.Before(end); current = current.AdvancedBlocks(1) {
			if _, err := s.ReadWait(ctx, block); err != nil {
				return err
			}
			level.Store(math.Float64bits(audio.RMS(block[0])))
			if err := s.WriteWait(ctx, block); err != nil {
				return err
			}
			passed.Add(1)
		}

		st := s.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Loopback passed %d blocks (%d underflows, %d overflows)\n",
			passed.Load(), st.Underflows, st.Overflows)
		return nil
	})
}
