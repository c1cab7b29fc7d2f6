// ABOUTME: Tool to watch a device clock against the host clock
// ABOUTME: Runs a silent stream and prints the drift estimate as it converges
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

var (
	engineName = flag.String("engine", "malgo", "Audio engine")
	sampleRate = flag.Float64("rate", 48000, "Sample rate (Hz)")
	blockSize  = flag.Int("block", 512, "Frames per block")
	input      = flag.Bool("input", false, "Watch a capture stream instead of playback")
	duration   = flag.Duration("duration", 30*time.Second, "How long to watch")
	interval   = flag.Duration("interval", time.Second, "Report interval")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Clock Drift Check ===")
	fmt.Println("This check will:")
	fmt.Println("1. Open a silent stream on the chosen engine")
	fmt.Println("2. Compare the sample clock with the engine's host clock")
	fmt.Println("3. Print the estimated offset, drift and effective sample rate")
	fmt.Println()

	cfg := stream.Config{
		SampleRate: *sampleRate,
		BlockSize:  *blockSize,
		Format:     audio.Float32,
	}
	if *input {
		cfg.InputChannels = 1
	} else {
		cfg.OutputChannels = 1
	}

	eng, err := engine.New(*engineName, engine.Options{})
	if err != nil {
		log.Fatalf("Engine error: %v", err)
	}
	s, err := stream.New(cfg, eng)
	if err != nil {
		log.Fatalf("Stream error: %v", err)
	}

	fmt.Printf("Opening %s stream at %g Hz...\n", *engineName, *sampleRate)
	if err := s.Open(); err != nil {
		if stream.IsInvalidSampleRate(err) {
			fmt.Printf("Invalid sample rate: %v\n", err)
			os.Exit(3)
		}
		log.Fatalf("Open error: %v", err)
	}
	defer s.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var block [][]float32
	if *input {
		block = audio.NewBlock(1, *blockSize)
	}

	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			log.Printf("Check complete: %d callbacks, %d underflows, %d overflows",
				st.Callbacks, st.Underflows, st.Overflows)
			return
		case <-ticker.C:
		}

		// keep the capture buffer drained so only clock behaviour is measured
		if block != nil {
			for {
				if _, ok, _ := s.Read(block); !ok {
					break
				}
			}
		}

		t := s.Timing()
		log.Printf("t=%8.3fs  offset=%+.6fs  drift=%+9.3fppm  rate=%.3f Hz  quality=%s (%d obs)",
			s.Time().RelTime(), t.Offset, t.Drift*1e6, t.EffectiveRate, t.Quality, t.Observations)
	}
}
