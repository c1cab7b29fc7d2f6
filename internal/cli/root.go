// ABOUTME: Root cobra command and shared flag handling
// ABOUTME: Loads configuration, logging and profiling before any subcommand runs
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nocarryr/go-sounddevice/internal/app"
	"github.com/nocarryr/go-sounddevice/internal/config"
	"github.com/nocarryr/go-sounddevice/internal/version"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ExitOK                = 0
	ExitError             = 1
	ExitInvalidSampleRate = 3
)

// streamCommand marks subcommands that open a stream and may show the TUI
const streamCommand = "stream"

// globals holds state shared by all subcommands
type globals struct {
	v           *viper.Viper
	cfgFile     string
	noTUI       bool
	profileMode string

	settings  *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	profiler  interface{ Stop() }

	bindErrs []error
}

// flagKeys maps persistent flags to configuration keys
var flagKeys = map[string]string{
	"engine":        "engine.name",
	"metrics-addr":  "metrics.addr",
	"log-level":     "log.level",
	"log-file":      "log.file",
	"sample-rate":   "stream.sample_rate",
	"block-size":    "stream.block_size",
	"format":        "stream.format",
	"buffer-blocks": "stream.buffer_blocks",
	"volume":        "stream.volume",
}

func newRootCmd() (*cobra.Command, *globals) {
	g := &globals{v: config.New()}

	root := &cobra.Command{
		Use:               "sounddevice",
		Short:             "Real-time audio stream tools",
		Long:              `sounddevice records, plays and loops audio through block-based streams on any supported engine`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: g.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.cfgFile, "config", "", "config file (default is ./sounddevice.yaml)")
	pf.BoolVar(&g.noTUI, "no-tui", false, "disable the TUI and log to stderr")
	pf.StringVar(&g.profileMode, "profile", "", "write a profile (cpu, mem, block, mutex, goroutine, trace)")
	pf.String("engine", "", "audio engine ("+strings.Join(engine.Names(), ", ")+")")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "log file path")
	pf.Float64("sample-rate", 0, "stream sample rate")
	pf.Int("block-size", 0, "frames per block")
	pf.String("format", "", "sample format (see 'sounddevice formats')")
	pf.Int("buffer-blocks", 0, "blocks held by each stream buffer")
	pf.Int("volume", 0, "initial playback volume (0-100)")
	for name, key := range flagKeys {
		g.bind(root, name, key)
	}

	root.AddCommand(
		newRecordCmd(g),
		newPlayCmd(g),
		newLoopbackCmd(g),
		newFormatsCmd(),
		newEnginesCmd(),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return root, g
}

// setup loads the configuration and starts logging and profiling
// bind ties a flag of cmd to a config key; failures surface in setup
func (g *globals) bind(cmd *cobra.Command, name, key string) {
	if err := g.v.BindPFlag(key, cmd.Flag(name)); err != nil {
		g.bindErrs = append(g.bindErrs, fmt.Errorf("--%s: %w", name, err))
	}
}

func (g *globals) setup(cmd *cobra.Command, _ []string) error {
	if err := errors.Join(g.bindErrs...); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	settings, err := config.LoadWith(g.v, g.cfgFile)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	g.settings = settings

	logger, closer, err := app.SetupLogging(settings.Log, g.useTUI(cmd), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	g.logger = logger
	g.logCloser = closer
	slog.SetDefault(logger)

	if g.profileMode != "" {
		mode, err := profileMode(g.profileMode)
		if err != nil {
			return err
		}
		g.profiler = profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
	}
	return nil
}

// close stops profiling and closes the log file
func (g *globals) close() {
	if g.profiler != nil {
		g.profiler.Stop()
		g.profiler = nil
	}
	if g.logCloser != nil {
		_ = g.logCloser.Close()
		g.logCloser = nil
	}
}

func (g *globals) useTUI(cmd *cobra.Command) bool {
	return !g.noTUI && cmd.Annotations[streamCommand] == "true"
}

// newSession builds a session from the loaded settings
func (g *globals) newSession(cmd *cobra.Command, title string) (*app.Session, error) {
	return app.New(g.settings, app.Options{
		UseTUI: g.useTUI(cmd),
		Title:  title,
		Logger: g.logger,
	})
}

func profileMode(name string) (func(*profile.Profile), error) {
	switch strings.ToLower(name) {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "block":
		return profile.BlockProfile, nil
	case "mutex":
		return profile.MutexProfile, nil
	case "goroutine":
		return profile.GoroutineProfile, nil
	case "trace":
		return profile.TraceProfile, nil
	default:
		return nil, fmt.Errorf("unknown profile mode %q", name)
	}
}

// Execute runs the command line and returns the process exit code
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, stdout, stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, g := newRootCmd()
	defer g.close()

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	code := ExitCode(err)
	switch code {
	case ExitOK:
	case ExitInvalidSampleRate:
		fmt.Fprintf(stderr, "Invalid sample rate: %v\n", err)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// ExitCode maps a command error to a process exit code. A rejected sample
// rate gets its own code so scripts can skip unsupported rates.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case stream.IsInvalidSampleRate(err):
		return ExitInvalidSampleRate
	default:
		return ExitError
	}
}

func streamAnnotations() map[string]string {
	return map[string]string{streamCommand: "true"}
}
