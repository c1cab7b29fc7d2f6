// ABOUTME: Application configuration loaded through viper
// ABOUTME: File, SOUNDDEVICE_ environment variables and bound flags, saved as YAML
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/recorder"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SOUNDDEVICE_STREAM_SAMPLE_RATE
const EnvPrefix = "SOUNDDEVICE"

type StreamConfig struct {
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	BlockSize      int     `mapstructure:"block_size" yaml:"block_size"`
	Format         string  `mapstructure:"format" yaml:"format"`
	InputChannels  int     `mapstructure:"input_channels" yaml:"input_channels"`
	OutputChannels int     `mapstructure:"output_channels" yaml:"output_channels"`
	BufferBlocks   int     `mapstructure:"buffer_blocks" yaml:"buffer_blocks"`
	Volume         int     `mapstructure:"volume" yaml:"volume"`
}

type EngineConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// SampleRates limits the rates the null engine accepts
	SampleRates []float64 `mapstructure:"sample_rates" yaml:"sample_rates,omitempty"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

type RecorderConfig struct {
	BitDepth     int           `mapstructure:"bit_depth" yaml:"bit_depth"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type Config struct {
	Stream   StreamConfig   `mapstructure:"stream" yaml:"stream"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
}

func Default() *Config {
	sc := stream.DefaultConfig()
	return &Config{
		Stream: StreamConfig{
			SampleRate:     sc.SampleRate,
			BlockSize:      sc.BlockSize,
			Format:         sc.Format.String(),
			InputChannels:  sc.InputChannels,
			OutputChannels: sc.OutputChannels,
			BufferBlocks:   sc.BufferBlocks,
			Volume:         100,
		},
		Engine: EngineConfig{Name: "malgo"},
		Log:    LogConfig{Level: "info"},
		Recorder: RecorderConfig{
			BitDepth:     recorder.FloatBitDepth,
			PollInterval: 100 * time.Millisecond,
		},
	}
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("stream.sample_rate", d.Stream.SampleRate)
	v.SetDefault("stream.block_size", d.Stream.BlockSize)
	v.SetDefault("stream.format", d.Stream.Format)
	v.SetDefault("stream.input_channels", d.Stream.InputChannels)
	v.SetDefault("stream.output_channels", d.Stream.OutputChannels)
	v.SetDefault("stream.buffer_blocks", d.Stream.BufferBlocks)
	v.SetDefault("stream.volume", d.Stream.Volume)
	v.SetDefault("engine.name", d.Engine.Name)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("recorder.bit_depth", d.Recorder.BitDepth)
	v.SetDefault("recorder.poll_interval", d.Recorder.PollInterval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile (or sounddevice.yaml from the usual places) into a Config
func Load(cfgFile string) (*Config, error) {
	return LoadWith(New(), cfgFile)
}

// LoadWith is Load on a caller-prepared viper, e.g. one with flags bound
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sounddevice")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML
func Save(cfg *Config, path string) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, out, 0o644)
}

// Validate resolves names and ranges before any device is touched
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.StreamConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Stream.Volume < 0 || c.Stream.Volume > 100 {
		errs = append(errs, fmt.Errorf("stream.volume %d outside 0-100", c.Stream.Volume))
	}
	if err := recorder.CheckBitDepth(c.Recorder.BitDepth); err != nil {
		errs = append(errs, fmt.Errorf("recorder.bit_depth: %w", err))
	}
	if c.Recorder.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("recorder.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}

// StreamConfig converts the stream section, resolving the format name
func (c *Config) StreamConfig() (stream.Config, error) {
	format, err := audio.Lookup(c.Stream.Format)
	if err != nil {
		return stream.Config{}, fmt.Errorf("stream.format: %w", err)
	}
	sc := stream.Config{
		SampleRate:     c.Stream.SampleRate,
		BlockSize:      c.Stream.BlockSize,
		Format:         format,
		InputChannels:  c.Stream.InputChannels,
		OutputChannels: c.Stream.OutputChannels,
		BufferBlocks:   c.Stream.BufferBlocks,
	}
	if err := sc.Validate(); err != nil {
		return stream.Config{}, err
	}
	return sc, nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "sounddevice")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "sounddevice")
	default:
		return "/etc/sounddevice"
	}
}
