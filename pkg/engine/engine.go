// ABOUTME: Engine factory
// ABOUTME: Resolves engine names from configuration to implementations
package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// Options carries settings shared by all engines
type Options struct {
	Logger *slog.Logger
	Null   NullConfig
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

var factories = map[string]func(Options) stream.Engine{
	"null": func(o Options) stream.Engine {
		cfg := o.Null
		if cfg.Logger == nil {
			cfg.Logger = o.Logger
		}
		return NewNull(cfg)
	},
	"malgo":     func(o Options) stream.Engine { return NewMalgo(o.logger()) },
	"oto":       func(o Options) stream.Engine { return NewOto(o.logger()) },
	"portaudio": func(o Options) stream.Engine { return NewPortAudio(o.logger()) },
}

// Names returns the registered engine names in sorted order
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the engine registered under name
func New(name string, opts Options) (stream.Engine, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %v)", name, Names())
	}
	return f(opts), nil
}

// channelsOrNil returns buf when the direction is active
func channelsOrNil(buf []byte, channels int) []byte {
	if channels == 0 || len(buf) == 0 {
		return nil
	}
	return buf
}
