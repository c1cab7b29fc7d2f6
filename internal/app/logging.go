// ABOUTME: Log output setup for the command-line tools
// ABOUTME: Logs go to a file while the TUI owns the terminal
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nocarryr/go-sounddevice/internal/config"
)

// DefaultLogFile receives logs when the TUI is active and no file is configured
const DefaultLogFile = "sounddevice.log"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging builds a text logger from cfg. With the TUI active, logs are
// written only to the log file; otherwise to stderr and the file if set.
func SetupLogging(cfg config.LogConfig, useTUI bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	path := cfg.File
	if path == "" && useTUI {
		path = DefaultLogFile
	}

	var (
		w      io.Writer = stderr
		closer io.Closer = nopCloser{}
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		closer = f
		if useTUI {
			// TUI mode: log only to file
			w = f
		} else {
			w = io.MultiWriter(stderr, f)
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}
