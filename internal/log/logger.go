// Package log configures the process-wide slog logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/pktcraft/internal/config"
)

// Console is where log records go besides the optional file. Command output
// uses stdout, so logs default to stderr.
var Console io.Writer = os.Stderr

var (
	mu    sync.Mutex
	level slog.LevelVar
	file  *lumberjack.Logger // nil unless file output is enabled
	fileC config.FileOutputConfig
)

// Init installs the default logger described by cfg. Calling it again, as
// a daemon reload does, swaps the handler in place; the rotated log file is
// reopened only when its settings changed.
func Init(cfg config.LogConfig) error {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := swapFile(cfg.Outputs.File); err != nil {
		return err
	}

	var out io.Writer = Console
	if file != nil {
		out = io.MultiWriter(Console, file)
	}

	opts := &slog.HandlerOptions{Level: &level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	level.Set(lvl)
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetLevel changes the level of the installed logger.
func SetLevel(s string) error {
	lvl, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// Close flushes and closes the log file, if one is open. Console logging
// keeps working.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return swapFile(config.FileOutputConfig{})
}

// swapFile opens, keeps or closes the file writer to match fc. Caller holds mu.
func swapFile(fc config.FileOutputConfig) error {
	if !fc.Enabled {
		if file == nil {
			return nil
		}
		err := file.Close()
		file, fileC = nil, config.FileOutputConfig{}
		return err
	}
	if file != nil && fc == fileC {
		return nil
	}
	w, err := createFileWriter(fc)
	if err != nil {
		return fmt.Errorf("failed to create file output: %w", err)
	}
	if file != nil {
		file.Close()
	}
	file, fileC = w, fc
	return nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}
