// Package daemon implements the pktcraft daemon lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/pktcraft/internal/command"
	"firestige.xyz/pktcraft/internal/config"
	logpkg "firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/internal/metrics"
	"firestige.xyz/pktcraft/internal/pipeline"
	"firestige.xyz/pktcraft/internal/store"
	"firestige.xyz/pktcraft/internal/transmit"
)

// Daemon owns the frame store, the transmitter and the control socket.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	pidFile    string

	// Core components
	store         store.FrameStore
	runner        *pipeline.Runner // nil when no transmitter could be opened
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	serveErr     chan error
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	sigChan      chan os.Signal
}

// New creates a daemon for an already loaded configuration. configPath is
// re-read on SIGHUP; an empty path reloads defaults and environment.
func New(cfg *config.GlobalConfig, configPath, pidFile string) *Daemon {
	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		pidFile:      pidFile,
		serveErr:     make(chan error, 1),
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start opens every component and returns once the control socket accepts
// connections.
func (d *Daemon) Start() error {
	slog.Info("starting pktcraft daemon",
		"version", command.Version,
		"config", d.configPath,
		"socket", d.config.Control.Socket,
		"driver", d.config.Transmit.Driver,
	)

	// 1. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 2. Start metrics server
	if err := d.startMetrics(); err != nil {
		d.Stop()
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 3. Open the frame store, in memory if the directory is unusable.
	fileStore, err := store.NewFileFrameStore(d.config.Store.Dir)
	if err != nil {
		slog.Warn("frame store unavailable, keeping frames in memory",
			"dir", d.config.Store.Dir, "error", err)
		d.store = store.NewMemoryStore()
	} else {
		d.store = fileStore
	}
	if frames, err := d.store.List(); err == nil {
		metrics.StoredFrames.Set(float64(len(frames)))
	}

	// 4. Open the transmitter. Building and frame management work without one.
	p := pipeline.NewBuilder().FromConfig(d.config.Defaults).Build()
	if tx, err := transmit.New(d.config.Transmit, os.Stdout); err != nil {
		slog.Warn("transmitter unavailable, send methods disabled",
			"driver", d.config.Transmit.Driver, "error", err)
	} else {
		d.runner = pipeline.NewRunner(p, tx)
	}

	// 5. Create command handler
	d.cmdHandler = command.NewCommandHandler(p, d.runner, d.store, d.config.Replay)
	d.cmdHandler.SetShutdownFunc(func() {
		slog.Info("shutdown triggered via daemon_shutdown command")
		d.TriggerShutdown()
	})

	// 6. Start UDS server for CLI control
	d.udsServer = command.NewUDSServer(d.config.Control.Socket, d.cmdHandler)
	go func() {
		d.serveErr <- d.udsServer.Start(d.ctx)
	}()
	select {
	case <-d.udsServer.Ready():
	case err := <-d.serveErr:
		d.Stop()
		return fmt.Errorf("failed to start control socket: %w", err)
	}

	slog.Info("daemon started successfully")
	return nil
}

// Run blocks until ctx is cancelled, daemon_shutdown is received or the
// control socket fails. SIGHUP reloads the configuration.
func (d *Daemon) Run(ctx context.Context) error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGHUP)

	slog.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case <-d.sigChan:
			slog.Info("received reload signal")
			if err := d.Reload(); err != nil {
				slog.Error("failed to reload config", "error", err)
			}

		case <-d.shutdownChan:
			slog.Info("shutdown triggered by command")
			d.Stop()
			return nil

		case err := <-d.serveErr:
			d.Stop()
			if err != nil {
				return fmt.Errorf("control socket: %w", err)
			}
			return nil

		case <-ctx.Done():
			slog.Info("received shutdown signal", "reason", ctx.Err())
			d.Stop()
			return nil
		}
	}
}

// Stop releases every component. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	slog.Info("initiating graceful shutdown")

	// 1. Stop UDS server (no new commands, in-flight replies drain)
	if d.udsServer != nil {
		d.udsServer.Stop()
	}

	// 2. Close the transmitter
	if d.runner != nil {
		if err := d.runner.Close(); err != nil {
			slog.Error("error closing transmitter", "error", err)
		}
	}

	// 3. Stop metrics server
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing PID file", "error", err)
	}

	slog.Info("daemon stopped gracefully")
	logpkg.Close()
}

// TriggerShutdown asks Run to stop the daemon.
func (d *Daemon) TriggerShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownChan) })
}

// Reload re-reads the configuration.
// Hot-reloadable: log level/format, replay pacing.
// Cold (requires restart): transmit, store, metrics, build defaults.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}
	// The socket may come from a flag; the running listener keeps it.
	newConfig.Control.Socket = d.config.Control.Socket

	hotReloaded := []string{}
	if err := logpkg.Init(newConfig.Log); err != nil {
		slog.Error("failed to reinitialize logging", "error", err)
		newConfig.Log = d.config.Log
	} else if newConfig.Log != d.config.Log {
		hotReloaded = append(hotReloaded, "log")
	}

	if newConfig.Replay != d.config.Replay {
		d.cmdHandler.SetReplayConfig(newConfig.Replay)
		hotReloaded = append(hotReloaded, "replay")
	}

	requiresRestart := []string{}
	if newConfig.Transmit != d.config.Transmit {
		requiresRestart = append(requiresRestart, "transmit")
	}
	if newConfig.Store != d.config.Store {
		requiresRestart = append(requiresRestart, "store")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	if newConfig.Defaults != d.config.Defaults {
		requiresRestart = append(requiresRestart, "defaults")
	}

	d.config.Log = newConfig.Log
	d.config.Replay = newConfig.Replay

	slog.Info("configuration reloaded",
		"hot_reloaded", hotReloaded,
		"requires_restart", requiresRestart,
	)
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		d.metricsServer = nil
		return err
	}
	return nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := os.WriteFile(d.pidFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	slog.Debug("PID file written", "path", d.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}
