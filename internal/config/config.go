// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"firestige.xyz/pktcraft/internal/core"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `pktcraft:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Control  ControlConfig  `mapstructure:"control"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Transmit TransmitConfig `mapstructure:"transmit"`
	Store    StoreConfig    `mapstructure:"store"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// ─── Build Defaults ───

// DefaultsConfig holds site-level auto values for builds.
type DefaultsConfig struct {
	DSCP   int  `mapstructure:"dscp"`   // 0-63, written when ipv4.dscp is auto
	Verify bool `mapstructure:"verify"` // Re-decode built frames and log checksum mismatches
}

// ─── Transmission ───

// TransmitConfig selects and configures the frame sink.
type TransmitConfig struct {
	Driver    string         `mapstructure:"driver"`    // afpacket | rawsock | pcap | hex
	Interface string         `mapstructure:"interface"` // Required for afpacket / rawsock
	PcapPath  string         `mapstructure:"pcap_path"` // Required for pcap
	AFPacket  AFPacketConfig `mapstructure:"afpacket"`
}

// AFPacketConfig sizes the TPACKET ring used by the afpacket driver.
type AFPacketConfig struct {
	BufferSizeMB int `mapstructure:"buffer_size_mb"`
	FrameSize    int `mapstructure:"frame_size"` // Largest frame expected, bytes
	TimeoutMs    int `mapstructure:"timeout_ms"`
}

// Transmit driver names.
const (
	DriverAFPacket = "afpacket"
	DriverRawSock  = "rawsock"
	DriverPcap     = "pcap"
	DriverHex      = "hex"
)

// ─── Frame Store & Replay ───

// StoreConfig locates the saved frame store.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// ReplayConfig paces sequence replay.
type ReplayConfig struct {
	RatePPS float64 `mapstructure:"rate_pps"` // 0 = unlimited
	Burst   int     `mapstructure:"burst"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket string `mapstructure:"socket"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `pktcraft: ...`.
type configRoot struct {
	Pktcraft GlobalConfig `mapstructure:"pktcraft"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// Env vars map through the key replacer, e.g. PKTCRAFT_TRANSMIT_DRIVER.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pktcraft

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "pktcraft." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pktcraft.log.level", "info")
	v.SetDefault("pktcraft.log.format", "text")
	v.SetDefault("pktcraft.log.outputs.file.enabled", false)
	v.SetDefault("pktcraft.log.outputs.file.path", "/var/log/pktcraft/pktcraft.log")
	v.SetDefault("pktcraft.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("pktcraft.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("pktcraft.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("pktcraft.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("pktcraft.metrics.enabled", true)
	v.SetDefault("pktcraft.metrics.listen", "127.0.0.1:9092")
	v.SetDefault("pktcraft.metrics.path", "/metrics")

	// Control defaults
	v.SetDefault("pktcraft.control.socket", "/var/run/pktcraft.sock")

	// Build defaults
	v.SetDefault("pktcraft.defaults.dscp", 0)
	v.SetDefault("pktcraft.defaults.verify", true)

	// Transmit defaults
	v.SetDefault("pktcraft.transmit.driver", DriverRawSock)
	v.SetDefault("pktcraft.transmit.interface", "")
	v.SetDefault("pktcraft.transmit.pcap_path", "")
	v.SetDefault("pktcraft.transmit.afpacket.buffer_size_mb", 2)
	v.SetDefault("pktcraft.transmit.afpacket.frame_size", 1518)
	v.SetDefault("pktcraft.transmit.afpacket.timeout_ms", 100)

	// Store & replay defaults
	v.SetDefault("pktcraft.store.dir", "/var/lib/pktcraft/frames")
	v.SetDefault("pktcraft.replay.rate_pps", 0)
	v.SetDefault("pktcraft.replay.burst", 1)
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults. Every problem found is reported, joined with multierr.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	var errs error

	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		errs = multierr.Append(errs, fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level))
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		errs = multierr.Append(errs, fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format))
	}

	// ── Build defaults ──
	if cfg.Defaults.DSCP < 0 || cfg.Defaults.DSCP > 63 {
		errs = multierr.Append(errs, fmt.Errorf("defaults.dscp must be 0-63, got %d", cfg.Defaults.DSCP))
	}

	// ── Transmit ──
	cfg.Transmit.Driver = strings.ToLower(cfg.Transmit.Driver)
	switch cfg.Transmit.Driver {
	case DriverAFPacket, DriverRawSock, DriverHex:
	case DriverPcap:
		if cfg.Transmit.PcapPath == "" {
			errs = multierr.Append(errs, fmt.Errorf("transmit.pcap_path is required when transmit.driver=pcap"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported transmit.driver: %s (must be afpacket/rawsock/pcap/hex)", cfg.Transmit.Driver))
	}
	if cfg.Transmit.AFPacket.BufferSizeMB <= 0 {
		cfg.Transmit.AFPacket.BufferSizeMB = 2
	}
	if cfg.Transmit.AFPacket.FrameSize <= 0 {
		cfg.Transmit.AFPacket.FrameSize = 1518
	}

	// ── Replay ──
	if cfg.Replay.RatePPS < 0 {
		errs = multierr.Append(errs, fmt.Errorf("replay.rate_pps must not be negative, got %v", cfg.Replay.RatePPS))
	}
	if cfg.Replay.Burst < 1 {
		cfg.Replay.Burst = 1
	}

	if cfg.Store.Dir == "" {
		errs = multierr.Append(errs, fmt.Errorf("store.dir is required"))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", core.ErrConfigInvalid, errs)
	}
	return nil
}
