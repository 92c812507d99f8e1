// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. VSWITCH_LOG_LEVEL.
const EnvPrefix = "VSWITCH"

// GlobalConfig maps to the `vswitch:` root key in YAML.
type GlobalConfig struct {
	Switch     SwitchConfig     `mapstructure:"switch"`
	Link       LinkConfig       `mapstructure:"link"`
	Forwarding ForwardingConfig `mapstructure:"forwarding"`
	FDB        FDBConfig        `mapstructure:"fdb"`
	STP        STPConfig        `mapstructure:"stp"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Control    ControlConfig    `mapstructure:"control"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ─── Switch ───

// SwitchConfig locates the port table. The file is <config_dir>/switch<id>.cfg.
type SwitchConfig struct {
	ID        string `mapstructure:"id"`
	ConfigDir string `mapstructure:"config_dir"`
}

// ─── Link ───

// LinkConfig selects the link driver and its socket parameters.
type LinkConfig struct {
	Driver       string `mapstructure:"driver"` // afpacket | tap | pipe
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	BPFFilter    string `mapstructure:"bpf_filter"`
}

// ─── Forwarding ───

type ForwardingConfig struct {
	// StrictVLANUnicast floods instead of forwarding to a learned port that
	// is outside the frame's VLAN.
	StrictVLANUnicast bool `mapstructure:"strict_vlan_unicast"`
}

// ─── FDB ───

type FDBConfig struct {
	AgingTime time.Duration `mapstructure:"aging_time"` // 0 = never age
}

// ─── STP ───

type STPConfig struct {
	HelloInterval time.Duration `mapstructure:"hello_interval"`
}

// ─── Mirror ───

// MirrorConfig configures the pcap copy of received frames.
type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	SnapLen int    `mapstructure:"snap_len"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
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
	Level   string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"` // pattern / prefixed / json
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `vswitch: ...`.
type configRoot struct {
	VSwitch GlobalConfig `mapstructure:"vswitch"`
}

// Load loads configuration from path. An empty path yields the defaults,
// still subject to environment overrides.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `vswitch.` key prefix maps to VSWITCH_ in env vars through the key
	// replacer, e.g. "vswitch.log.level" -> VSWITCH_LOG_LEVEL.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.VSwitch

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static and always valid.
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// Every key is also registered here so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("vswitch.switch.id", "0")
	v.SetDefault("vswitch.switch.config_dir", "configs")

	v.SetDefault("vswitch.link.driver", "afpacket")
	v.SetDefault("vswitch.link.snap_len", 2048)
	v.SetDefault("vswitch.link.buffer_size_mb", 8)
	v.SetDefault("vswitch.link.bpf_filter", "")

	v.SetDefault("vswitch.forwarding.strict_vlan_unicast", true)

	v.SetDefault("vswitch.fdb.aging_time", "0s")

	v.SetDefault("vswitch.stp.hello_interval", "1s")

	v.SetDefault("vswitch.mirror.enabled", false)
	v.SetDefault("vswitch.mirror.path", "/var/lib/vswitch/mirror.pcap")
	v.SetDefault("vswitch.mirror.snap_len", 65535)

	v.SetDefault("vswitch.control.socket", "/var/run/vswitch.sock")
	v.SetDefault("vswitch.control.pid_file", "/var/run/vswitch.pid")

	v.SetDefault("vswitch.metrics.enabled", true)
	v.SetDefault("vswitch.metrics.listen", ":9092")
	v.SetDefault("vswitch.metrics.path", "/metrics")

	v.SetDefault("vswitch.log.level", "info")
	v.SetDefault("vswitch.log.format", "pattern")
	v.SetDefault("vswitch.log.pattern", "%time [%level] %caller %msg %field\n")
	v.SetDefault("vswitch.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("vswitch.log.file.enabled", false)
	v.SetDefault("vswitch.log.file.path", "/var/log/vswitch/vswitch.log")
	v.SetDefault("vswitch.log.file.rotation.max_size_mb", 100)
	v.SetDefault("vswitch.log.file.rotation.max_age_days", 30)
	v.SetDefault("vswitch.log.file.rotation.max_backups", 5)
	v.SetDefault("vswitch.log.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	switch cfg.Log.Format {
	case "pattern", "prefixed", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be pattern/prefixed/json)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	// ── Switch ──
	if cfg.Switch.ID == "" {
		return fmt.Errorf("switch.id is required")
	}
	if cfg.Switch.ConfigDir == "" {
		cfg.Switch.ConfigDir = "."
	}

	// ── Link ──
	cfg.Link.Driver = strings.ToLower(cfg.Link.Driver)
	switch cfg.Link.Driver {
	case "afpacket", "tap", "pipe":
	default:
		return fmt.Errorf("unsupported link.driver: %s (must be afpacket/tap/pipe)", cfg.Link.Driver)
	}
	if cfg.Link.SnapLen <= 0 {
		return fmt.Errorf("link.snap_len must be positive, got %d", cfg.Link.SnapLen)
	}
	if cfg.Link.BufferSizeMB <= 0 {
		return fmt.Errorf("link.buffer_size_mb must be positive, got %d", cfg.Link.BufferSizeMB)
	}
	if cfg.Link.BPFFilter != "" && cfg.Link.Driver != "afpacket" {
		return fmt.Errorf("link.bpf_filter is only supported by the afpacket driver")
	}

	// ── FDB / STP ──
	if cfg.FDB.AgingTime < 0 {
		return fmt.Errorf("fdb.aging_time must not be negative, got %s", cfg.FDB.AgingTime)
	}
	if cfg.STP.HelloInterval <= 0 {
		cfg.STP.HelloInterval = time.Second
	}

	// ── Mirror ──
	if cfg.Mirror.Enabled {
		if cfg.Mirror.Path == "" {
			return fmt.Errorf("mirror.path is required when mirror.enabled=true")
		}
		if cfg.Mirror.SnapLen <= 0 {
			cfg.Mirror.SnapLen = 65535
		}
	}

	// ── Control / Metrics ──
	if cfg.Control.Socket == "" {
		return fmt.Errorf("control.socket is required")
	}
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			cfg.Metrics.Path = "/" + cfg.Metrics.Path
		}
	}

	return nil
}
