// Package config holds the run settings and loads overrides from TOML.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"netsniff/internal/analysis"
	"netsniff/internal/capture"
	"netsniff/internal/logging"
)

// Config is everything a run needs.
type Config struct {
	Interface   string
	ReplayFile  string
	Snaplen     int32
	Promisc     bool
	ReadTimeout time.Duration

	HexDump    bool
	Watch      bool
	Color      bool
	Summary    bool
	Scrollback int
	LogLevel   string

	Analysis analysis.Config
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Snaplen:     65536,
		Promisc:     true,
		ReadTimeout: 250 * time.Millisecond,
		Color:       true,
		Summary:     true,
		Scrollback:  500,
		LogLevel:    "info",
		Analysis:    analysis.DefaultConfig(),
	}
}

type fileConfig struct {
	Interface   string `toml:"interface"`
	ReplayFile  string `toml:"replay_file"`
	Snaplen     int32  `toml:"snaplen"`
	Promisc     bool   `toml:"promisc"`
	ReadTimeout string `toml:"read_timeout"`
	HexDump     bool   `toml:"hex_dump"`
	Watch       bool   `toml:"watch"`
	Color       bool   `toml:"color"`
	Summary     bool   `toml:"summary"`
	Scrollback  int    `toml:"scrollback"`
	LogLevel    string `toml:"log_level"`

	Analysis fileAnalysis `toml:"analysis"`
}

type fileAnalysis struct {
	BroadcastThreshold int    `toml:"broadcast_threshold"`
	DoSThreshold       int    `toml:"dos_threshold"`
	MalformedThreshold int    `toml:"malformed_threshold"`
	UnsecureCooldown   string `toml:"unsecure_cooldown"`
	MaxAlerts          int    `toml:"max_alerts"`
}

// Load reads path on top of Default. Only keys present in the file
// override a default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("interface") {
		cfg.Interface = strings.TrimSpace(raw.Interface)
	}
	if meta.IsDefined("replay_file") {
		cfg.ReplayFile = strings.TrimSpace(raw.ReplayFile)
	}
	if meta.IsDefined("snaplen") {
		cfg.Snaplen = raw.Snaplen
	}
	if meta.IsDefined("promisc") {
		cfg.Promisc = raw.Promisc
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse read_timeout")
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("hex_dump") {
		cfg.HexDump = raw.HexDump
	}
	if meta.IsDefined("watch") {
		cfg.Watch = raw.Watch
	}
	if meta.IsDefined("color") {
		cfg.Color = raw.Color
	}
	if meta.IsDefined("summary") {
		cfg.Summary = raw.Summary
	}
	if meta.IsDefined("scrollback") {
		cfg.Scrollback = raw.Scrollback
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("analysis", "broadcast_threshold") {
		cfg.Analysis.BroadcastThreshold = raw.Analysis.BroadcastThreshold
	}
	if meta.IsDefined("analysis", "dos_threshold") {
		cfg.Analysis.DoSThreshold = raw.Analysis.DoSThreshold
	}
	if meta.IsDefined("analysis", "malformed_threshold") {
		cfg.Analysis.MalformedThreshold = raw.Analysis.MalformedThreshold
	}
	if meta.IsDefined("analysis", "unsecure_cooldown") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Analysis.UnsecureCooldown))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse analysis.unsecure_cooldown")
		}
		cfg.Analysis.UnsecureCooldown = d
	}
	if meta.IsDefined("analysis", "max_alerts") {
		cfg.Analysis.MaxAlerts = raw.Analysis.MaxAlerts
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.Interface == "" && c.ReplayFile == "":
		return errors.New("an interface (-i) or a capture file (-r) is required")
	case c.Interface != "" && c.ReplayFile != "":
		return errors.New("-i and -r are mutually exclusive")
	case c.Snaplen <= 0:
		return errors.Errorf("snaplen must be positive, got %d", c.Snaplen)
	case c.ReadTimeout <= 0:
		return errors.Errorf("read_timeout must be positive, got %v", c.ReadTimeout)
	case c.Scrollback <= 0:
		return errors.Errorf("scrollback must be positive, got %d", c.Scrollback)
	case c.Analysis.BroadcastThreshold <= 0:
		return errors.Errorf("analysis.broadcast_threshold must be positive, got %d", c.Analysis.BroadcastThreshold)
	case c.Analysis.DoSThreshold <= 0:
		return errors.Errorf("analysis.dos_threshold must be positive, got %d", c.Analysis.DoSThreshold)
	case c.Analysis.MalformedThreshold <= 0:
		return errors.Errorf("analysis.malformed_threshold must be positive, got %d", c.Analysis.MalformedThreshold)
	case c.Analysis.UnsecureCooldown < 0:
		return errors.Errorf("analysis.unsecure_cooldown must not be negative, got %v", c.Analysis.UnsecureCooldown)
	case c.Analysis.MaxAlerts <= 0:
		return errors.Errorf("analysis.max_alerts must be positive, got %d", c.Analysis.MaxAlerts)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return errors.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Capture returns the settings for opening a live source.
func (c Config) Capture() *capture.Config {
	promisc := c.Promisc
	return &capture.Config{
		Interface:   c.Interface,
		Snaplen:     c.Snaplen,
		Promisc:     &promisc,
		ReadTimeout: c.ReadTimeout,
	}
}

// Logging returns logger options for this config, before env overrides.
func (c Config) Logging() logging.Options {
	opts := logging.DefaultOptions()
	if lvl, ok := logging.ParseLevel(c.LogLevel); ok {
		opts.Level = lvl
	}
	opts.NoColor = !c.Color
	return opts
}
