// Package config loads rsincrond's TOML configuration file and resolves
// the XDG-standard default paths for the watch table, the config file
// itself, and the control socket.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

// Config is the recognized set of rsincron.toml keys. Unknown keys are
// ignored by BurntSushi/toml's default decode behavior.
type Config struct {
	WatchTableFile string `toml:"watch_table_file"`
}

// DefaultConfigPath is where rsincrond looks for its config file absent
// an explicit -c flag.
func DefaultConfigPath() string {
	return xdg.ConfigHome + "/rsincron.toml"
}

// DefaultTablePath is the watch table location a fresh install uses.
func DefaultTablePath() string {
	return xdg.DataHome + "/rsincron.table"
}

// DefaultSocketPath is the control socket rsincrontab talks to.
func DefaultSocketPath() string {
	return xdg.RuntimeDir + "/rsincron.socket"
}

// Load reads path and decodes it into a Config seeded with defaults. A
// missing file falls back to an all-defaults Config without logging; a
// decode error (or a stat error other than not-exist) also falls back to
// defaults and is logged as a warning — spec.md §6/§7 treat a bad config
// file as recoverable, not fatal to daemon startup.
func Load(path string, log zerolog.Logger) Config {
	cfg := Config{WatchTableFile: DefaultTablePath()}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("config", path).Msg("could not stat config file; using defaults")
		}
		return cfg
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		log.Warn().Err(err).Str("config", path).Msg("could not parse config file; using defaults")
		return Config{WatchTableFile: DefaultTablePath()}
	}
	if cfg.WatchTableFile == "" {
		cfg.WatchTableFile = DefaultTablePath()
	}
	return cfg
}
