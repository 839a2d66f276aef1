// Package config provides TOML configuration loading for poisync.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration structure.
type Config struct {
	Device DeviceConfig `toml:"device"`
	Net    NetConfig    `toml:"net"`
	Sync   SyncConfig   `toml:"sync"`
}

// DeviceConfig identifies this device on the sync network.
type DeviceConfig struct {
	// Name is the display name announced to peers. Defaults to the hostname.
	Name string `toml:"name"`
	// Interface is the network interface to bind. Empty means auto-detect.
	Interface string `toml:"interface"`
}

// NetConfig holds the multicast transport settings.
type NetConfig struct {
	Group string `toml:"group"`
	Port  int    `toml:"port"`
}

// SyncConfig holds settings for the sync node itself.
type SyncConfig struct {
	AutoPair  bool   `toml:"auto_pair"`
	Mode      string `toml:"mode"`
	DBPath    string `toml:"db_path"`
	RPCSocket string `toml:"rpc_socket"`
	LogLevel  string `toml:"log_level"`
}

// Load reads and parses a TOML config file, applying defaults for unset
// values. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{Sync: SyncConfig{AutoPair: true}}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(cfg)
	cfg.Sync.DBPath = ExpandPath(cfg.Sync.DBPath)
	return cfg, nil
}

// Default returns a config with all defaults applied, used when no config
// file exists on disk.
func Default() *Config {
	cfg := &Config{Sync: SyncConfig{AutoPair: true}}
	applyDefaults(cfg)
	return cfg
}

// ExpandPath expands tilde (~) to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}

func applyDefaults(cfg *Config) {
	if cfg.Device.Name == "" {
		if hostname, err := os.Hostname(); err == nil {
			cfg.Device.Name = hostname
		}
	}

	if cfg.Net.Group == "" {
		cfg.Net.Group = "239.80.79.73"
	}
	if cfg.Net.Port == 0 {
		cfg.Net.Port = 17580
	}

	if cfg.Sync.Mode == "" {
		cfg.Sync.Mode = "mirror"
	}
	if cfg.Sync.DBPath == "" {
		cfg.Sync.DBPath = "/var/lib/poisync/peers.db"
	}
	if cfg.Sync.RPCSocket == "" {
		cfg.Sync.RPCSocket = "/run/poisync/node.sock"
	}
	if cfg.Sync.LogLevel == "" {
		cfg.Sync.LogLevel = "info"
	}
}
