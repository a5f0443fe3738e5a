// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Store types
const (
	StoreMemory   = "memory"
	StoreLocal    = "local"
	StoreSqlite   = "sqlite"
	StorePostgres = "postgres"
)

const (
	defaultHandleCacheSize = 16
	defaultFetchTimeout    = 30 * time.Second
)

type daemon struct {
	Host   string `json:"host,omitempty" jsonschema:"description=address to listen on"`
	Port   int    `json:"port,omitempty"`
	Socket string `json:"socket,omitempty" jsonschema:"description=unix socket to listen on"`
	Debug  bool   `json:"debug,omitempty"`
}

type store struct {
	Type string `json:"type,omitempty" jsonschema:"enum=memory,enum=local,enum=sqlite,enum=postgres"`
	// Path is the gob file for memory, the folder for local and the database file for sqlite.
	Path string `json:"path,omitempty"`
}

type database struct {
	Name     string `json:"name,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"sslmode,omitempty"`
}

type debugInfo struct {
	Dir     string        `json:"dir,omitempty" jsonschema:"description=folder of <key>.debuginfo files"`
	URL     string        `json:"url,omitempty" jsonschema:"description=URL template with {arch} {os} {version} and {key}"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

type symbolicate struct {
	HandleCacheSize     int `json:"handle_cache_size,omitempty" mapstructure:"handle_cache_size"`
	MaxConcurrentBuilds int `json:"max_concurrent_builds,omitempty" mapstructure:"max_concurrent_builds"`
}

// Config is the configuration struct
type Config struct {
	Daemon      daemon      `json:"daemon"`
	Store       store       `json:"store"`
	Database    database    `json:"database"`
	DebugInfo   debugInfo   `json:"debuginfo" mapstructure:"debuginfo"`
	Symbolicate symbolicate `json:"symbolicate"`
}

// Dir is the folder stacksym keeps its socket, caches and database in.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}
	return filepath.Join(home, ".config", "stacksym"), nil
}

func (c *Config) verify() error {
	if c.Daemon.Host == "" && c.Daemon.Port == 0 && c.Daemon.Socket == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.Daemon.Socket = filepath.Join(dir, "stacksym.sock")
	} else if c.Daemon.Host != "" && c.Daemon.Socket != "" {
		return fmt.Errorf("host and socket cannot be set at the same time")
	} else if c.Daemon.Host != "" && c.Daemon.Port == 0 {
		return fmt.Errorf("port must be set if host is set")
	} else if c.Daemon.Host == "" && c.Daemon.Port != 0 {
		c.Daemon.Host = "localhost"
	}

	if c.Store.Type == "" {
		c.Store.Type = StoreLocal
	}
	if !slices.Contains([]string{StoreMemory, StoreLocal, StoreSqlite, StorePostgres}, c.Store.Type) {
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.Store.Path == "" && c.Store.Type != StorePostgres {
		dir, err := Dir()
		if err != nil {
			return err
		}
		switch c.Store.Type {
		case StoreMemory:
			c.Store.Path = filepath.Join(dir, "symcache.gob")
		case StoreLocal:
			c.Store.Path = filepath.Join(dir, "symcache")
		case StoreSqlite:
			c.Store.Path = filepath.Join(dir, "symcache.db")
		}
	}
	if c.Store.Type == StorePostgres && (c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "") {
		return fmt.Errorf("postgres store requires database host, user and name")
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.DebugInfo.Timeout <= 0 {
		c.DebugInfo.Timeout = defaultFetchTimeout
	}
	if c.Symbolicate.HandleCacheSize <= 0 {
		c.Symbolicate.HandleCacheSize = defaultHandleCacheSize
	}
	if c.Symbolicate.MaxConcurrentBuilds <= 0 {
		c.Symbolicate.MaxConcurrentBuilds = runtime.NumCPU()
	}

	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	var c *Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
