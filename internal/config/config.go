// Package config provides functionality for managing configuration options
// for the application using command-line flags, a config file and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Preference store backends.
const (
	StoreSQL    = "sql"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Duration is a time.Duration read from config files as "30s", "5m", ...
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" toml:"port"`

	// Driver is the database/sql driver: "sqlite" or "postgres".
	Driver string `json:"driver" toml:"driver"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" toml:"database_dsn"`

	// Store selects where preferences live: "sql", "file" or "memory".
	// Secrets stay in the database unless Store is "memory".
	Store string `json:"store" toml:"store"`

	// PrefsFile is the TOML preferences file used with the file store.
	PrefsFile string `json:"prefs_file" toml:"prefs_file"`

	// MasterPassword unlocks the secure store. When empty it is read from the
	// OS keychain.
	MasterPassword string `json:"master_password" toml:"master_password"`

	LogLevel string `json:"log_level" toml:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" toml:"tls_cert"`
	TLSKey  string `json:"tls_key" toml:"tls_key"`

	// AutoSave is the autosave interval; zero disables it.
	AutoSave Duration `json:"autosave" toml:"autosave"`

	// Config is the path to the Config file.
	Config string `json:"-" toml:"-"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{
		Port:        "localhost:8080",
		Driver:      "sqlite",
		DatabaseDSN: "file:credkeeper.db",
		Store:       StoreSQL,
		LogLevel:    "info",
		AutoSave:    Duration{time.Minute},
	}
}

// options holds the current configuration values.
var options = Default()

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	flag.StringVar(&options.Driver, "driver", options.Driver, "database driver (sqlite, postgres)")
	flag.StringVar(&options.DatabaseDSN, "d", options.DatabaseDSN, "db address")
	flag.StringVar(&options.Store, "store", options.Store, "preferences store (sql, file, memory)")
	flag.StringVar(&options.PrefsFile, "prefs", options.PrefsFile, "preferences file for -store=file")
	flag.StringVar(&options.LogLevel, "log-level", options.LogLevel, "log level")
	flag.StringVar(&options.TLSCert, "tls-cert", "", "TLS certificate file")
	flag.StringVar(&options.TLSKey, "tls-key", "", "TLS key file")
	flag.DurationVar(&options.AutoSave.Duration, "autosave", options.AutoSave.Duration, "autosave interval, 0 disables")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if err := LoadFile(options.Config, options); err != nil {
			log.Fatalf("error while reading config file: %v", err)
		}
	}

	ApplyEnv(options)
	return options
}

// LoadFile merges the config file at path into o. Files ending in .toml are
// read as TOML, everything else as JSON. A missing file is not an error.
func LoadFile(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, o); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides o with the environment variables that are set.
func ApplyEnv(o *Options) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"SERVER_ADDRESS", &o.Port},
		{"DATABASE_DRIVER", &o.Driver},
		{"DATABASE_DSN", &o.DatabaseDSN},
		{"STORE", &o.Store},
		{"PREFS_FILE", &o.PrefsFile},
		{"MASTER_PASSWORD", &o.MasterPassword},
		{"LOG_LEVEL", &o.LogLevel},
	}
	for _, ov := range overrides {
		if v := os.Getenv(ov.name); v != "" {
			*ov.dst = v
		}
	}
}
