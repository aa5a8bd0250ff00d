// Package config resolves where field notes live and loads the runtime
// settings from defaults, an optional YAML file and FIELDNOTES_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

const (
	appName          = "fieldnotes"
	databaseFileName = "fieldnotes.db"
	configFileName   = "config.yaml"
	envPrefix        = "FIELDNOTES"
	// MemoryDatabase selects a private in-memory database.
	MemoryDatabase = ":memory:"
)

// DefaultDataDir resolves the base directory for all field-notes storage:
// FIELDNOTES_DIR first, then the XDG data home, then ~/.local/share.
func DefaultDataDir() string {
	if explicit := os.Getenv("FIELDNOTES_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// DefaultDatabasePath returns the SQLite file inside the default data dir.
func DefaultDatabasePath() string {
	return filepath.Join(DefaultDataDir(), databaseFileName)
}

// DefaultMediaDir returns where captured media files are created by default.
func DefaultMediaDir() string {
	return filepath.Join(DefaultDataDir(), "media")
}

type Queue struct {
	Capacity int `mapstructure:"capacity" validate:"required|min:1"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error"`
	Format string `mapstructure:"format" validate:"required|in:console,json"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required"`
}

type Config struct {
	DataDir  string  `mapstructure:"data_dir" validate:"required"`
	Database string  `mapstructure:"database" validate:"required"`
	MediaDir string  `mapstructure:"media_dir" validate:"required"`
	PageSize int     `mapstructure:"page_size" validate:"required|min:1|max:500"`
	Queue    Queue   `mapstructure:"queue"`
	Log      Log     `mapstructure:"log"`
	Metrics  Metrics `mapstructure:"metrics"`

	// File is the config file that was read, empty when none was.
	File string `mapstructure:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	dataDir := DefaultDataDir()
	return Config{
		DataDir:  dataDir,
		Database: filepath.Join(dataDir, databaseFileName),
		MediaDir: filepath.Join(dataDir, "media"),
		PageSize: 15,
		Queue:    Queue{Capacity: 256},
		Log:      Log{Level: "info", Format: "console"},
		Metrics:  Metrics{Enabled: false, Addr: "127.0.0.1:9464"},
	}
}

// Load builds the configuration. configFile may be empty, in which case
// config.yaml in the data dir is read when it exists.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("database", "")
	v.SetDefault("media_dir", "")
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("queue.capacity", defaults.Queue.Capacity)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	if configFile == "" {
		candidate := filepath.Join(v.GetString("data_dir"), configFileName)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	conf.File = configFile

	if conf.Database == "" {
		conf.Database = filepath.Join(conf.DataDir, databaseFileName)
	}
	if conf.MediaDir == "" {
		conf.MediaDir = filepath.Join(conf.DataDir, "media")
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	v.StopOnError = false
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %w", v.Errors)
	}
	return nil
}

// InMemory reports whether the database is a private in-memory one.
func (c *Config) InMemory() bool {
	return c.Database == MemoryDatabase
}
