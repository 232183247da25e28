package config

import (
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var configTemplate = `# config.toml

[server]
  # Hostname or IP address for the diagnostics API to listen on.
  # The mobile shell talks to this address; keep it loopback.
  # Default: "127.0.0.1"
  host = "127.0.0.1"

  # Port for the diagnostics API.
  # Default: 7373
  port = 7373

  # Base URL when served under a path prefix.
  # Optional.
  # Default: ""
  #base_url = ""

[database]
  # Backend for the durable key-value store.
  # Supported: "sqlite", "postgres"
  # Default: "sqlite"
  type = "sqlite"

  # --- PostgreSQL Settings ---
  # Only used if database.type is set to "postgres".
  [database.postgres]
    host = "localhost"
    port = 5432
    database = "postgres"
    username = "postgres"
    password = "postgres"
    ssl_mode = "disable"

[logging]
  # Log file path. Empty writes to stderr only.
  # Default: ""
  path = "log/"

  # Log level.
  # Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
  # Default: "DEBUG"
  level = "DEBUG"

  # Maximum size of a log file in megabytes before rotation.
  # Default: 50
  max_file_size = 50

  # Maximum number of rotated log files to keep.
  # Default: 3
  max_backup_count = 3

[remote]
  # Base URL of the registration backend API.
  base_url = "https://api.example.com/v1"

  # Endpoint probed to determine connectivity. A HEAD request that
  # completes counts as online.
  probe_url = "https://api.example.com/v1/health"

  # Per-request timeout for backend calls, in seconds.
  # Default: 30
  timeout_seconds = 30

[connectivity]
  # How often to probe the backend for reachability, in seconds.
  # Default: 15
  probe_interval_seconds = 15

[cache]
  # Default cache entry lifetime in milliseconds. Zero disables expiry.
  # Default: 86400000 (24 hours)
  default_ttl_ms = 86400000

[sync]
  # Maximum replay attempts before an operation is permanently failed.
  # Default: 5
  max_attempts = 5

  # Delay between consecutive operations in one replay pass, in ms.
  # Default: 500
  replay_delay_ms = 500

  # How long completed operations are kept for history, in hours.
  # Default: 24
  retention_hours = 24

  # Cron schedule for pruning completed operations.
  # Default: "0 * * * *" (hourly)
  prune_schedule = "0 * * * *"
`

func writeConfig(configPath string, configFile string) error {
	cfgPath := filepath.Join(configPath, configFile)

	// check if configPath exists, if not create it
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		err := os.MkdirAll(configPath, os.ModePerm)
		if err != nil {
			log.Println(err)
			return err
		}
	}

	// check if config exists, if not create it
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		f, createErr := os.Create(cfgPath)
		if createErr != nil {
			log.Printf("error creating file: %q", createErr)
			return createErr
		}
		defer func(f *os.File) {
			if errClose := f.Close(); errClose != nil {
				log.Printf("error closing file: %q", errClose)
			}
		}(f)

		if _, writeErr := f.WriteString(configTemplate); writeErr != nil {
			log.Printf("error writing contents to file: %v %q", configPath, writeErr)
			return writeErr
		}

		return f.Sync()
	}

	return nil
}

type Config interface {
	DynamicReload(log logger.Logger)
}

type AppConfig struct {
	Config *domain.Config
	m      sync.Mutex
}

func New(configPath string, version string) *AppConfig {
	c := &AppConfig{}
	c.defaults()
	c.Config.Version = version
	c.Config.ConfigPath = configPath

	c.load(configPath)

	return c
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Version:    "dev",
		ConfigPath: "",
		Server: domain.ServerConfig{
			Host:    "127.0.0.1",
			Port:    7373,
			BaseURL: "",
		},
		Database: domain.DatabaseConfig{
			Type: "sqlite",
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "postgres",
				User:     "postgres",
				Pass:     "postgres",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{
			Path:           "",
			Level:          "DEBUG",
			MaxFileSize:    50,
			MaxBackupCount: 3,
		},
		Remote: domain.RemoteConfig{
			BaseURL:        "https://api.example.com/v1",
			ProbeURL:       "https://api.example.com/v1/health",
			TimeoutSeconds: 30,
		},
		Connectivity: domain.ConnectivityConfig{
			ProbeIntervalSeconds: 15,
		},
		Cache: domain.CacheConfig{
			DefaultTTLMs: 86400000,
		},
		Sync: domain.SyncConfig{
			MaxAttempts:   5,
			ReplayDelayMs: 500,
			RetentionHrs:  24,
			PruneSchedule: "0 * * * *",
		},
	}
}

func (c *AppConfig) load(configPath string) {
	viper.SetConfigType("toml")
	configPath = path.Clean(configPath)

	if configPath != "" {
		if err := writeConfig(configPath, "config.toml"); err != nil {
			log.Printf("writeConfig error during load: %q", err)
			// Continue to attempt reading, defaults might be used or file might exist partially
		}
		viper.SetConfigFile(path.Join(configPath, "config.toml"))
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/agrisync")
		viper.AddConfigPath("$HOME/.agrisync")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file not found, using defaults: %s", viper.ConfigFileUsed())
		} else {
			log.Printf("Config read error: %q. Using defaults.", err)
		}
	}

	if err := viper.Unmarshal(&c.Config); err != nil {
		log.Fatalf("Could not unmarshal config file into struct: %v. Config file used: %s", err, viper.ConfigFileUsed())
	}
}

func (c *AppConfig) DynamicReload(log logger.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		log.Info().Msgf("Config file changed: %s. Reloading configuration.", e.Name)

		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("Error reading config file during dynamic reload")
			return
		}

		var newConfig domain.Config
		// Version and ConfigPath are not part of the file
		newConfig.Version = c.Config.Version
		newConfig.ConfigPath = c.Config.ConfigPath

		if err := viper.Unmarshal(&newConfig); err != nil {
			log.Error().Err(err).Msg("Error unmarshalling config during dynamic reload")
			return
		}

		c.Config = &newConfig

		log.SetLogLevel(c.Config.Logging.Level)

		log.Debug().Msg("Configuration reloaded successfully!")
	})
	viper.WatchConfig()
}
