package domain

// ServerConfig holds the diagnostics API listen settings
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// PostgresConfig holds PostgreSQL-specific settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Pass     string `mapstructure:"password"`
	SslMode  string `mapstructure:"ssl_mode"`
}

// DatabaseConfig holds general database settings and nested specific configs
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Path           string `mapstructure:"path"`
	Level          string `mapstructure:"level"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	MaxBackupCount int    `mapstructure:"max_backup_count"`
}

// RemoteConfig holds settings for the registration backend API
type RemoteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ProbeURL       string `mapstructure:"probe_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ConnectivityConfig holds network monitoring settings
type ConnectivityConfig struct {
	ProbeIntervalSeconds int `mapstructure:"probe_interval_seconds"`
}

// CacheConfig holds cache service settings
type CacheConfig struct {
	// Default TTL in milliseconds applied by the entity stores when a
	// resource does not specify its own. Zero disables expiry.
	DefaultTTLMs int64 `mapstructure:"default_ttl_ms"`
}

// SyncConfig holds sync queue settings
type SyncConfig struct {
	MaxAttempts   int    `mapstructure:"max_attempts"`
	ReplayDelayMs int64  `mapstructure:"replay_delay_ms"`
	RetentionHrs  int    `mapstructure:"retention_hours"`
	PruneSchedule string `mapstructure:"prune_schedule"`
}

// Config holds the application's configuration, mapped from config.toml
type Config struct {
	Version    string // No tag needed, not from config file
	ConfigPath string // No tag needed, internal use

	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Sync         SyncConfig         `mapstructure:"sync"`
}

// ConfigUpdate allows partial updates of runtime-adjustable settings
// via the diagnostics API.
type ConfigUpdate struct {
	Host     *string `json:"host,omitempty"`
	Port     *int    `json:"port,omitempty"`
	LogLevel *string `json:"log_level,omitempty"`
	LogPath  *string `json:"log_path,omitempty"`
}
