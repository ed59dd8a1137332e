package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Role of a process in the cluster. The admin authors state; workers mirror
// it from the shared store.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

// ParseRole validates a role string. There is deliberately no default: a
// process that does not know its role must not start.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleWorker:
		return RoleWorker, nil
	case "":
		return "", fmt.Errorf("cluster.role is required (admin or worker)")
	default:
		return "", fmt.Errorf("invalid cluster.role %q (want admin or worker)", s)
	}
}

// Config represents the application configuration
type Config struct {
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	Shared   SharedConfig   `mapstructure:"shared"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Packages PackagesConfig `mapstructure:"packages"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClusterConfig contains the coordination engine settings
type ClusterConfig struct {
	Role              string `mapstructure:"role"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	UpdateChannel     string `mapstructure:"update_channel"`
	PackageChannel    string `mapstructure:"package_channel"`
	SyncPackages      bool   `mapstructure:"sync_packages"`
	SessionTTL        int    `mapstructure:"session_ttl"`
	EnableCompression bool   `mapstructure:"enable_compression"`
	DebounceMs        int    `mapstructure:"debounce_ms"`
}

// SharedConfig contains shared state store connection settings
type SharedConfig struct {
	Backend  string `mapstructure:"backend"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig contains local persistent store settings
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// PackagesConfig contains package synchronization settings
type PackagesConfig struct {
	ManifestPath  string `mapstructure:"manifest_path"`
	CoreNamespace string `mapstructure:"core_namespace"`
	InstallDir    string `mapstructure:"install_dir"`
	Command       string `mapstructure:"command"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SessionTTLDuration returns the session TTL as a duration.
func (c ClusterConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// Debounce returns the package-sync debounce delay.
func (c ClusterConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/clustersync")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CLUSTERSYNC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Cluster defaults
	viper.SetDefault("cluster.role", "")
	viper.SetDefault("cluster.key_prefix", "nodered:")
	viper.SetDefault("cluster.update_channel", "nodered:flows:updated")
	viper.SetDefault("cluster.package_channel", "nodered:packages:updated")
	viper.SetDefault("cluster.sync_packages", true)
	viper.SetDefault("cluster.session_ttl", 86400)
	viper.SetDefault("cluster.enable_compression", false)
	viper.SetDefault("cluster.debounce_ms", 500)

	// Shared store defaults
	viper.SetDefault("shared.backend", "redis")
	viper.SetDefault("shared.addr", "localhost:6379")
	viper.SetDefault("shared.password", "")
	viper.SetDefault("shared.db", 0)

	// Local storage defaults
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.data_dir", "./data")

	// Package sync defaults
	viper.SetDefault("packages.manifest_path", "")
	viper.SetDefault("packages.core_namespace", "node-red")
	viper.SetDefault("packages.install_dir", "")
	viper.SetDefault("packages.command", "npm")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")
}

// validate validates the configuration and fills computed values
func validate(config *Config) error {
	if _, err := ParseRole(config.Cluster.Role); err != nil {
		return err
	}

	switch config.Shared.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid shared.backend %q (want redis or memory)", config.Shared.Backend)
	}

	switch config.Storage.Backend {
	case "file", "badger", "memory":
	default:
		return fmt.Errorf("invalid storage.backend %q (want file, badger or memory)", config.Storage.Backend)
	}

	config.Storage.DataDir = filepath.Clean(config.Storage.DataDir)

	if config.Packages.ManifestPath == "" {
		config.Packages.ManifestPath = filepath.Join(config.Storage.DataDir, "package.json")
	}
	if config.Packages.InstallDir == "" {
		config.Packages.InstallDir = config.Storage.DataDir
	}

	if config.Cluster.SessionTTL < 0 {
		return fmt.Errorf("cluster.session_ttl must not be negative")
	}
	if config.Cluster.DebounceMs <= 0 {
		return fmt.Errorf("cluster.debounce_ms must be positive")
	}

	return nil
}
