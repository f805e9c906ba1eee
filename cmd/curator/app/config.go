package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
)

// Backends accepted by the backend setting.
const (
	BackendMemory = "memory"
	BackendFiles  = "files"
	BackendBadger = "badger"
)

// Config holds the application configuration loaded from config files,
// CURATOR_* environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Storage
	Backend string
	DataDir string

	// Version store
	MaxVersionsPerItem int
	MinVersions        int

	// Retention
	RetentionDays       int
	KeepMinimumVersions int
	PreserveTagged      bool
	CleanupInterval     time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (CURATOR_BACKEND, CURATOR_DATA_DIR, ...)
// 3. .env files
// 4. Config file (~/.curator.yaml or --config)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".curator")
		// a missing config file is fine
		_ = v.ReadInConfig()
	}

	config := &Config{
		ConfigFile: v.ConfigFileUsed(),

		Backend: strings.ToLower(v.GetString("backend")),
		DataDir: expandHome(v.GetString("data_dir")),

		MaxVersionsPerItem: v.GetInt("max_versions_per_item"),
		MinVersions:        v.GetInt("min_versions"),

		RetentionDays:       v.GetInt("retention_days"),
		KeepMinimumVersions: v.GetInt("keep_minimum_versions"),
		PreserveTagged:      v.GetBool("preserve_tagged"),
		CleanupInterval:     v.GetDuration("cleanup_interval"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendFiles)
	v.SetDefault("data_dir", constants.DefaultDataPath)
	v.SetDefault("max_versions_per_item", constants.DefaultMaxVersionsPerItem)
	v.SetDefault("min_versions", constants.DefaultMinVersions)
	v.SetDefault("retention_days", constants.DefaultRetentionDays)
	v.SetDefault("keep_minimum_versions", constants.DefaultKeepMinimumVersions)
	v.SetDefault("preserve_tagged", true)
	v.SetDefault("cleanup_interval", constants.DefaultCleanupInterval)
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFiles, BackendBadger:
	default:
		return errors.NewConfigError("backend", "unknown backend "+c.Backend+": must be one of memory, files, badger", nil)
	}
	if c.MaxVersionsPerItem < 0 {
		return errors.NewConfigError("max_versions_per_item", "must not be negative", nil)
	}
	if c.RetentionDays < 0 || c.KeepMinimumVersions < 0 {
		return errors.NewConfigError("retention", "retention_days and keep_minimum_versions must not be negative", nil)
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, backend string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if backend != "" {
		c.Backend = strings.ToLower(backend)
	}
}

// loadEnvFiles loads .env then .env.local; existing variables win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
