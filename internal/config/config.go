package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/afero"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// AppDirName is the directory under ~/.config where gdm keeps its state
	AppDirName = "gdm"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "GDM_"
)

// Config holds application configuration
type Config struct {
	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat"`

	// MaxRetries is the maximum number of transport-level retries for a single API call
	MaxRetries int `json:"maxRetries"`

	// RetryBaseDelay is the base delay for exponential backoff in milliseconds
	RetryBaseDelay int `json:"retryBaseDelay"`

	// RequestTimeout bounds a single API call, in seconds
	RequestTimeout int `json:"requestTimeout"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel"`

	// ColorOutput enables color in console logs
	ColorOutput bool `json:"colorOutput"`

	// TagFolderName is the source-account folder marking migrated documents
	TagFolderName string `json:"tagFolderName"`

	// PlaceholderTitle is the title uploads carry until metadata is copied
	PlaceholderTitle string `json:"placeholderTitle"`

	// TempDir holds exported documents between download and upload; empty means the OS default
	TempDir string `json:"tempDir"`

	SourceProfile string `json:"sourceProfile"`
	DestProfile   string `json:"destProfile"`

	// KeyFile is a service account key with domain-wide delegation
	KeyFile string `json:"keyFile"`
}

var validLogLevels = []interface{}{"quiet", "normal", "verbose", "debug"}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultOutputFormat: types.OutputFormatTable,
		MaxRetries:          utils.DefaultMaxRetries,
		RetryBaseDelay:      utils.DefaultRetryDelayMs,
		RequestTimeout:      120,
		LogLevel:            "normal",
		ColorOutput:         true,
		TagFolderName:       utils.DefaultTagFolderName,
		PlaceholderTitle:    utils.DefaultPlaceholderTitle,
		SourceProfile:       "source",
		DestProfile:         "dest",
	}
}

// Load loads configuration with precedence: env vars > config file > defaults.
// CLI flags are applied on top by the caller.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(afero.NewOsFs(), path)
}

// LoadFile loads configuration from path on fs. A missing file is not an error.
func LoadFile(fs afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		c.DefaultOutputFormat = types.OutputFormat(v)
	}
	if v := os.Getenv(EnvPrefix + "MAX_RETRIES"); v != "" {
		if retries, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = retries
		}
	}
	if v := os.Getenv(EnvPrefix + "RETRY_BASE_DELAY"); v != "" {
		if delay, err := strconv.Atoi(v); err == nil {
			c.RetryBaseDelay = delay
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			c.RequestTimeout = timeout
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "COLOR_OUTPUT"); v != "" {
		c.ColorOutput = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "TAG_FOLDER"); v != "" {
		c.TagFolderName = v
	}
	if v := os.Getenv(EnvPrefix + "PLACEHOLDER_TITLE"); v != "" {
		c.PlaceholderTitle = v
	}
	if v := os.Getenv(EnvPrefix + "TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv(EnvPrefix + "SOURCE_PROFILE"); v != "" {
		c.SourceProfile = v
	}
	if v := os.Getenv(EnvPrefix + "DEST_PROFILE"); v != "" {
		c.DestProfile = v
	}
	if v := os.Getenv(EnvPrefix + "KEY_FILE"); v != "" {
		c.KeyFile = v
	}
}

// Save writes the configuration to path on fs with owner-only permissions
func (c *Config) Save(fs afero.Fs, path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultOutputFormat,
			validation.Required,
			validation.In(types.OutputFormatJSON, types.OutputFormatTable).Error("must be 'json' or 'table'")),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.RetryBaseDelay, validation.Required, validation.Min(100), validation.Max(60000)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(1), validation.Max(3600)),
		validation.Field(&c.LogLevel, validation.Required, validation.In(validLogLevels...)),
		validation.Field(&c.TagFolderName, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.PlaceholderTitle, validation.Required, validation.Length(1, 255)),
	)
}

// GetRetryBaseDelay returns the retry base delay as a duration
func (c *Config) GetRetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Millisecond
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppDirName), nil
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
