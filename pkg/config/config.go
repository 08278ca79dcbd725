package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var configDir string
var configFilePath string
var credentialsPath string

// EnvPrefix is prepended to every environment override (CIRCLE_API_BASE_URL).
const EnvPrefix = "CIRCLE"

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\circle\cli
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "circle", "cli"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/circle/cli
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "circle", "cli"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "Circle", "cli", "config.toml")}
	}

	return []string{
		"/etc/circle/cli/config.toml",
		"/usr/local/etc/circle/cli/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	// Re-init starts from a clean slate
	viper.Reset()
	viper.SetConfigType("toml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// System config is the foundation, user config overrides it
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	viper.SetConfigFile(configFilePath)
	_ = viper.MergeInConfig()

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:3000/api")
	viper.SetDefault("api.timeout", 30)

	viper.SetDefault("db.url", "http://localhost:54321/rest/v1")
	viper.SetDefault("db.api_key", "")
	viper.SetDefault("auth.url", "http://localhost:54321/auth/v1")

	viper.SetDefault("storage.bucket", "images")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.endpoint", "")
	viper.SetDefault("storage.public_url", "")
	viper.SetDefault("storage.access_key", "")
	viper.SetDefault("storage.secret_key", "")

	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("poll.feed_interval", "5s")
	viper.SetDefault("poll.profile_interval", "5s")
	viper.SetDefault("poll.chat_interval", "3s")

	viper.SetDefault("metrics.addr", "")

	viper.SetDefault("output.format", "text")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "circle-cli.log"))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetDuration returns a duration configuration value.
// Bare integers are read as seconds so "api.timeout = 30" keeps working.
func GetDuration(key string) time.Duration {
	raw := viper.GetString(key)
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		return time.Duration(viper.GetInt(key)) * time.Second
	}
	return viper.GetDuration(key)
}

// Set overrides a value for the lifetime of the process without persisting it
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}
