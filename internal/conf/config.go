// Package conf loads strainbot settings from config.yaml, environment
// variables and command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/strainbot/internal/logger"
)

// Store backends
const (
	BackendGoogle = "google"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

// SheetsSettings contains Google Sheets access settings
type SheetsSettings struct {
	CredentialsPath string `yaml:"credentialspath"` // service account JSON file
	SpreadsheetID   string `yaml:"spreadsheetid"`
}

// SQLiteSettings contains sqlite backend settings
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings contains mysql backend settings
type MySQLSettings struct {
	DSN     string `yaml:"dsn"`
	DSNFile string `yaml:"dsnfile"` // read the DSN from a mounted secret instead
}

// StoreSettings controls the record store and its backend
type StoreSettings struct {
	Backend    string         `yaml:"backend"`    // google, sqlite, mysql or memory
	RateLimit  int            `yaml:"ratelimit"`  // backend calls per window
	RateWindow int            `yaml:"ratewindow"` // window in seconds
	QueueSize  int            `yaml:"queuesize"`  // pending jobs before callers block
	SQLite     SQLiteSettings `yaml:"sqlite"`
	MySQL      MySQLSettings  `yaml:"mysql"`
}

// Window returns the store rate window as a duration
func (s StoreSettings) Window() time.Duration {
	return time.Duration(s.RateWindow) * time.Second
}

// ModerationSettings controls permissions, user quotas and moderator alerts
type ModerationSettings struct {
	RoleID         string         `yaml:"roleid"`         // single moderator role
	RoleIDs        []string       `yaml:"roleids"`        // additional moderator roles
	Hierarchical   bool           `yaml:"hierarchical"`   // roles positioned above a moderator role also qualify
	RolePositions  map[string]int `yaml:"rolepositions"`  // role id to position, used with hierarchical
	PerUserLimit   int            `yaml:"peruserlimit"`   // commands per user per window
	RateWindow     int            `yaml:"ratewindow"`     // seconds
	CommunityLimit int            `yaml:"communitylimit"` // commands per community per window
	AlertCooldown  time.Duration  `yaml:"alertcooldown"`
	AlertRetract   time.Duration  `yaml:"alertretract"`
}

// Window returns the user rate window as a duration
func (m ModerationSettings) Window() time.Duration {
	return time.Duration(m.RateWindow) * time.Second
}

// HTTPSettings controls the health and metrics endpoint
type HTTPSettings struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// MQTTSettings contains settings for the activity feed broker
type MQTTSettings struct {
	Broker       string `yaml:"broker"` // empty disables MQTT
	TopicPrefix  string `yaml:"topicprefix"`
	ClientID     string `yaml:"clientid"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"passwordfile"`
	Retain       bool   `yaml:"retain"`
}

// Enabled reports whether a broker is configured
func (m MQTTSettings) Enabled() bool {
	return m.Broker != ""
}

// NotifySettings contains push notification targets for moderator alerts
type NotifySettings struct {
	URLs    []string      `yaml:"urls"` // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout"`
}

// StatusSettings controls the status board
type StatusSettings struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refreshinterval"`
	TopLimit        int           `yaml:"toplimit"`
	RecentLimit     int           `yaml:"recentlimit"`
}

// TelemetrySettings contains error reporting settings
type TelemetrySettings struct {
	SentryDSN string `yaml:"sentrydsn"`
}

// Settings contains all configuration options for strainbot
type Settings struct {
	Debug bool `yaml:"debug"`

	Sheets     SheetsSettings       `yaml:"sheets"`
	Store      StoreSettings        `yaml:"store"`
	Moderation ModerationSettings   `yaml:"moderation"`
	HTTP       HTTPSettings         `yaml:"http"`
	MQTT       MQTTSettings         `yaml:"mqtt"`
	Notify     NotifySettings       `yaml:"notify"`
	Status     StatusSettings       `yaml:"status"`
	Telemetry  TelemetrySettings    `yaml:"telemetry"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFile       string
)

// SetConfigFile makes Load read path instead of searching the default
// locations. An empty path restores the search.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFile = path
}

// Load reads the configuration file and environment variables
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file.
// A missing file is not an error; the bot can run entirely from env vars.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			GetLogger().Debug("config file not readable, using defaults and environment",
				logger.String("path", configFile), logger.Error(err))
			setDefaultConfig()
			return configureEnvironmentVariables()
		}
		viper.SetConfigFile(configFile)
	} else {
		for _, path := range DefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Debug("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Info("loaded config file", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// DefaultConfigPaths returns the directories searched for config.yaml
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "strainbot"))
	}
	return append(paths, "/etc/strainbot")
}

// GetSettings returns the settings loaded by the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file so
// that readers never observe a partial file.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
