package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/strainbot/internal/logger"
)

// envBinding maps an environment variable onto a viper key
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings returns every supported environment variable
func getEnvBindings() []envBinding {
	return []envBinding{
		// Datastore
		{"sheets.credentialspath", "GOOGLE_SHEETS_CREDENTIALS_PATH", nil},
		{"sheets.spreadsheetid", "SPREADSHEET_ID", nil},
		{"store.backend", "STORE_BACKEND", validateEnvBackend},
		{"store.sqlite.path", "SQLITE_PATH", nil},
		{"store.mysql.dsn", "MYSQL_DSN", nil},
		{"store.mysql.dsnfile", "MYSQL_DSN_FILE", nil},
		{"store.ratelimit", "STORE_RATE_LIMIT", validateEnvPositiveInt},
		{"store.ratewindow", "STORE_RATE_WINDOW", validateEnvPositiveInt},

		// Moderation
		{"moderation.roleid", "MODERATOR_ROLE_ID", validateEnvRoleIDs},
		{"moderation.roleids", "MODERATOR_ROLE_IDS", validateEnvRoleIDs},
		{"moderation.hierarchical", "HIERARCHICAL_PERMISSIONS", validateEnvBool},
		{"moderation.peruserlimit", "RATE_LIMIT_PER_USER", validateEnvPositiveInt},
		{"moderation.ratewindow", "RATE_LIMIT_WINDOW", validateEnvPositiveInt},
		{"moderation.communitylimit", "COMMUNITY_RATE_LIMIT", validateEnvPositiveInt},

		// Surfaces
		{"http.port", "HEALTH_CHECK_PORT", validateEnvPort},
		{"logging.default_level", "LOG_LEVEL", logger.ValidLevel},
		{"logging.console.level", "LOG_LEVEL", logger.ValidLevel},
		{"mqtt.broker", "MQTT_BROKER", nil},
		{"mqtt.topicprefix", "MQTT_TOPIC_PREFIX", nil},
		{"mqtt.username", "MQTT_USERNAME", nil},
		{"mqtt.password", "MQTT_PASSWORD", nil},
		{"mqtt.passwordfile", "MQTT_PASSWORD_FILE", nil},
		{"notify.urls", "NOTIFY_URLS", nil},
		{"telemetry.sentrydsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars binds all variables and collects validation problems into one error
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateEnvPort(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvBackend(value string) error {
	switch strings.ToLower(value) {
	case BackendGoogle, BackendSQLite, BackendMySQL, BackendMemory:
		return nil
	}
	return fmt.Errorf("must be one of google, sqlite, mysql, memory")
}

// validateEnvRoleIDs accepts one id or a comma separated list of ids
func validateEnvRoleIDs(value string) error {
	_, err := parseRoleIDs(strings.Split(value, ","))
	return err
}

// configureEnvironmentVariables sets up env support for nested keys
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
