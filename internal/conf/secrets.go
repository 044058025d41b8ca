package conf

import (
	"fmt"

	"github.com/tphakala/strainbot/internal/secrets"
)

// resolveSecrets replaces credential settings with their resolved values.
// Credentials may reference the environment as ${VAR}, and the MySQL DSN and
// MQTT password may also come from a file.
func resolveSecrets(settings *Settings) error {
	var err error

	if settings.Store.MySQL.DSN, err = secrets.Resolve(settings.Store.MySQL.DSNFile, settings.Store.MySQL.DSN); err != nil {
		return fmt.Errorf("mysql dsn: %w", err)
	}
	if settings.MQTT.Password, err = secrets.Resolve(settings.MQTT.PasswordFile, settings.MQTT.Password); err != nil {
		return fmt.Errorf("mqtt password: %w", err)
	}
	if settings.Telemetry.SentryDSN, err = secrets.ExpandString(settings.Telemetry.SentryDSN); err != nil {
		return fmt.Errorf("sentry dsn: %w", err)
	}
	for i, u := range settings.Notify.URLs {
		if settings.Notify.URLs[i], err = secrets.ExpandString(u); err != nil {
			return fmt.Errorf("notify url %d: %w", i+1, err)
		}
	}
	return nil
}
