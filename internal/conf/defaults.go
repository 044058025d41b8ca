package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every setting
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("sheets.credentialspath", "./credentials.json")
	viper.SetDefault("sheets.spreadsheetid", "")

	viper.SetDefault("store.backend", BackendGoogle)
	viper.SetDefault("store.ratelimit", 90)
	viper.SetDefault("store.ratewindow", 60)
	viper.SetDefault("store.queuesize", 64)
	viper.SetDefault("store.sqlite.path", "strainbot.db")
	viper.SetDefault("store.mysql.dsn", "")

	viper.SetDefault("moderation.roleid", "")
	viper.SetDefault("moderation.roleids", []string{})
	viper.SetDefault("moderation.hierarchical", false)
	viper.SetDefault("moderation.peruserlimit", 5)
	viper.SetDefault("moderation.ratewindow", 60)
	viper.SetDefault("moderation.communitylimit", 50)
	viper.SetDefault("moderation.alertcooldown", time.Hour)
	viper.SetDefault("moderation.alertretract", 30*time.Minute)

	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.port", 8080)

	viper.SetDefault("mqtt.broker", "")
	viper.SetDefault("mqtt.topicprefix", "strainbot")
	viper.SetDefault("mqtt.clientid", "strainbot")
	viper.SetDefault("mqtt.retain", true)

	viper.SetDefault("notify.urls", []string{})
	viper.SetDefault("notify.timeout", 10*time.Second)

	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.refreshinterval", 10*time.Minute)
	viper.SetDefault("status.toplimit", 10)
	viper.SetDefault("status.recentlimit", 10)

	viper.SetDefault("telemetry.sentrydsn", "")

	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/strainbot.log")
	viper.SetDefault("logging.file_output.level", "info")
}
